package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/kbukum/voicememo/httpclient"
)

// FetchJSON downloads url with client and decodes a JSON object. Any status
// other than 200 is a query failure.
func FetchJSON(ctx context.Context, client *httpclient.Client, rawURL string) (map[string]any, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, InvalidURL(rawURL)
	}

	resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: u.String()})
	if err != nil {
		if resp != nil {
			return nil, TaskQueryFailed("Failed to fetch JSON from " + rawURL).WithCause(err)
		}
		return nil, ServiceUnavailable().WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, TaskQueryFailed("Failed to fetch JSON from " + rawURL)
	}

	var doc map[string]any
	if err := json.Unmarshal(resp.Body, &doc); err != nil || doc == nil {
		return nil, ParseError("Invalid JSON response from " + rawURL)
	}
	return doc, nil
}
