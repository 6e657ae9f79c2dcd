// Package httpclient is the outbound HTTP layer used by the cloud
// transcription providers and the local inference sidecars.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/kbukum/voicememo/resilience"
)

// Client sends Requests with the configured defaults, auth and retry.
type Client struct {
	http *http.Client
	cfg  Config
}

func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		http: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		cfg:  cfg,
	}, nil
}

// Do sends req. A non-2xx response is returned together with an *Error
// carrying its status and body.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	payload, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, requestError("encode body: %w", err)
	}
	send := func(ctx context.Context, _ int) (*Response, error) {
		return c.send(ctx, req, payload, contentType)
	}
	if c.cfg.Retry == nil {
		return send(ctx, 1)
	}
	return resilience.Retry(ctx, *c.cfg.Retry, send)
}

func (c *Client) send(ctx context.Context, req Request, payload []byte, contentType string) (*Response, error) {
	httpReq, err := c.newRequest(ctx, req, payload, contentType)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, transportError(KindTimeout, err)
		}
		return nil, transportError(KindConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(KindConnection, err)
	}
	out := &Response{StatusCode: resp.StatusCode, Headers: make(map[string]string, len(resp.Header)), Body: body}
	for k := range resp.Header {
		out.Headers[k] = resp.Header.Get(k)
	}
	if e := statusError(resp.StatusCode, body); e != nil {
		return out, e
	}
	return out, nil
}

// newRequest builds a fresh *http.Request per attempt so signers see a
// current timestamp and the body can be replayed.
func (c *Client) newRequest(ctx context.Context, req Request, payload []byte, contentType string) (*http.Request, error) {
	target := req.Path
	if c.cfg.BaseURL != "" && !strings.Contains(target, "://") {
		target = strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(target, "/")
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, requestError("create request: %w", err)
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}
	for _, headers := range []map[string]string{c.cfg.Headers, req.Headers} {
		for k, v := range headers {
			httpReq.Header.Set(k, v)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	auth := req.Auth
	if auth == nil {
		auth = c.cfg.Auth
	}
	if err := auth.apply(httpReq, payload); err != nil {
		return nil, requestError("sign request: %w", err)
	}
	return httpReq, nil
}

// encodeBody buffers the body so signers can hash it and retries can
// replay it.
func encodeBody(body any) ([]byte, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case *MultipartBody:
		return v.encode()
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), "text/plain", nil
	case io.Reader:
		data, err := io.ReadAll(v)
		return data, "", err
	}
	data, err := json.Marshal(body)
	return data, "application/json", err
}
