package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// DoJSON performs req and decodes the JSON body of a successful response
// into T. An empty body leaves T at its zero value. Error statuses keep
// their body reachable through StatusError.
func DoJSON[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T
	resp, err := c.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if len(resp.Body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, fmt.Errorf("httpclient: decode %s response: %w", req.Path, err)
	}
	return out, nil
}
