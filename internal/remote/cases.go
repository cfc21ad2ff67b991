package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ecmdash/internal/cases"
)

// ListCases returns the case list. A null data field is an empty list.
func (c *Client) ListCases(ctx context.Context) ([]cases.Summary, error) {
	var out struct {
		Data []cases.Summary `json:"data"`
	}
	if err := c.do(ctx, "list cases", http.MethodGet, "/api/cases", nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return []cases.Summary{}, nil
	}
	return out.Data, nil
}

// GetCase fetches one case. The API may answer with the record itself or a
// one-element array; both normalize to the same Detail.
func (c *Client) GetCase(ctx context.Context, id int64) (cases.Detail, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "get case", http.MethodGet, fmt.Sprintf("/api/cases/%d", id), nil, &raw); err != nil {
		return cases.Detail{}, err
	}
	d, err := decodeDetail(raw)
	if err != nil {
		return cases.Detail{}, fmt.Errorf("get case %d: %w", id, err)
	}
	return d, nil
}

func decodeDetail(raw json.RawMessage) (cases.Detail, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return cases.Detail{}, ErrNotFound
	}
	if raw[0] == '[' {
		var list []cases.Detail
		if err := json.Unmarshal(raw, &list); err != nil {
			return cases.Detail{}, &NetworkError{Op: "decode case", Err: err}
		}
		if len(list) == 0 {
			return cases.Detail{}, ErrNotFound
		}
		return list[0], nil
	}
	var d cases.Detail
	if err := json.Unmarshal(raw, &d); err != nil {
		return cases.Detail{}, &NetworkError{Op: "decode case", Err: err}
	}
	return d, nil
}

// CreateCase posts a new case. The response body is ignored.
func (c *Client) CreateCase(ctx context.Context, d cases.Draft) error {
	return c.do(ctx, "create case", http.MethodPost, "/api/cases", d, nil)
}

// UpdateCase sends the full edited record for id.
func (c *Client) UpdateCase(ctx context.Context, id int64, d cases.Detail) error {
	return c.do(ctx, "update case", http.MethodPatch, fmt.Sprintf("/api/cases/%d", id), d, nil)
}
