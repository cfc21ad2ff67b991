package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Event is one change notification from the case event stream.
type Event struct {
	Type   string `json:"type"`
	Entity string `json:"entity,omitempty"`
	CaseID int64  `json:"case_id,omitempty"`
}

// Events subscribes to the server-sent case event stream. The channel is
// closed when ctx ends or the stream drops; there is no reconnect.
func (c *Client) Events(ctx context.Context) (<-chan Event, error) {
	req, err := c.newRequest(ctx, "case events", http.MethodGet, "/api/cases/events", nil, true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "case events", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &RejectionError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			// comments (": ping") and blank separators carry no data
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var ev Event
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev); err != nil {
				c.log.Debug("skip malformed event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
