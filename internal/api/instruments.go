package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetInstruments fetches the full instrument universe from
// GET /rest/instruments/all. The endpoint has been observed returning either
// a bare JSON array of instruments or an object wrapping them in an
// "instruments" field; both are accepted.
func (c *Client) GetInstruments(ctx context.Context) ([]Instrument, error) {
	body, err := c.doWithRetry(ctx, "GET", "/rest/instruments/all", nil)
	if err != nil {
		return nil, fmt.Errorf("get instruments: %w", err)
	}

	var list []Instrument
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var wrapped instrumentsResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal instruments response: %w", err)
	}
	return wrapped.Instruments, nil
}
