package api

import (
	"context"
	"fmt"
)

// GetAccountReport fetches the account's risk snapshot from
// GET /rest/risk/accountReport/{account}, used to poll cash balances when
// balance.mode is risk_poll.
func (c *Client) GetAccountReport(ctx context.Context, account string) (*AccountReport, error) {
	var report AccountReport
	if err := c.get(ctx, "/rest/risk/accountReport/"+account, nil, &report); err != nil {
		return nil, fmt.Errorf("get account report for %s: %w", account, err)
	}
	return &report, nil
}
