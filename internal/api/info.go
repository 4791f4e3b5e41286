package api

import (
	"context"
	"time"

	"github.com/rickgao/liqwatch/internal/model"
)

// FetchMarketSnapshot retrieves mark prices for every listed asset in one
// request. Fails with *FetchError on transport, status or decoding errors;
// no partial snapshot is ever returned. The request is attempted once, even
// on a retryable status.
func (c *Client) FetchMarketSnapshot(ctx context.Context) (model.MarketSnapshot, error) {
	var raw metaAndAssetCtxsResponse
	if err := c.infoOnce(ctx, TypeMetaAndAssetCtxs, InfoRequest{Type: TypeMetaAndAssetCtxs}, &raw); err != nil {
		return model.MarketSnapshot{}, err
	}

	snap, err := parseSnapshot(raw, time.Now())
	if err != nil {
		return model.MarketSnapshot{}, &FetchError{Op: TypeMetaAndAssetCtxs, Err: err}
	}

	c.logger.Debug("fetched market snapshot", "assets", snap.Len())

	return snap, nil
}

// GetAccountState retrieves the perpetuals account state of a wallet.
func (c *Client) GetAccountState(ctx context.Context, wallet string) (model.AccountState, error) {
	var resp ClearinghouseState
	req := InfoRequest{Type: TypeClearinghouseState, User: wallet}
	if err := c.info(ctx, TypeClearinghouseState, req, &resp); err != nil {
		return model.AccountState{}, err
	}

	state, err := resp.ToModel()
	if err != nil {
		return model.AccountState{}, &FetchError{Op: TypeClearinghouseState, Err: err}
	}

	return state, nil
}
