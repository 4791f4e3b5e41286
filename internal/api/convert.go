package api

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/liqwatch/internal/model"
)

// ParseDecimal parses an exchange decimal string into a finite float64.
// field names the value in the returned error.
func ParseDecimal(field, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, malformed("%s is empty", field)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, malformed("%s=%q is not a decimal", field, s)
	}

	return f, nil
}

// parseOptionalDecimal returns 0 for an empty value.
func parseOptionalDecimal(field, s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return ParseDecimal(field, s)
}

// parseSnapshot decodes the two-element metaAndAssetCtxs response.
// Any shape violation or non-positive mark price rejects the whole snapshot.
func parseSnapshot(raw metaAndAssetCtxsResponse, fetchedAt time.Time) (model.MarketSnapshot, error) {
	if len(raw) != 2 {
		return model.MarketSnapshot{}, malformed("expected 2 elements, got %d", len(raw))
	}

	var meta Meta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return model.MarketSnapshot{}, malformed("decode meta: %v", err)
	}

	var ctxs []AssetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return model.MarketSnapshot{}, malformed("decode asset contexts: %v", err)
	}

	if len(meta.Universe) != len(ctxs) {
		return model.MarketSnapshot{}, malformed("universe has %d assets but %d contexts", len(meta.Universe), len(ctxs))
	}

	prices := make(map[string]float64, len(ctxs))
	for i, asset := range meta.Universe {
		if asset.Name == "" {
			return model.MarketSnapshot{}, malformed("asset %d has no name", i)
		}
		if ctxs[i].MarkPx == nil {
			return model.MarketSnapshot{}, malformed("%s has no markPx", asset.Name)
		}

		px, err := ParseDecimal(asset.Name+".markPx", *ctxs[i].MarkPx)
		if err != nil {
			return model.MarketSnapshot{}, err
		}
		if px <= 0 {
			return model.MarketSnapshot{}, malformed("%s.markPx=%v is not positive", asset.Name, px)
		}

		prices[asset.Name] = px
	}

	return model.NewMarketSnapshot(prices, fetchedAt), nil
}

// ToModel converts a clearinghouse response into model.AccountState.
func (s *ClearinghouseState) ToModel() (model.AccountState, error) {
	var state model.AccountState

	if s.CrossMarginSummary == nil {
		return state, malformed("crossMarginSummary missing")
	}
	if s.CrossMaintenanceMarginUsed == nil {
		return state, malformed("crossMaintenanceMarginUsed missing")
	}

	var err error
	if state.AccountValue, err = parseOptionalDecimal("marginSummary.accountValue", s.MarginSummary.AccountValue); err != nil {
		return state, err
	}
	if state.CrossAccountValue, err = ParseDecimal("crossMarginSummary.accountValue", s.CrossMarginSummary.AccountValue); err != nil {
		return state, err
	}
	if state.CrossMaintenanceMarginUsed, err = ParseDecimal("crossMaintenanceMarginUsed", *s.CrossMaintenanceMarginUsed); err != nil {
		return state, err
	}

	state.Positions = make([]model.Position, 0, len(s.AssetPositions))
	for _, ap := range s.AssetPositions {
		pos, err := ap.Position.ToModel()
		if err != nil {
			return model.AccountState{}, err
		}
		state.Positions = append(state.Positions, pos)
	}

	return state, nil
}

// ToModel converts an APIPosition into model.Position.
func (p *APIPosition) ToModel() (model.Position, error) {
	if p.Coin == "" {
		return model.Position{}, malformed("position without coin")
	}

	pos := model.Position{
		Coin: p.Coin,
		Leverage: model.Leverage{
			Mode:  model.MarginMode(p.Leverage.Type),
			Value: p.Leverage.Value,
		},
	}

	switch pos.Leverage.Mode {
	case model.MarginCross, model.MarginIsolated:
	default:
		return model.Position{}, malformed("%s leverage type %q", p.Coin, p.Leverage.Type)
	}

	size := p.Szi
	if size == "" {
		size = p.Sz
	}

	var err error
	if pos.Size, err = ParseDecimal(p.Coin+".szi", size); err != nil {
		return model.Position{}, err
	}
	if p.EntryPx == nil {
		return model.Position{}, malformed("%s has no entryPx", p.Coin)
	}
	if pos.EntryPrice, err = ParseDecimal(p.Coin+".entryPx", *p.EntryPx); err != nil {
		return model.Position{}, err
	}
	if pos.UnrealizedPnl, err = parseOptionalDecimal(p.Coin+".unrealizedPnl", p.UnrealizedPnl); err != nil {
		return model.Position{}, err
	}

	if p.LiquidationPx != nil {
		liq, err := ParseDecimal(p.Coin+".liquidationPx", *p.LiquidationPx)
		if err != nil {
			return model.Position{}, err
		}
		pos.LiquidationPrice = &liq
	}

	return pos, nil
}
