package model

import (
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Market Data
// -----------------------------------------------------------------------------

// MarketSnapshot is the set of mark prices for every tradable asset, captured
// from a single response. It is never mutated after construction.
type MarketSnapshot struct {
	prices    map[string]float64
	fetchedAt time.Time
}

// NewMarketSnapshot copies prices into an immutable snapshot.
func NewMarketSnapshot(prices map[string]float64, fetchedAt time.Time) MarketSnapshot {
	cp := make(map[string]float64, len(prices))
	for coin, px := range prices {
		cp[coin] = px
	}
	return MarketSnapshot{prices: cp, fetchedAt: fetchedAt}
}

// MarkPrice returns the mark price for coin.
func (s MarketSnapshot) MarkPrice(coin string) (float64, bool) {
	px, ok := s.prices[coin]
	return px, ok
}

// Len returns the number of assets in the snapshot.
func (s MarketSnapshot) Len() int {
	return len(s.prices)
}

// Coins returns the asset symbols in lexical order.
// FetchedAt returns when the snapshot was captured.
func (s MarketSnapshot) FetchedAt() time.Time {
	return s.fetchedAt
}

// -----------------------------------------------------------------------------
// Account State
// -----------------------------------------------------------------------------

// MarginMode is how a position's collateral is held.
type MarginMode string

const (
	MarginCross    MarginMode = "cross"
	MarginIsolated MarginMode = "isolated"
)

// Leverage describes the leverage setting of a position.
type Leverage struct {
	Mode  MarginMode
	Value int
}

// Position is one open perpetual position.
type Position struct {
	Coin             string
	Leverage         Leverage
	EntryPrice       float64
	LiquidationPrice *float64 // nil: cannot be liquidated at any price
	UnrealizedPnl    float64
	Size             float64 // signed, negative for shorts
}

// MarginMode returns the position's margin mode.
func (p Position) MarginMode() MarginMode {
	return p.Leverage.Mode
}

// AccountState is the subset of the clearinghouse state the monitor needs.
type AccountState struct {
	// AccountValue is the total account value across margin modes.
	AccountValue float64

	// CrossAccountValue is the account value of the cross margin pool.
	CrossAccountValue float64

	// CrossMaintenanceMarginUsed is the maintenance margin of cross positions.
	CrossMaintenanceMarginUsed float64

	Positions []Position
}

// -----------------------------------------------------------------------------
// Risk
// -----------------------------------------------------------------------------

// PositionRisk is a position flagged as close to liquidation.
type PositionRisk struct {
	Coin             string
	MarginMode       MarginMode
	MarkPrice        float64
	EntryPrice       float64
	LiquidationPrice *float64

	// MoveBeforeLiquidation is the proximity measure. For cross positions it
	// is the relative price move left before liquidation (smaller is more
	// urgent). For isolated positions it is the fraction of the
	// entry-to-liquidation distance already travelled (larger is more urgent).
	MoveBeforeLiquidation float64
}

// PositionSkip records a position that could not be evaluated.
type PositionSkip struct {
	Coin   string
	Reason error
}

// RiskAssessment is the result of evaluating one wallet against one snapshot.
type RiskAssessment struct {
	Wallet string

	CrossAccountValue          float64
	CrossMaintenanceMarginUsed float64
	MarginRatio                float64

	// CrossEvaluated is false when the cross account value is zero and the
	// cross side was skipped.
	CrossEvaluated bool

	// CrossAlert is true when MarginRatio exceeded the threshold.
	CrossAlert bool

	// CrossAtRisk is ordered by ascending MoveBeforeLiquidation.
	CrossAtRisk []PositionRisk

	IsolatedAtRisk []PositionRisk

	Skipped []PositionSkip
}

// HasAlerts reports whether anything should be sent for this assessment.
func (a RiskAssessment) HasAlerts() bool {
	return a.CrossAlert || len(a.IsolatedAtRisk) > 0
}

// -----------------------------------------------------------------------------
// Liquidation Stream
// -----------------------------------------------------------------------------

// Direction is the side of the positions being liquidated.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// DirectionFromLabel maps an exchange fill direction label such as
// "Close Long" or "Liquidated Short" to a Direction.
func DirectionFromLabel(label string) Direction {
	if strings.Contains(label, "Long") {
		return DirectionLong
	}
	return DirectionShort
}

// Fill is one execution reported on the user events stream.
type Fill struct {
	Coin        string
	Price       float64
	Size        float64
	Side        string
	Dir         string
	Time        int64 // ms since epoch
	Liquidation *LiquidationMarker
}

// LiquidationMarker is present on fills produced by a liquidation.
type LiquidationMarker struct {
	LiquidatedUser string
	MarkPrice      float64
	Method         string
}

// AssetLiquidation aggregates the liquidation fills of one asset in a batch.
type AssetLiquidation struct {
	Coin      string
	Size      float64
	Notional  float64
	MarkPrice float64 // last observed in the batch
	Fills     int
}

// AveragePrice is the size-weighted fill price.
func (a AssetLiquidation) AveragePrice() float64 {
	if a.Size == 0 {
		return 0
	}
	return a.Notional / a.Size
}

// LiquidationEvent is the aggregate of one stream message's liquidation fills.
type LiquidationEvent struct {
	Direction Direction
	Label     string // exchange direction label of the first liquidation fill

	// Assets are in first-seen order.
	Assets []AssetLiquidation
}

// TotalNotional sums notional across assets.
func (e LiquidationEvent) TotalNotional() float64 {
	var total float64
	for _, a := range e.Assets {
		total += a.Notional
	}
	return total
}
