package risk

import (
	"errors"
	"math"
	"sort"

	"github.com/rickgao/liqwatch/internal/model"
)

// DefaultThreshold is the margin ratio and isolated progress above which a
// wallet is alerted.
const DefaultThreshold = 0.70

var (
	// ErrAssetNotFound is recorded for positions whose coin is absent from
	// the market snapshot.
	ErrAssetNotFound = errors.New("asset not in market snapshot")

	// ErrDegenerateRange is recorded for isolated positions whose entry
	// price equals their liquidation price.
	ErrDegenerateRange = errors.New("entry price equals liquidation price")
)

// Evaluator applies the liquidation proximity rules.
type Evaluator struct {
	Threshold float64
}

// NewEvaluator creates an evaluator. A threshold outside (0, 1] falls back
// to DefaultThreshold.
func NewEvaluator(threshold float64) *Evaluator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Evaluator{Threshold: threshold}
}

// Evaluate computes the risk assessment for one wallet.
func (e *Evaluator) Evaluate(wallet string, state model.AccountState, snap model.MarketSnapshot) model.RiskAssessment {
	a := model.RiskAssessment{
		Wallet:                     wallet,
		CrossAccountValue:          state.CrossAccountValue,
		CrossMaintenanceMarginUsed: state.CrossMaintenanceMarginUsed,
	}

	if state.CrossAccountValue != 0 {
		a.CrossEvaluated = true
		a.MarginRatio = state.CrossMaintenanceMarginUsed / state.CrossAccountValue
		a.CrossAlert = a.MarginRatio > e.Threshold
	}

	for _, pos := range state.Positions {
		switch pos.MarginMode() {
		case model.MarginCross:
			if !a.CrossAlert {
				continue
			}
			risk, err := crossRisk(pos, snap)
			if err != nil {
				a.Skipped = append(a.Skipped, model.PositionSkip{Coin: pos.Coin, Reason: err})
				continue
			}
			a.CrossAtRisk = append(a.CrossAtRisk, risk)

		case model.MarginIsolated:
			risk, flagged, err := e.isolatedRisk(pos, snap)
			if err != nil {
				a.Skipped = append(a.Skipped, model.PositionSkip{Coin: pos.Coin, Reason: err})
				continue
			}
			if flagged {
				a.IsolatedAtRisk = append(a.IsolatedAtRisk, risk)
			}
		}
	}

	sort.SliceStable(a.CrossAtRisk, func(i, j int) bool {
		return a.CrossAtRisk[i].MoveBeforeLiquidation < a.CrossAtRisk[j].MoveBeforeLiquidation
	})

	return a
}

// crossRisk computes |mark - liq| / mark. A position without a liquidation
// price is treated as maximally safe (1).
func crossRisk(pos model.Position, snap model.MarketSnapshot) (model.PositionRisk, error) {
	mark, ok := snap.MarkPrice(pos.Coin)
	if !ok {
		return model.PositionRisk{}, ErrAssetNotFound
	}

	move := 1.0
	if pos.LiquidationPrice != nil {
		move = math.Abs(mark-*pos.LiquidationPrice) / mark
	}

	return model.PositionRisk{
		Coin:                  pos.Coin,
		MarginMode:            model.MarginCross,
		MarkPrice:             mark,
		EntryPrice:            pos.EntryPrice,
		LiquidationPrice:      pos.LiquidationPrice,
		MoveBeforeLiquidation: move,
	}, nil
}

// isolatedRisk flags a losing isolated position whose progress from entry
// toward liquidation exceeds the threshold.
func (e *Evaluator) isolatedRisk(pos model.Position, snap model.MarketSnapshot) (model.PositionRisk, bool, error) {
	if pos.UnrealizedPnl > 0 || pos.LiquidationPrice == nil {
		return model.PositionRisk{}, false, nil
	}

	mark, ok := snap.MarkPrice(pos.Coin)
	if !ok {
		return model.PositionRisk{}, false, ErrAssetNotFound
	}

	liq := *pos.LiquidationPrice
	span := math.Abs(pos.EntryPrice - liq)
	if span == 0 {
		return model.PositionRisk{}, false, ErrDegenerateRange
	}

	progress := math.Abs(mark-pos.EntryPrice) / span

	return model.PositionRisk{
		Coin:                  pos.Coin,
		MarginMode:            model.MarginIsolated,
		MarkPrice:             mark,
		EntryPrice:            pos.EntryPrice,
		LiquidationPrice:      pos.LiquidationPrice,
		MoveBeforeLiquidation: progress,
	}, progress > e.Threshold, nil
}
