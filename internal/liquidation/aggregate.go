// Package liquidation turns the fills of one stream message into a
// per-asset liquidation summary.
package liquidation

import "github.com/rickgao/liqwatch/internal/model"

// Aggregate groups the liquidation fills of one message by asset, summing
// size and notional and keeping the last mark price seen per asset.
// Fills without a liquidation marker are ignored. The batch direction is
// taken from the first liquidation fill. Returns false when no fill carried
// a liquidation marker.
func Aggregate(fills []model.Fill) (model.LiquidationEvent, bool) {
	var ev model.LiquidationEvent
	index := make(map[string]int)

	for _, f := range fills {
		if f.Liquidation == nil {
			continue
		}

		if len(ev.Assets) == 0 {
			ev.Label = f.Dir
			ev.Direction = model.DirectionFromLabel(f.Dir)
		}

		i, ok := index[f.Coin]
		if !ok {
			i = len(ev.Assets)
			index[f.Coin] = i
			ev.Assets = append(ev.Assets, model.AssetLiquidation{Coin: f.Coin})
		}

		a := &ev.Assets[i]
		a.Size += f.Size
		a.Notional += f.Size * f.Price
		a.MarkPrice = f.Liquidation.MarkPrice
		a.Fills++
	}

	return ev, len(ev.Assets) > 0
}
