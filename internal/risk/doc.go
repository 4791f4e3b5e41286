// Package risk evaluates how close a wallet's positions are to liquidation.
//
// Cross margin positions share one collateral pool. The pool is considered at
// risk when the margin ratio (maintenance margin used / cross account value)
// exceeds the configured threshold. Each cross position then gets a proximity
// figure: the relative move of the mark price left before its liquidation
// price is reached.
//
// Isolated positions are judged individually: a losing position whose mark
// price has travelled more than the threshold fraction of the distance from
// entry to liquidation is flagged.
//
// Evaluation is pure. Positions that cannot be evaluated are reported in
// RiskAssessment.Skipped rather than logged here.
package risk
