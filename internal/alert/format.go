package alert

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rickgao/liqwatch/internal/model"
	"github.com/rickgao/liqwatch/internal/wallet"
)

// Kind labels an alert for delivery metrics.
type Kind string

const (
	KindCrossSummary Kind = "cross_summary"
	KindCrossDetail  Kind = "cross_detail"
	KindIsolated     Kind = "isolated"
	KindLiquidation  Kind = "liquidation"
	KindReply        Kind = "reply"
)

// Alert is a rendered message.
type Alert struct {
	Kind Kind
	Text string
}

// DefaultExplorerURL is the address page prefix used for wallet links.
const DefaultExplorerURL = "https://app.hyperliquid.xyz/explorer/address/"

const tradeURL = "https://app.hyperliquid.xyz/trade"

// Formatter renders alert templates.
type Formatter struct {
	explorerURL string
}

// NewFormatter creates a formatter linking wallets to explorerURL.
func NewFormatter(explorerURL string) *Formatter {
	if explorerURL == "" {
		explorerURL = DefaultExplorerURL
	}
	return &Formatter{explorerURL: explorerURL}
}

// RiskAlerts renders every alert an assessment calls for, in send order:
// cross summary, cross detail, then one message per isolated position.
func (f *Formatter) RiskAlerts(a model.RiskAssessment) []Alert {
	var alerts []Alert

	if a.CrossAlert {
		alerts = append(alerts, Alert{Kind: KindCrossSummary, Text: f.CrossSummary(a)})
		if len(a.CrossAtRisk) > 0 {
			alerts = append(alerts, Alert{Kind: KindCrossDetail, Text: f.CrossDetail(a.CrossAtRisk)})
		}
	}

	for _, p := range a.IsolatedAtRisk {
		alerts = append(alerts, Alert{Kind: KindIsolated, Text: f.Isolated(a.Wallet, p)})
	}

	return alerts
}

// CrossSummary renders the account-level cross margin alert.
func (f *Formatter) CrossSummary(a model.RiskAssessment) string {
	var b strings.Builder

	b.WriteString("⚠️ *Cross margin liquidation risk alert* ⚠️\n")
	fmt.Fprintf(&b, "Wallet *%s*\n", wallet.Shorten(a.Wallet, 8, 6))
	fmt.Fprintf(&b, "• Cross margin account value: *%s*\n", Money(a.CrossAccountValue))
	fmt.Fprintf(&b, "• Margin ratio: *%s* (cross positions are liquidated when the margin ratio reaches 100%%)\n", Percent(a.MarginRatio))
	fmt.Fprintf(&b, "• Maintenance margin used: *%s*\n", Money(a.CrossMaintenanceMarginUsed))
	fmt.Fprintf(&b, "• *%d %s* at risk (liquidation prices move with the market, monitor your positions on [Hyperliquid](%s))\n",
		len(a.CrossAtRisk), plural(len(a.CrossAtRisk), "position", "positions"), tradeURL)

	return b.String()
}

// CrossDetail lists cross positions, most imminent first.
func (f *Formatter) CrossDetail(positions []model.PositionRisk) string {
	parts := make([]string, 0, len(positions))
	for _, p := range positions {
		parts = append(parts, fmt.Sprintf("• %s\n  Current price: %s\n  Liquidation price: %s\n",
			p.Coin, Price(p.MarkPrice), optionalPrice(p.LiquidationPrice)))
	}
	return strings.Join(parts, "\n")
}

// Isolated renders the alert for one isolated position.
func (f *Formatter) Isolated(addr string, p model.PositionRisk) string {
	var b strings.Builder

	b.WriteString("⚠️ *Isolated position liquidation risk alert* ⚠️\n")
	fmt.Fprintf(&b, "Wallet: *%s*\n", wallet.Shorten(addr, 8, 6))
	fmt.Fprintf(&b, "Position at risk: %s\n", p.Coin)
	fmt.Fprintf(&b, "Current price: $%s\n", Price(p.MarkPrice))
	fmt.Fprintf(&b, "Liquidation price: $%s\n", optionalPrice(p.LiquidationPrice))

	return b.String()
}

// Liquidation renders an aggregated liquidation event.
func (f *Formatter) Liquidation(ev model.LiquidationEvent) string {
	var b strings.Builder

	emoji := "📈"
	if ev.Direction == model.DirectionLong {
		emoji = "📉"
	}
	fmt.Fprintf(&b, "%s *%s*\n", emoji, EscapeMarkdown(ev.Label))

	for _, a := range ev.Assets {
		fmt.Fprintf(&b, "• %s\n", a.Coin)
		fmt.Fprintf(&b, "  Size: %s\n", Price(a.Size))
		fmt.Fprintf(&b, "  Avg price: %s\n", Price(a.AveragePrice()))
		fmt.Fprintf(&b, "  Mark price: %s\n", Price(a.MarkPrice))
		fmt.Fprintf(&b, "  *%s*\n", Money(a.Notional))
	}

	if len(ev.Assets) > 1 {
		fmt.Fprintf(&b, "\nTotal: *%s*\n", Money(ev.TotalNotional()))
	}

	return b.String()
}

// WalletLink renders a shortened address linking to the explorer.
func (f *Formatter) WalletLink(addr string) string {
	return fmt.Sprintf("[%s](%s%s)", wallet.Shorten(addr, 10, 8), f.explorerURL, addr)
}

// Money renders a USD amount with two decimals.
func Money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// Percent renders a ratio as a percentage with one decimal.
func Percent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Shift(2).StringFixed(1) + "%"
}

// Price renders a price or size, rounded to 6 decimals, without trailing zeros.
func Price(v float64) string {
	return decimal.NewFromFloat(v).Round(6).String()
}

func optionalPrice(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return Price(*v)
}

// EscapeMarkdown escapes legacy Markdown control characters.
func EscapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '_', '*', '`', '[':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
