package api

import "encoding/json"

// Info request types.
const (
	TypeMetaAndAssetCtxs   = "metaAndAssetCtxs"
	TypeClearinghouseState = "clearinghouseState"
)

// InfoRequest is the body of every info query.
type InfoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// Meta is element 0 of the metaAndAssetCtxs response.
type Meta struct {
	Universe []AssetMeta `json:"universe"`
}

// AssetMeta describes one tradable asset. Its index in Meta.Universe is
// the index of its context in the parallel asset context list.
type AssetMeta struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
	IsDelisted  bool   `json:"isDelisted,omitempty"`
}

// AssetCtx is one entry of element 1 of the metaAndAssetCtxs response.
type AssetCtx struct {
	MarkPx       *string `json:"markPx"`
	OraclePx     string  `json:"oraclePx"`
	MidPx        *string `json:"midPx"`
	Funding      string  `json:"funding"`
	OpenInterest string  `json:"openInterest"`
	DayNtlVlm    string  `json:"dayNtlVlm"`
}

// metaAndAssetCtxsResponse is the raw two-element response.
type metaAndAssetCtxsResponse []json.RawMessage

// ClearinghouseState is the clearinghouseState response.
type ClearinghouseState struct {
	MarginSummary              MarginSummary   `json:"marginSummary"`
	CrossMarginSummary         *MarginSummary  `json:"crossMarginSummary"`
	CrossMaintenanceMarginUsed *string         `json:"crossMaintenanceMarginUsed"`
	Withdrawable               string          `json:"withdrawable"`
	AssetPositions             []AssetPosition `json:"assetPositions"`
	Time                       int64           `json:"time"`
}

// MarginSummary holds account-level margin figures as decimal strings.
type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// AssetPosition wraps one position.
type AssetPosition struct {
	Type     string      `json:"type"` // "oneWay"
	Position APIPosition `json:"position"`
}

// APIPosition is a position as reported by the exchange.
type APIPosition struct {
	Coin           string      `json:"coin"`
	Szi            string      `json:"szi"`
	Sz             string      `json:"sz"` // older payloads
	Leverage       APILeverage `json:"leverage"`
	EntryPx        *string     `json:"entryPx"`
	PositionValue  string      `json:"positionValue"`
	UnrealizedPnl  string      `json:"unrealizedPnl"`
	ReturnOnEquity string      `json:"returnOnEquity"`
	LiquidationPx  *string     `json:"liquidationPx"`
	MarginUsed     string      `json:"marginUsed"`
}

// APILeverage is the leverage descriptor of a position.
type APILeverage struct {
	Type  string `json:"type"` // "cross" or "isolated"
	Value int    `json:"value"`
}
