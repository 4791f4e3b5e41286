// Package api provides the exchange info-endpoint client.
//
// Every query is a JSON POST to a single URL:
//   - Mainnet: https://api.hyperliquid.xyz/info
//   - Testnet: https://api.hyperliquid-testnet.xyz/info
//
// Queries used here:
//   - {"type": "metaAndAssetCtxs"}: asset universe and parallel asset contexts (mark prices)
//   - {"type": "clearinghouseState", "user": <address>}: perpetuals account state
package api
