// Package alert renders chat messages and delivers them.
//
// Templates use Telegram legacy Markdown: *bold*, [text](url).
// Money is rendered with two decimals, ratios as percentages with one
// decimal ("75.0%"), and prices without trailing zeros.
//
// Delivery is best effort. Producers hand alerts to an Outbox, which queues
// them and sends each through a Dispatcher from a single goroutine, so a slow
// chat API never stalls polling or the stream read path.
package alert
