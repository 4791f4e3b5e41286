// Package telegram is a minimal Telegram Bot API client.
//
// Only the two methods the monitor needs are implemented:
//   - sendMessage: alert and reply delivery (Markdown, previews disabled)
//   - getUpdates: long polling for chat commands
//
// The bot token is part of every request path and is never logged.
package telegram
