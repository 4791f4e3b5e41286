package telegram

import (
	"context"
	"log/slog"
	"time"
)

// Handler processes one update.
type Handler interface {
	HandleUpdate(ctx context.Context, u Update)
}

// UpdateSource is the getUpdates half of Client.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// UpdatePoller long-polls for updates and hands each to a Handler in order.
type UpdatePoller struct {
	source     UpdateSource
	handler    Handler
	timeout    time.Duration
	errorPause time.Duration
	logger     *slog.Logger

	offset int64
}

// NewUpdatePoller creates an update poller.
func NewUpdatePoller(source UpdateSource, handler Handler, timeout time.Duration, logger *slog.Logger) *UpdatePoller {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &UpdatePoller{
		source:     source,
		handler:    handler,
		timeout:    timeout,
		errorPause: 3 * time.Second,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled.
func (p *UpdatePoller) Run(ctx context.Context) error {
	p.logger.Info("update poller started", "timeout", p.timeout)

	for {
		if ctx.Err() != nil {
			p.logger.Info("update poller stopped")
			return nil
		}

		updates, err := p.source.GetUpdates(ctx, p.offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("get updates failed", "error", err)

			select {
			case <-ctx.Done():
			case <-time.After(p.errorPause):
			}
			continue
		}

		for _, u := range updates {
			p.handler.HandleUpdate(ctx, u)
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
		}
	}
}
