package alert

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
)

// Dispatcher fans out events to the webhooks subscribed to their type.
type Dispatcher struct {
	configs []WebhookConfig
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty; a nil Dispatcher drops every event.
func NewDispatcher(configs []WebhookConfig, logger *slog.Logger) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{configs: configs, logger: logger}
}

// Dispatch sends event to every matching webhook in the background.
// Delivery failures are logged.
func (d *Dispatcher) Dispatch(event Event) {
	if d == nil {
		return
	}
	for _, cfg := range d.configs {
		if !slices.Contains(cfg.Events, event.Type) {
			continue
		}
		d.wg.Add(1)
		go func(cfg WebhookConfig) {
			defer d.wg.Done()
			if err := Send(context.Background(), cfg, event); err != nil {
				d.logger.Warn("alert delivery failed", "url", cfg.URL, "type", event.Type, "error", err)
			}
		}(cfg)
	}
}

// Wait blocks until every dispatched delivery has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
