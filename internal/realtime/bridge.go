package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sunpeak/console-api/internal/model"
	"github.com/sunpeak/console-api/pkg/messaging"
	"github.com/sunpeak/console-api/pkg/metrics"
)

// Bridge forwards broker push events to the local hub. Every API instance
// runs one, so a notification created on any instance reaches users
// connected anywhere.
type Bridge struct {
	hub     *Hub
	broker  messaging.Broker
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewBridge(hub *Hub, broker messaging.Broker, logger zerolog.Logger, m *metrics.Metrics) *Bridge {
	return &Bridge{
		hub:     hub,
		broker:  broker,
		logger:  logger.With().Str("component", "realtime-bridge").Logger(),
		metrics: m,
	}
}

func (b *Bridge) Run(ctx context.Context) error {
	msgs, err := b.broker.Subscribe(ctx, model.PushChannel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to push channel: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			b.dispatch(raw)
		}
	}
}

func (b *Bridge) dispatch(raw []byte) {
	var ev model.PushEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.Notification == nil {
		b.metrics.PushDecodeFailures.Inc()
		b.logger.Warn().Err(err).Msg("dropping undecodable push event")
		return
	}

	// Clients expect one bare Notification per frame.
	payload, err := json.Marshal(ev.Notification)
	if err != nil {
		b.metrics.PushDecodeFailures.Inc()
		return
	}
	b.hub.SendToUser(ev.UserID, payload)
}
