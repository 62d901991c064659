package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler consumes hazard-report insert events and runs dispatch for
// each one.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	service          *Service
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Service          *Service
	Logger           zerolog.Logger
}

// ReportEvent is the message published by the report-insert trigger.
type ReportEvent struct {
	EventType string       `json:"event_type"`
	Report    HazardReport `json:"report"`
}

// EventTypeReportInserted identifies new-report events.
const EventTypeReportInserted = "hazard_report_inserted"

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		service:          cfg.Service,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing report events.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting hazard report subscriber")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	var event ReportEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error().Err(err).Msg("failed to parse report event")
		msg.Nack()
		return
	}

	if event.EventType != EventTypeReportInserted {
		logger.Warn().Str("event_type", event.EventType).Msg("unknown event type")
		msg.Ack() // Ack unknown events to prevent redelivery
		return
	}

	result, err := h.service.DispatchHazardAlerts(ctx, event.Report)
	if err != nil {
		// Dispatch is idempotent within the rate-limit window; safe to retry.
		logger.Error().Err(err).
			Str("report_id", event.Report.ID).
			Msg("dispatch failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("report_id", event.Report.ID).
		Str("severity", string(result.Severity)).
		Int("notifications_sent", result.NotificationsSent).
		Dur("duration", time.Since(startTime)).
		Msg("report event processed")

	msg.Ack()
}
