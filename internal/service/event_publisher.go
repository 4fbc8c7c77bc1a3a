package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/surveyops/review-api/internal/observability"
	"github.com/surveyops/review-api/internal/workflow"
)

// transitionMessage is the wire form of a transition-completed event.
type transitionMessage struct {
	Source string                   `json:"source"`
	Event  workflow.TransitionEvent `json:"event"`
	SentAt time.Time                `json:"sent_at"`
}

// EventPublisher fans completed transitions out to downstream consumers
// (notification senders, dashboards). Delivery is fire-and-forget: a failed
// publish is logged and never affects the transition itself.
type EventPublisher struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	nodeID      string
}

// NewEventPublisher constructs the publisher. Both clients are optional.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *EventPublisher {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":transitions"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".transitions"
	}

	return &EventPublisher{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
		nodeID:      uuid.NewString(),
	}
}

// Attach registers the publisher on the engine's transition hook.
func (p *EventPublisher) Attach(engine *workflow.Engine) {
	engine.OnTransitionCompleted(p.handle)
}

func (p *EventPublisher) handle(event workflow.TransitionEvent) {
	observability.TransitionsTotal().
		WithLabelValues(string(event.Action), string(event.NewStatus)).
		Inc()
	if event.Action == workflow.ActionApplySampling {
		observability.SamplingOutcomesTotal().
			WithLabelValues(string(event.NewStatus)).
			Inc()
	}

	payload, err := json.Marshal(transitionMessage{
		Source: p.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to encode transition event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if p.redis != nil && p.redisStream != "" {
		if err := p.redis.Publish(ctx, p.redisStream, payload).Err(); err != nil {
			p.logger.Warn().Err(err).Str("record_id", event.RecordID).Msg("failed to publish transition event to redis")
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			p.logger.Warn().Err(err).Str("record_id", event.RecordID).Msg("failed to publish transition event to nats")
		}
	}
}
