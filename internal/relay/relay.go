// Package relay forwards accepted-order events to the Pub/Sub orders topic so
// systems outside this service can react to new orders.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cabinetworks/contractor-backend/internal/events"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"github.com/cabinetworks/contractor-backend/pkg/pubsub"
)

const (
	SubscriberName = "pubsub-relay"
	schemaVersion  = 1

	AttrEventType   = "event_type"
	AttrOrderNumber = "order_number"
	AttrGroupID     = "group_id"
)

// Envelope is the message body published for every relayed event.
type Envelope struct {
	EventType  string          `json:"event_type"`
	Version    int             `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Relay publishes ProposalAccepted to the orders topic.
type Relay struct {
	publisher pubsub.Publisher
	logg      *logger.Logger
}

func New(publisher pubsub.Publisher, logg *logger.Logger) (*Relay, error) {
	if publisher == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &Relay{publisher: publisher, logg: logg}, nil
}

func (r *Relay) Subscriber() events.Subscriber {
	return events.OnProposalAccepted(SubscriberName, func(ctx context.Context, ev events.ProposalAccepted) error {
		_, err := r.Forward(ctx, ev)
		return err
	})
}

// Forward publishes ev and returns the server-assigned message id.
func (r *Relay) Forward(ctx context.Context, ev events.ProposalAccepted) (string, error) {
	body, attrs, err := Encode(ev)
	if err != nil {
		return "", err
	}
	id, err := r.publisher.Publish(ctx, body, attrs)
	if err != nil {
		return "", fmt.Errorf("relay %s: %w", ev.OrderNumber, err)
	}
	if r.logg != nil {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"order_number": ev.OrderNumber,
			"message_id":   id,
		}), "relay.order.published")
	}
	return id, nil
}

// Encode builds the message body and attributes for ev.
func Encode(ev events.ProposalAccepted) ([]byte, map[string]string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal event: %w", err)
	}
	body, err := json.Marshal(Envelope{
		EventType:  ev.Name(),
		Version:    schemaVersion,
		OccurredAt: ev.AcceptedAt.UTC(),
		Data:       data,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal envelope: %w", err)
	}
	attrs := map[string]string{
		AttrEventType:   ev.Name(),
		AttrOrderNumber: ev.OrderNumber,
		AttrGroupID:     strconv.FormatInt(ev.GroupID, 10),
	}
	return body, attrs, nil
}
