package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	KeyReplyPublished = "review_reply.published.v1"
	KeyRunCompleted   = "autopublish.run.completed.v1"

	producer = "review-autopublisher"
)

type Meta struct {
	ID            string    `json:"id"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Producer      *string   `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope stamps a fresh id; correlationID is usually the run id.
func NewEnvelope(key, correlationID string, data any) Envelope {
	p := producer
	env := Envelope{
		Meta: Meta{ID: uuid.NewString(), Producer: &p, Time: time.Now().UTC(), Type: key},
		Data: data,
	}
	if correlationID != "" {
		env.Meta.CorrelationID = &correlationID
	}
	return env
}

// ReplyPublished is the payload of KeyReplyPublished.
type ReplyPublished struct {
	DraftID          string    `json:"draft_id"`
	TenantID         string    `json:"tenant_id"`
	ReviewExternalID string    `json:"review_external_id"`
	PublishedAt      time.Time `json:"published_at"`
}

type Publisher interface {
	Publish(ctx context.Context, key string, msg Envelope) error
	Close() error
}

// Nop discards events; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, Envelope) error { return nil }
func (Nop) Close() error                                    { return nil }

type rmqClient struct {
	conn     *amqp091.Connection
	exchange string
	log      logrus.FieldLogger
}

// Dial connects to RabbitMQ and declares a durable topic exchange.
func Dial(url, exchange string, log logrus.FieldLogger) (Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &rmqClient{conn: conn, exchange: exchange, log: log}, nil
}

func (r *rmqClient) Publish(ctx context.Context, key string, msg Envelope) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	cid := ""
	if msg.Meta.CorrelationID != nil {
		cid = *msg.Meta.CorrelationID
	}
	err = ch.PublishWithContext(ctx, r.exchange, key, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     msg.Meta.ID,
		CorrelationId: cid,
		Timestamp:     msg.Meta.Time,
		Body:          body,
	})
	if err == nil {
		r.log.WithFields(logrus.Fields{"key": key, "exchange": r.exchange}).Debug("event published")
	}
	return err
}

func (r *rmqClient) Close() error {
	return r.conn.Close()
}
