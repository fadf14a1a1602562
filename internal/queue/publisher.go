package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/albaranes/internal/logs"
)

// DefaultDialTimeout bounds how long a publish waits for the broker. Sends
// happen inside register, forgot-password and invite requests.
const DefaultDialTimeout = 3 * time.Second

// Publisher sends MailEvents to a durable queue. It dials per publish; the
// mail flows are rare enough that a pooled connection is not worth keeping.
type Publisher struct {
	URL         string
	Queue       string
	DialTimeout time.Duration
}

func NewPublisher(url, queue string) *Publisher {
	return &Publisher{URL: url, Queue: queue, DialTimeout: DefaultDialTimeout}
}

// Send publishes ev as a persistent JSON message.
func (p *Publisher) Send(ctx context.Context, ev MailEvent) error {
	log := logs.Logger.WithFields(logrus.Fields{"queue": p.Queue, "kind": ev.Kind, "user_id": ev.UserID})

	// amqp.Dial waits up to 30s for an unreachable broker; keep the request
	// from hanging that long.
	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		left := time.Until(dl)
		if left <= 0 {
			return ctx.Err()
		}
		if left < timeout {
			timeout = left
		}
	}
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		log.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		log.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", p.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.CreatedAt,
		Body:         body,
	})
	if err != nil {
		log.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}

// LogSender is used when no broker is configured: the event is only logged.
// Codes grant access to accounts, so they only show up at debug level, which
// is enough for local development to pick them up.
type LogSender struct{}

func (LogSender) Send(_ context.Context, ev MailEvent) error {
	entry := logs.Logger.WithFields(logrus.Fields{"kind": ev.Kind, "to": ev.To, "user_id": ev.UserID})
	entry.Info("mail dispatch (no broker configured)")
	entry.WithField("code", ev.Code).Debug("mail code")
	return nil
}
