package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const DefaultSubject = "taskflow.aggregates.changed"

// NATS carries events between service instances sharing one store.
type NATS struct {
	conn    *nats.Conn
	subject string
	log     *zap.Logger
}

// Connect dials url with reconnects enabled.
func Connect(url, subject string, log *zap.Logger) (*NATS, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("taskflow"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return NewNATS(nc, subject, log), nil
}

func NewNATS(nc *nats.Conn, subject string, log *zap.Logger) *NATS {
	if log == nil {
		log = zap.NewNop()
	}
	return &NATS{conn: nc, subject: subject, log: log.Named("changefeed")}
}

func (n *NATS) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	return nil
}

func (n *NATS) Subscribe(fn func(Event)) (func(), error) {
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			n.log.Warn("dropping malformed event", zap.Error(err))
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", n.subject, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

func (n *NATS) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
