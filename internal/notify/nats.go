package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSSink publishes rendered notifications to per-user subjects
// (<prefix>.<uid>) and keeps reconnecting for as long as the process runs.
type NATSSink struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSSink connects to the NATS server at url. prefix is the subject
// prefix, e.g. "washer.notify".
func NewNATSSink(url, prefix string, log *zap.Logger) (*NATSSink, error) {
	opts := []nats.Option{
		nats.Name("washd-notifier"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSSink{nc: nc, prefix: prefix}, nil
}

type wireMessage struct {
	Kind    Kind    `json:"kind"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	Payload Payload `json:"payload"`
}

func (s *NATSSink) Notify(ctx context.Context, intent Intent) error {
	if s.nc == nil || s.nc.IsClosed() {
		return fmt.Errorf("nats not connected")
	}
	title, body := Render(intent)
	data, err := json.Marshal(wireMessage{
		Kind:    intent.Kind,
		Title:   title,
		Body:    body,
		Payload: intent.Payload,
	})
	if err != nil {
		return err
	}
	return s.nc.Publish(s.prefix+"."+intent.TargetUserID, data)
}

// StatusSubject carries one JSON snapshot per committed transition, for
// external observers (washctl watch, dashboards).
const StatusSubject = "washer.status"

// PublishStatus broadcasts a committed snapshot on StatusSubject.
func (s *NATSSink) PublishStatus(v interface{}) error {
	if s.nc == nil || s.nc.IsClosed() {
		return fmt.Errorf("nats not connected")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.nc.Publish(StatusSubject, data)
}

func (s *NATSSink) Close() {
	if s.nc != nil {
		s.nc.Drain()
		s.nc.Close()
	}
}
