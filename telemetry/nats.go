package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher republishes Updates to a NATS subject, in addition to the
// websocket hub. Disabled (a no-op) until Connect succeeds, so a scanner
// with no NATS server configured runs exactly as if telemetry.natsUrl were
// absent (§4.12).
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	mu      sync.Mutex
	enabled bool
}

func NewNATSPublisher(subject string) *NATSPublisher {
	return &NATSPublisher{subject: subject}
}

func (p *NATSPublisher) Connect(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	opts := []nats.Option{
		nats.Name("sdrscan"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("telemetry: nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("telemetry: nats reconnected: %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		p.enabled = false
		return fmt.Errorf("telemetry: nats connect: %w", err)
	}
	p.conn, p.enabled = conn, true
	return nil
}

func (p *NATSPublisher) Publish(u Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled || p.conn == nil {
		return
	}
	data, err := json.Marshal(u)
	if err != nil {
		log.Printf("telemetry: nats marshal: %v", err)
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		log.Printf("telemetry: nats publish: %v", err)
	}
}

func (p *NATSPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
		p.conn, p.enabled = nil, false
	}
}

func (p *NATSPublisher) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}
