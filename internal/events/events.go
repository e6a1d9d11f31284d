package events

import (
	"sync"
	"time"

	"walletd/internal/clients"
	"walletd/internal/models"

	"github.com/sirupsen/logrus"
)

// Event names, published as <prefix>.<name>
const (
	WalletCreated     = "wallet.created"
	WalletDeleted     = "wallet.deleted"
	SessionLocked     = "session.locked"
	SessionUnlocked   = "session.unlocked"
	NetworkSelected   = "network.selected"
	TransferSubmitted = "transfer.submitted"
)

// WalletEvent carries public data only
type WalletEvent struct {
	WalletID  string    `json:"wallet_id"`
	Address   string    `json:"address"`
	Label     string    `json:"label,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionEvent lock state change
type SessionEvent struct {
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NetworkEvent network selection
type NetworkEvent struct {
	Network   string    `json:"network"`
	ChainID   int64     `json:"chain_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TransferEvent a broadcast accepted by the node. The local note is never included.
type TransferEvent struct {
	models.TransferResult
	Timestamp time.Time `json:"timestamp"`
}

// Publisher fire-and-forget event sink
type Publisher interface {
	Publish(name string, event interface{})
}

type natsPublisher struct {
	client *clients.NATSClient
	logger *logrus.Logger
}

// NewNATSPublisher publish failures are logged, never returned to the caller
func NewNATSPublisher(client *clients.NATSClient, logger *logrus.Logger) Publisher {
	return &natsPublisher{client: client, logger: logger}
}

func (p *natsPublisher) Publish(name string, event interface{}) {
	if err := p.client.PublishJSON(name, event); err != nil {
		p.logger.WithError(err).WithField("event", name).Warn("[Events] publish failed")
	}
}

type nopPublisher struct{}

// NewNopPublisher used when NATS is not configured
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(string, interface{}) {}

// Recorder keeps published events in memory, for tests
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Recorded one captured event
type Recorded struct {
	Name  string
	Event interface{}
}

func (r *Recorder) Publish(name string, event interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Name: name, Event: event})
}

// Events captured so far, in order
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Names of captured events in order
func (r *Recorder) Names() []string {
	events := r.Events()
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Name)
	}
	return names
}
