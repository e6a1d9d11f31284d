package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"walletd/internal/config"
	"walletd/internal/metrics"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSClient NATS client used to publish wallet events
type NATSClient struct {
	conn   *nats.Conn
	prefix string
	logger *logrus.Logger
}

// NewNATSClient connects with reconnect handling, connection state is exported as a metric
func NewNATSClient(cfg config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}
	maxReconnects := cfg.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = -1
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("walletd"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("[NATS] disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("[NATS] reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "walletd"
	}
	logger.WithField("url", cfg.URL).Info("✅ [NATS] connected")
	return &NATSClient{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject qualifies name with the configured prefix
func (c *NATSClient) Subject(name string) string {
	return c.prefix + "." + name
}

// PublishJSON publishes v as JSON on prefix.name
func (c *NATSClient) PublishJSON(name string, v interface{}) error {
	subject := c.Subject(name)
	data, err := json.Marshal(v)
	if err != nil {
		metrics.NATSMessagesPublished.WithLabelValues(subject, "encode_error").Inc()
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := c.conn.Publish(subject, data); err != nil {
		metrics.NATSMessagesPublished.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	metrics.NATSMessagesPublished.WithLabelValues(subject, "ok").Inc()
	c.logger.WithField("subject", subject).Debug("[NATS] published")
	return nil
}

// Subscribe receives every event under the prefix
func (c *NATSClient) Subscribe(handler nats.MsgHandler) (*nats.Subscription, error) {
	sub, err := c.conn.Subscribe(c.prefix+".>", handler)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return sub, nil
}

// Close drains pending publishes then closes the connection
func (c *NATSClient) Close() {
	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			c.conn.Close()
		}
		metrics.NATSConnectionStatus.Set(0)
	}
}
