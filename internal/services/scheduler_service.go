// Scheduler Service
// Periodic network pulse broadcast to websocket clients
package services

import (
	"context"
	"sync"
	"time"

	"walletd/internal/models"

	"github.com/sirupsen/logrus"
)

const pulseTimeout = 10 * time.Second

// PulseSource reads the pulse of the selected network
type PulseSource interface {
	NetworkPulse(ctx context.Context) models.NetworkPulse
}

// PulseSink receives each pulse
type PulseSink interface {
	PushNetworkPulse(pulse models.NetworkPulse)
	GetActiveConnections() int
}

// SchedulerService manages periodic background tasks
type SchedulerService struct {
	source   PulseSource
	sink     PulseSink
	interval time.Duration
	logger   *logrus.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSchedulerService interval <= 0 disables the pulse task
func NewSchedulerService(source PulseSource, sink PulseSink, interval time.Duration, logger *logrus.Logger) *SchedulerService {
	return &SchedulerService{
		source:   source,
		sink:     sink,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins all scheduled tasks
func (s *SchedulerService) Start() {
	if s.interval <= 0 {
		s.logger.Info("⚠️ Network pulse broadcast disabled")
		return
	}
	s.logger.WithField("interval", s.interval.String()).Info("📅 Network pulse broadcast starting")

	s.wg.Add(1)
	go s.runPulse()
}

// Stop waits for running tasks to return, safe to call more than once
func (s *SchedulerService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *SchedulerService) runPulse() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-s.stopChan:
			s.logger.Debug("🛑 Network pulse task stopped")
			return
		}
	}
}

// Tick reads one pulse and pushes it; skipped while nobody is listening
func (s *SchedulerService) Tick() {
	if s.sink.GetActiveConnections() == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pulseTimeout)
	defer cancel()

	pulse := s.source.NetworkPulse(ctx)
	s.sink.PushNetworkPulse(pulse)
	s.logger.WithFields(logrus.Fields{
		"network":      pulse.Network,
		"block_number": pulse.BlockNumber,
	}).Debug("⏰ Network pulse pushed")
}
