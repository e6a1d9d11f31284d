package app

import (
	"fmt"
	"sync"
	"time"

	"walletd/internal/clients"
	"walletd/internal/config"
	"walletd/internal/db"
	"walletd/internal/events"
	"walletd/internal/handlers"
	"walletd/internal/keycodec"
	"walletd/internal/models"
	"walletd/internal/repository"
	"walletd/internal/services"

	"github.com/sirupsen/logrus"
)

// ServiceContainer wires the daemon's components
type ServiceContainer struct {
	Config *config.Config
	Logger *logrus.Logger

	// Storage
	Store repository.WalletRecordStore
	Codec *keycodec.Codec

	// Core Services
	Guard     *services.SubmissionGuard
	Session   *services.SessionManager
	Clients   *clients.ClientCache
	Fees      *services.FeeEstimator
	Submitter *services.TransactionSubmitter
	Network   *services.NetworkService
	History   *services.HistoryService
	Wallet    *services.WalletService

	// Event & Push Services
	NATSClient  *clients.NATSClient
	Publisher   events.Publisher
	PushService *services.WebSocketPushService
	Scheduler   *services.SchedulerService

	Tokens *handlers.SessionTokens

	cleanupOnce sync.Once
}

// InitializeContainer builds every component; a failing store is fatal, a failing NATS is not
func InitializeContainer(cfg *config.Config, logger *logrus.Logger) (*ServiceContainer, error) {
	logger.Info("🚀 Initializing Service Container...")

	c := &ServiceContainer{
		Config: cfg,
		Logger: logger,
	}

	// 1. Storage
	if err := c.initStore(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	// 2. Event services (optional)
	if err := c.initEventServices(); err != nil {
		logger.WithError(err).Warn("⚠️ Event publishing disabled")
		c.Publisher = events.NewNopPublisher()
	}

	// 3. Core services
	c.initCoreServices()

	logger.Info("✅ Service Container initialized successfully")
	return c, nil
}

func (c *ServiceContainer) initStore() error {
	switch c.Config.Store.Driver {
	case "postgres":
		conn, err := db.InitDB(c.Config.Database)
		if err != nil {
			return err
		}
		c.Store = repository.NewWalletRecordRepository(conn)
	case "memory":
		c.Store = repository.NewMemWalletStore()
	default:
		store, err := repository.OpenLevelDBWalletStore(c.Config.Store.LevelDBDir)
		if err != nil {
			return err
		}
		c.Store = store
	}
	c.Logger.WithField("driver", c.Config.Store.Driver).Info("📦 Wallet store opened")

	c.Codec = keycodec.New(keycodec.Params{
		N: c.Config.KDF.N,
		R: c.Config.KDF.R,
		P: c.Config.KDF.P,
	})
	return nil
}

func (c *ServiceContainer) initEventServices() error {
	if c.Config.NATS.URL == "" {
		c.Publisher = events.NewNopPublisher()
		return nil
	}
	client, err := clients.NewNATSClient(c.Config.NATS, c.Logger)
	if err != nil {
		return err
	}
	c.NATSClient = client
	c.Publisher = events.NewNATSPublisher(client, c.Logger)
	return nil
}

func (c *ServiceContainer) initCoreServices() {
	c.Guard = services.NewSubmissionGuard()
	c.Session = services.NewSessionManager(c.Store, c.Codec, c.Guard, c.Logger, c.Config.Session.MinPasswordLength)
	c.Clients = clients.NewClientCache(nil, c.Logger)
	c.Fees = services.NewFeeEstimator(c.Clients, c.Logger)
	c.Submitter = services.NewTransactionSubmitter(c.Clients, c.Fees, c.Session, c.Guard, c.Logger, models.Speed(c.Config.Fees.DefaultSpeed))
	c.Network = services.NewNetworkService(c.Clients, c.Logger)
	c.History = services.NewHistoryService(clients.NewExplorerClient(c.Config.Explorer), c.Logger, c.Config.Explorer.DefaultLimit)
	c.PushService = services.NewWebSocketPushService(c.Logger)

	c.Wallet = services.NewWalletService(services.WalletServiceDeps{
		Config:    c.Config,
		Store:     c.Store,
		Codec:     c.Codec,
		Session:   c.Session,
		Guard:     c.Guard,
		Fees:      c.Fees,
		Submitter: c.Submitter,
		Network:   c.Network,
		History:   c.History,
		Publisher: c.Publisher,
		Pusher:    c.PushService,
		Logger:    c.Logger,
	})

	c.Scheduler = services.NewSchedulerService(c.Wallet, c.PushService, time.Duration(c.Config.Server.PulseIntervalSeconds)*time.Second, c.Logger)

	c.Tokens = handlers.NewSessionTokens(c.Config.Session.TokenTTL())
	c.Session.OnLock(c.Tokens.Rotate)
}

// Cleanup locks the session and releases connections, safe to call more than once
func (c *ServiceContainer) Cleanup() {
	c.cleanupOnce.Do(func() {
		c.Logger.Info("🧹 Cleaning up services...")
		if c.Scheduler != nil {
			c.Scheduler.Stop()
		}
		if c.Session != nil {
			c.Session.Close()
		}
		if c.PushService != nil {
			c.PushService.Close()
		}
		if c.Clients != nil {
			c.Clients.Close()
		}
		if c.NATSClient != nil {
			c.NATSClient.Close()
		}
		if c.Store != nil {
			if err := c.Store.Close(); err != nil {
				c.Logger.WithError(err).Warn("⚠️ failed to close wallet store")
			}
		}
		if err := db.Close(); err != nil {
			c.Logger.WithError(err).Warn("⚠️ failed to close database")
		}
	})
}
