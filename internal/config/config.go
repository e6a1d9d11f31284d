package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"walletd/internal/keycodec"
	"walletd/internal/models"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig             `yaml:"server"`
	Store    StoreConfig              `yaml:"store"`
	Database DatabaseConfig           `yaml:"database"`
	NATS     NATSConfig               `yaml:"nats"`
	Networks map[string]NetworkConfig `yaml:"networks"`
	Fees     FeeConfig                `yaml:"fees"`
	Explorer ExplorerConfig           `yaml:"explorer"`
	Session  SessionConfig            `yaml:"session"`
	KDF      KDFConfig                `yaml:"kdf"`
	CORS     CORSConfig               `yaml:"cors"`
	Logging  LoggingConfig            `yaml:"logging"`
	Admin    AdminConfig              `yaml:"admin"`

	// DefaultNetwork network selected at startup
	DefaultNetwork string `yaml:"defaultNetwork"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// PulseIntervalSeconds websocket network pulse period, 0 disables
	PulseIntervalSeconds int `yaml:"pulseIntervalSeconds"`
}

// StoreConfig selects the wallet record backend
type StoreConfig struct {
	Driver     string `yaml:"driver"` // leveldb | postgres | memory
	LevelDBDir string `yaml:"leveldbDir"`
}

// DatabaseConfig Database configuration (postgres driver only)
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig NATS event publishing. Empty URL disables publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// NetworkConfig Network descriptor
type NetworkConfig struct {
	ID           string   `yaml:"-"`
	Name         string   `yaml:"name"`
	ChainID      int64    `yaml:"chainId"`
	RPCEndpoints []string `yaml:"rpcEndpoints"`
	Explorer     string   `yaml:"explorer"`
	NativeSymbol string   `yaml:"nativeSymbol"`
	Enabled      bool     `yaml:"enabled"`
}

// RPCEndpoint primary endpoint
func (n NetworkConfig) RPCEndpoint() string {
	if len(n.RPCEndpoints) == 0 {
		return ""
	}
	return n.RPCEndpoints[0]
}

// FeeConfig fee estimator settings
type FeeConfig struct {
	DefaultSpeed string `yaml:"defaultSpeed"` // slow | standard | fast
}

// ExplorerConfig Etherscan v2 compatible history API
type ExplorerConfig struct {
	BaseURL      string `yaml:"baseUrl"`
	APIKey       string `yaml:"apiKey"`
	Timeout      int    `yaml:"timeout"`
	DefaultLimit int    `yaml:"defaultLimit"`
}

// SessionConfig session and token settings
type SessionConfig struct {
	MinPasswordLength int `yaml:"minPasswordLength"`
	TokenTTLMinutes   int `yaml:"tokenTtlMinutes"`
}

// TokenTTL token lifetime
func (s SessionConfig) TokenTTL() time.Duration {
	return time.Duration(s.TokenTTLMinutes) * time.Minute
}

// KDFConfig scrypt cost for newly encrypted secrets
type KDFConfig struct {
	N int `yaml:"n"`
	R int `yaml:"r"`
	P int `yaml:"p"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// LoggingConfig logrus settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// AdminConfig extra IPs allowed besides loopback
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"`
}

// Default returns a configuration usable without any file: the three public testnets,
// an embedded leveldb store and loopback-only serving.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8645, PulseIntervalSeconds: 15},
		Store:  StoreConfig{Driver: "leveldb", LevelDBDir: "./data/wallets"},
		NATS:   NATSConfig{Timeout: 5, ReconnectWait: 5, MaxReconnects: -1, SubjectPrefix: "walletd"},
		Networks: map[string]NetworkConfig{
			"eth-sepolia": {
				Name:         "Ethereum Sepolia",
				ChainID:      11155111,
				RPCEndpoints: []string{"https://ethereum-sepolia-rpc.publicnode.com"},
				Explorer:     "https://sepolia.etherscan.io",
				NativeSymbol: "ETH",
				Enabled:      true,
			},
			"poly-amoy": {
				Name:         "Polygon Amoy",
				ChainID:      80002,
				RPCEndpoints: []string{"https://rpc-amoy.polygon.technology"},
				Explorer:     "https://www.oklink.com/amoy",
				NativeSymbol: "POL",
				Enabled:      true,
			},
			"base-sepolia": {
				Name:         "Base Sepolia",
				ChainID:      84532,
				RPCEndpoints: []string{"https://sepolia.base.org"},
				Explorer:     "https://sepolia-explorer.base.org",
				NativeSymbol: "ETH",
				Enabled:      true,
			},
		},
		DefaultNetwork: "eth-sepolia",
		Fees:           FeeConfig{DefaultSpeed: "standard"},
		Explorer: ExplorerConfig{
			BaseURL:      "https://api.etherscan.io/v2/api",
			Timeout:      30,
			DefaultLimit: 50,
		},
		Session: SessionConfig{MinPasswordLength: 6, TokenTTLMinutes: 60},
		KDF:     KDFConfig{N: 1 << 18, R: 8, P: 1},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig Load configuration file over the defaults
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// ifconfiguration file pathempty，Use default path
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Printf("✅ Loading configuration from config file: %s", configPath)
	case os.IsNotExist(err):
		log.Printf("📋 [Config] %s not found, using built-in defaults", configPath)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	overrideFromEnv(config)

	for id, network := range config.Networks {
		network.ID = id
		config.Networks[id] = network
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.Printf("📋 [Config] store=%s networks=%d default=%s", config.Store.Driver, len(config.Networks), config.DefaultNetwork)

	return config, nil
}

// overrideFromEnv Overrideconfiguration
func overrideFromEnv(config *Config) {
	if host := os.Getenv("WALLETD_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("WALLETD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		config.Store.Driver = driver
	}
	if dir := os.Getenv("LEVELDB_PATH"); dir != "" {
		config.Store.LevelDBDir = dir
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}

	if apiKey := os.Getenv("ETHERSCAN_API_KEY"); apiKey != "" {
		config.Explorer.APIKey = apiKey
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if network := os.Getenv("DEFAULT_NETWORK"); network != "" {
		config.DefaultNetwork = network
	}

	// RPC endpoints read from environment variables, e.g. ETH_SEPOLIA_RPC_ENDPOINTS
	for networkName, networkConfig := range config.Networks {
		envRPC := fmt.Sprintf("%s_RPC_ENDPOINTS", envName(networkName))
		if rpcEndpoints := os.Getenv(envRPC); rpcEndpoints != "" {
			networkConfig.RPCEndpoints = splitTrim(rpcEndpoints)
		}
		config.Networks[networkName] = networkConfig
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.CORS.AllowedOrigins = splitTrim(corsOrigins)
	}
}

// Validate checks the fields the daemon cannot run without
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "leveldb":
		if c.Store.LevelDBDir == "" {
			return fmt.Errorf("store.leveldbDir is required for the leveldb driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if _, err := c.GetNetworkConfig(c.DefaultNetwork); err != nil {
		return fmt.Errorf("default network: %w", err)
	}
	for id, n := range c.Networks {
		if n.Enabled && (n.ChainID <= 0 || n.RPCEndpoint() == "") {
			return fmt.Errorf("network %s needs chainId and at least one rpc endpoint", id)
		}
	}
	if c.Fees.DefaultSpeed != "" {
		if _, ok := models.Speed(c.Fees.DefaultSpeed).Multiplier(); !ok {
			return fmt.Errorf("fees.defaultSpeed %q must be slow, standard or fast", c.Fees.DefaultSpeed)
		}
	}
	if c.KDF.N != 0 {
		if err := (keycodec.Params{N: c.KDF.N, R: c.KDF.R, P: c.KDF.P}).Validate(); err != nil {
			return fmt.Errorf("kdf: %w", err)
		}
	}
	if c.Session.MinPasswordLength <= 0 {
		c.Session.MinPasswordLength = 6
	}
	if c.Session.TokenTTLMinutes <= 0 {
		c.Session.TokenTTLMinutes = 60
	}
	return nil
}

// GetNetworkConfig GetNetworkconfiguration
func (c *Config) GetNetworkConfig(networkID string) (*NetworkConfig, error) {
	network, exists := c.Networks[networkID]
	if !exists {
		return nil, fmt.Errorf("network %s not found in config", networkID)
	}
	if !network.Enabled {
		return nil, fmt.Errorf("network %s is disabled", networkID)
	}
	network.ID = networkID
	return &network, nil
}

// EnabledNetworks enabled networks sorted by id
func (c *Config) EnabledNetworks() []NetworkConfig {
	out := make([]NetworkConfig, 0, len(c.Networks))
	for id, n := range c.Networks {
		if !n.Enabled {
			continue
		}
		n.ID = id
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func envName(networkID string) string {
	return strings.ToUpper(strings.ReplaceAll(networkID, "-", "_"))
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
