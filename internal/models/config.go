package models

import "time"

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Chain      ChainConfig
	Explorer   ExplorerConfig
	Auth       AuthConfig
	Locks      LockConfig
	Usage      UsageConfig
	TokensFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// ChainConfig holds JSON-RPC endpoint settings. ChainId of 0 means "ask the node".
type ChainConfig struct {
	RpcURL      string
	ChainId     int64
	ReadTimeout time.Duration
	TxTimeout   time.Duration
}

// ExplorerConfig holds the Etherscan-compatible history API settings
type ExplorerConfig struct {
	BaseURL     string
	ApiKey      string
	MaxAttempts int
	BaseDelay   time.Duration
}

// AuthConfig holds bearer token verification settings for dashboard routes
type AuthConfig struct {
	JwtSecret string
	JwtIssuer string
	TokenTTL  time.Duration
}

// LockConfig selects the wallet lock backend: "local", "redis" or "none"
type LockConfig struct {
	Backend   string
	RedisURL  string
	KeyPrefix string
	TTL       time.Duration
}

// UsageConfig selects where usage buckets are stored: "sqlite" or "formance"
type UsageConfig struct {
	Backend  string
	Formance FormanceConfig
}

// FormanceConfig holds Formance Stack credentials
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}
