// Package config loads process configuration from the environment and an
// optional .env file, and builds the process logger.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Storage backends of the local validator.
const (
	StorageMemory = "memory"
	StorageDB     = "db"
)

// Log configures the logger.
type Log struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"` // text | json
}

// Localnet configures the local validator.
type Localnet struct {
	Log

	Addr             string `envconfig:"LOCALNET_ADDR" default:":8899"`
	Storage          string `envconfig:"STORAGE" default:"memory"`
	PostgresDSN      string `envconfig:"POSTGRES_DSN"`
	ClickHouseDSN    string `envconfig:"CLICKHOUSE_DSN"`
	FaucetKeypair    string `envconfig:"FAUCET_KEYPAIR"`
	FaucetLamports   uint64 `envconfig:"FAUCET_LAMPORTS" default:"500000000000000000"`
	AirdropCap       uint64 `envconfig:"AIRDROP_CAP" default:"100000000000"`
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"issuance_lab"`
}

// Issuer configures the issuer client.
type Issuer struct {
	Log

	RPCURL         string        `envconfig:"RPC_URL" default:"http://127.0.0.1:8899"`
	WSURL          string        `envconfig:"WS_URL"`
	Keypair        string        `envconfig:"KEYPAIR"`
	Commitment     string        `envconfig:"COMMITMENT" default:"finalized"`
	ConfirmTimeout time.Duration `envconfig:"CONFIRM_TIMEOUT" default:"30s"`
}

// Validate checks combinations envconfig cannot express.
func (c *Localnet) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StorageDB:
		if c.PostgresDSN == "" || c.ClickHouseDSN == "" {
			return fmt.Errorf("storage %q requires POSTGRES_DSN and CLICKHOUSE_DSN", c.Storage)
		}
	default:
		return fmt.Errorf("unknown storage %q (memory or db)", c.Storage)
	}
	if c.AirdropCap == 0 {
		return errors.New("AIRDROP_CAP must be positive")
	}
	return nil
}

// WebsocketURL returns WSURL, or the RPC URL with a ws scheme when unset.
func (c *Issuer) WebsocketURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	switch {
	case strings.HasPrefix(c.RPCURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.RPCURL, "https://")
	case strings.HasPrefix(c.RPCURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.RPCURL, "http://")
	}
	return c.RPCURL
}

// Load reads files into the environment, without overriding variables that
// are already set, then decodes the environment into spec. Missing files
// are skipped.
func Load(spec interface{}, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := envconfig.Process("", spec); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}
	return nil
}

// NewLogger builds a logger writing to stderr.
func (l Log) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)

	switch strings.ToLower(l.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("LOG_FORMAT: unknown format %q (text or json)", l.Format)
	}
	return logger, nil
}
