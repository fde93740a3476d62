package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogPretty bool   `env:"LOG_PRETTY"`

	// Provider is "rpc" (external wallet over JSON-RPC), "key" (local key
	// wallet) or empty for no wallet.
	Provider              string        `env:"PROVIDER"`
	ProviderRPCURL        string        `env:"PROVIDER_RPC_URL"`
	ProviderWatchInterval time.Duration `env:"PROVIDER_WATCH_INTERVAL"`
	WalletPrivateKey      string        `env:"WALLET_PRIVATE_KEY,unset"`
	WalletChainID         string        `env:"WALLET_CHAIN_ID"`
	WalletRPCURL          string        `env:"WALLET_RPC_URL"`

	// Storage is one of memory, badger, postgres, mysql.
	Storage     string `env:"STORAGE"`
	BadgerDir   string `env:"BADGER_DIR"`
	PostgresURL string `env:"POSTGRES_URL"`
	MySQLDSN    string `env:"MYSQL_DSN"`

	NetworksFile    string        `env:"NETWORKS_FILE"`
	PollInterval    time.Duration `env:"POLL_INTERVAL"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS"`

	TelegramToken string  `env:"TELEGRAM_TOKEN"`
	TelegramChats []int64 `env:"TELEGRAM_CHATS" envSeparator:","`
	NotifyBuffer  int     `env:"NOTIFY_BUFFER"`
}

func LoadConfig() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Msg(".env file not found, relying on environment variables")
	}

	config := Config{
		HTTPAddr:              ":8080",
		LogLevel:              "info",
		ProviderWatchInterval: 2 * time.Second,
		WalletChainID:         "0xaa36a7",
		Storage:               "memory",
		PollInterval:          5 * time.Second,
		PollMaxAttempts:       60,
		NotifyBuffer:          1024,
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks that the selected provider and storage have what they need.
func (c Config) Validate() error {
	switch c.Provider {
	case "":
	case "rpc":
		if c.ProviderRPCURL == "" {
			return errors.New("PROVIDER=rpc requires PROVIDER_RPC_URL")
		}
	case "key":
		if c.WalletPrivateKey == "" {
			return errors.New("PROVIDER=key requires WALLET_PRIVATE_KEY")
		}
	default:
		return fmt.Errorf("unknown PROVIDER %q", c.Provider)
	}

	switch c.Storage {
	case "memory", "badger":
	case "postgres":
		if c.PostgresURL == "" {
			return errors.New("STORAGE=postgres requires POSTGRES_URL")
		}
	case "mysql":
		if c.MySQLDSN == "" {
			return errors.New("STORAGE=mysql requires MYSQL_DSN")
		}
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	return nil
}
