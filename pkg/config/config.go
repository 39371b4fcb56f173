// Package config loads the YAML configuration of each entry point.
package config

import (
	"fmt"
	"os"
	"slot-relayer/pkg/shared"

	"gopkg.in/yaml.v2"
)

const (
	DefaultPath     = "config.yaml"
	defaultLogLevel = "info"

	EnvSecretKey   = "RELAYER_SECRET_KEY"
	EnvGeyserToken = "GEYSER_TOKEN"
)

type Balances struct {
	RPCUrl         string   `yaml:"rpc_url" json:"rpc_url"`
	Wallets        []string `yaml:"wallets" json:"wallets"`
	LogLevel       string   `yaml:"log_level" json:"log_level"`
	MaxConcurrency int      `yaml:"max_concurrency" json:"max_concurrency"`
	Commitment     string   `yaml:"commitment" json:"commitment"`

	CommitmentLevel shared.Commitment `yaml:"-" json:"-"`
}

type TransferEntry struct {
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	To        string `yaml:"to" json:"to"`
	Amount    uint64 `yaml:"amount" json:"amount"`
}

type Transfers struct {
	RPCUrl         string          `yaml:"rpc_url" json:"rpc_url"`
	Transfers      []TransferEntry `yaml:"transfers" json:"transfers"`
	LogLevel       string          `yaml:"log_level" json:"log_level"`
	MaxConcurrency int             `yaml:"max_concurrency" json:"max_concurrency"`
	Commitment     string          `yaml:"commitment" json:"commitment"`

	CommitmentLevel shared.Commitment `yaml:"-" json:"-"`
}

type Wallet struct {
	RPCUrl    string `yaml:"rpc_url" json:"rpc_url"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	To        string `yaml:"to" json:"to"`
	Amount    uint64 `yaml:"amount" json:"amount"`
}

type Geyser struct {
	URL        string `yaml:"url" json:"url"`
	Token      string `yaml:"token" json:"token"`
	Commitment string `yaml:"commitment" json:"commitment"`
}

type Relayer struct {
	Wallet   Wallet `yaml:"wallet" json:"wallet"`
	Geyser   Geyser `yaml:"geyser" json:"geyser"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	GeyserCommitment shared.Commitment `yaml:"-" json:"-"`
}

func loadFile(filePath string, cfg any) error {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("%w: failed to read config file at: %s, %w", shared.ErrConfig, filePath, err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("%w: failed to unmarshal config file at: %s, %w", shared.ErrConfig, filePath, err)
	}
	return nil
}

func required(field string) error {
	return fmt.Errorf("%w: %s is required", shared.ErrConfig, field)
}

func LoadBalances(filePath string) (*Balances, error) {
	cfg := &Balances{}
	if err := loadFile(filePath, cfg); err != nil {
		return nil, err
	}
	if err := checkBalances(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkBalances(cfg *Balances) error {
	if cfg.RPCUrl == "" {
		return required("rpc_url")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.MaxConcurrency < 0 {
		return fmt.Errorf("%w: max_concurrency must not be negative", shared.ErrConfig)
	}
	c, err := shared.ParseCommitment(cfg.Commitment, shared.Confirmed)
	if err != nil {
		return err
	}
	cfg.CommitmentLevel = c
	return nil
}

// LoadTransfers reads a batch. Entry contents are not validated here; a bad
// entry fails on its own when the batch runs.
func LoadTransfers(filePath string) (*Transfers, error) {
	cfg := &Transfers{}
	if err := loadFile(filePath, cfg); err != nil {
		return nil, err
	}
	if err := checkTransfers(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkTransfers(cfg *Transfers) error {
	if cfg.RPCUrl == "" {
		return required("rpc_url")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.MaxConcurrency < 0 {
		return fmt.Errorf("%w: max_concurrency must not be negative", shared.ErrConfig)
	}
	c, err := shared.ParseCommitment(cfg.Commitment, shared.Confirmed)
	if err != nil {
		return err
	}
	cfg.CommitmentLevel = c
	return nil
}

// LoadRelayer reads the relayer config. The secret key and geyser token fall
// back to the environment when the file leaves them empty.
func LoadRelayer(filePath string) (*Relayer, error) {
	cfg := &Relayer{}
	if err := loadFile(filePath, cfg); err != nil {
		return nil, err
	}
	applyRelayerEnv(cfg)
	if err := checkRelayer(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyRelayerEnv(cfg *Relayer) {
	if cfg.Wallet.SecretKey == "" {
		cfg.Wallet.SecretKey = os.Getenv(EnvSecretKey)
	}
	if cfg.Geyser.Token == "" {
		cfg.Geyser.Token = os.Getenv(EnvGeyserToken)
	}
}

func checkRelayer(cfg *Relayer) error {
	if cfg.Wallet.RPCUrl == "" {
		return required("wallet.rpc_url")
	}
	if cfg.Wallet.SecretKey == "" {
		return required("wallet.secret_key")
	}
	if cfg.Wallet.To == "" {
		return required("wallet.to")
	}
	if cfg.Geyser.URL == "" {
		return required("geyser.url")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	c, err := shared.ParseCommitment(cfg.Geyser.Commitment, shared.Finalized)
	if err != nil {
		return err
	}
	cfg.GeyserCommitment = c
	return nil
}
