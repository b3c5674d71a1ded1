package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-yaml/yaml"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

type Config struct {
	Chain  Chain  `yaml:"chain"`
	Risk   Risk   `yaml:"risk"`
	Server Server `yaml:"server"`
	Wallet Wallet `yaml:"wallet"`
}

type Chain struct {
	ChainID         int64  `yaml:"chainID"`
	RPCURL          string `yaml:"rpcURL"`
	ContractAddress string `yaml:"contractAddress"`
	StableAddress   string `yaml:"stableAddress"`
	StableDecimals  uint8  `yaml:"stableDecimals"`
}

type Risk struct {
	MaxLtvBps               uint64 `yaml:"maxLtvBps"`
	LiquidationThresholdBps uint64 `yaml:"liquidationThresholdBps"`
	AprBps                  uint64 `yaml:"aprBps"`
}

type Server struct {
	Listen            string `yaml:"listen"`
	PostgresDsn       string `yaml:"postgresDsn"`
	RedisAddr         string `yaml:"redisAddr"`
	RedisPassword     string `yaml:"redisPassword"`
	RedisDB           int    `yaml:"redisDB"`
	MemcachedAddr     string `yaml:"memcachedAddr"`
	EnableTrace       bool   `yaml:"enableTrace"`
	TraceEndpoint     string `yaml:"traceEndpoint"`
	SubmitTimeout     string `yaml:"submitTimeout"`     // e.g. "20s"
	ReconcileInterval string `yaml:"reconcileInterval"` // e.g. "1m"
	OrphanWindow      string `yaml:"orphanWindow"`      // e.g. "30m"

	// ---
	SubmitTimeoutDuration     time.Duration `yaml:"-"`
	ReconcileIntervalDuration time.Duration `yaml:"-"`
	OrphanWindowDuration      time.Duration `yaml:"-"`
}

// Wallet is only read by the borrower CLI.
type Wallet struct {
	PrivateKey    string `yaml:"privatekey"`
	DraftEndpoint string `yaml:"draftEndpoint"`

	// ---
	Address string `yaml:"-"`
}

const (
	defaultListen            = ":8000"
	defaultSubmitTimeout     = 20 * time.Second
	defaultReconcileInterval = time.Minute
	defaultOrphanWindow      = 30 * time.Minute
)

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	err = config.normalize()
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) normalize() error {
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("chain.chainID must be positive")
	}
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpcURL is required")
	}
	if !pinjaman.IsAddress(c.Chain.ContractAddress) {
		return fmt.Errorf("chain.contractAddress %q is not an address", c.Chain.ContractAddress)
	}
	if !pinjaman.IsAddress(c.Chain.StableAddress) || common.HexToAddress(c.Chain.StableAddress) == (common.Address{}) {
		return fmt.Errorf("chain.stableAddress %q is not a token address", c.Chain.StableAddress)
	}
	if c.Chain.StableDecimals == 0 {
		c.Chain.StableDecimals = 6
	}

	if c.Risk == (Risk{}) {
		d := domain.DefaultRiskParams()
		c.Risk = Risk{
			MaxLtvBps:               d.MaxLtvBps,
			LiquidationThresholdBps: d.LiquidationThresholdBps,
			AprBps:                  d.AprBps,
		}
	}
	if c.Risk.MaxLtvBps == 0 || c.Risk.MaxLtvBps >= c.Risk.LiquidationThresholdBps {
		return fmt.Errorf("risk.maxLtvBps must be positive and below risk.liquidationThresholdBps")
	}
	if c.Risk.LiquidationThresholdBps > domain.BpsDenominator {
		return fmt.Errorf("risk.liquidationThresholdBps must not exceed %d", domain.BpsDenominator)
	}

	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	var err error
	c.Server.SubmitTimeoutDuration, err = duration("server.submitTimeout", c.Server.SubmitTimeout, defaultSubmitTimeout)
	if err != nil {
		return err
	}
	c.Server.ReconcileIntervalDuration, err = duration("server.reconcileInterval", c.Server.ReconcileInterval, defaultReconcileInterval)
	if err != nil {
		return err
	}
	c.Server.OrphanWindowDuration, err = duration("server.orphanWindow", c.Server.OrphanWindow, defaultOrphanWindow)
	if err != nil {
		return err
	}

	if c.Wallet.PrivateKey != "" {
		addr, err := pinjaman.PrivKeyToAddr(c.Wallet.PrivateKey)
		if err != nil {
			return fmt.Errorf("wallet.privatekey: %w", err)
		}
		c.Wallet.Address = addr.Hex()
	}

	return nil
}

func duration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s %q is not a positive duration", name, value)
	}
	return d, nil
}

func (c Chain) Domain() domain.ChainConfig {
	return domain.ChainConfig{
		ChainID:         c.ChainID,
		RPCURL:          c.RPCURL,
		ContractAddress: common.HexToAddress(c.ContractAddress),
		StableAddress:   common.HexToAddress(c.StableAddress),
		StableDecimals:  c.StableDecimals,
	}
}

func (r Risk) Domain() domain.RiskParams {
	return domain.RiskParams{
		MaxLtvBps:               r.MaxLtvBps,
		LiquidationThresholdBps: r.LiquidationThresholdBps,
		AprBps:                  r.AprBps,
	}
}

// ViewerAudience is the audience wallet-signed viewer tokens must carry.
func (c Chain) ViewerAudience() string {
	return fmt.Sprintf("pinjaman:%d", c.ChainID)
}
