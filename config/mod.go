// Package config defines the configuration of the command line client.
//
// The configuration is a YAML document. A missing file is not an error and
// gives the default configuration, so that the client can be used on a fresh
// machine with the local ledger.
//
//	logLevel: info
//	ledger:
//	  path: ~/.ballot/ledger.db
//	wallet:
//	  key: 0xc875...
//	  gasPrice: "1"
//	batch:
//	  threshold: 10
//
// Documentation Last Review: 15.10.2026
//
package config

import (
	"crypto/ecdsa"
	"io/ioutil"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.dedis.ch/ballot/contract/marshal"
	"go.dedis.ch/ballot/ledger/wallet"
	"go.dedis.ch/ballot/txn/batch"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// DefaultDir is the folder of the default files, relative to the home
// directory.
const DefaultDir = ".ballot"

// Ledger is the configuration of the local ledger.
type Ledger struct {
	Path string `yaml:"path"`
	// Deployer is the account that deployed the contract. It defines the
	// address of the contract.
	Deployer string `yaml:"deployer,omitempty"`
	// Funding is the amount credited by "ledger fund" when none is given.
	Funding string `yaml:"funding,omitempty"`
}

// Offchain is the configuration of the metadata store.
type Offchain struct {
	Path string `yaml:"path,omitempty"`
}

// Wallet is the configuration of the signing account. The key is either
// given inline or read from a file.
type Wallet struct {
	Key         string `yaml:"key,omitempty"`
	KeyFile     string `yaml:"keyFile,omitempty"`
	GasPrice    string `yaml:"gasPrice,omitempty"`
	AutoApprove bool   `yaml:"autoApprove,omitempty"`
}

// Batch is the configuration of the batch accreditation.
type Batch struct {
	Threshold    int    `yaml:"threshold"`
	UnitsPerItem uint64 `yaml:"unitsPerItem,omitempty"`
}

// Metrics is the configuration of the Prometheus endpoint. It is disabled
// when the address is empty.
type Metrics struct {
	Addr string `yaml:"addr,omitempty"`
}

// Config is the configuration of the client.
type Config struct {
	LogLevel string   `yaml:"logLevel"`
	Ledger   Ledger   `yaml:"ledger"`
	Offchain Offchain `yaml:"offchain,omitempty"`
	Wallet   Wallet   `yaml:"wallet"`
	Batch    Batch    `yaml:"batch"`
	Metrics  Metrics  `yaml:"metrics,omitempty"`
}

// Default returns the configuration with the files in the folder.
func Default(dir string) Config {
	return Config{
		LogLevel: zerolog.InfoLevel.String(),
		Ledger: Ledger{
			Path:    filepath.Join(dir, "ledger.db"),
			Funding: "1000000000000",
		},
		Wallet: Wallet{
			KeyFile:  filepath.Join(dir, "wallet.key"),
			GasPrice: wallet.DefaultGasPrice.String(),
		},
		Batch: Batch{
			Threshold: batch.DefaultThreshold,
		},
	}
}

// Load reads the configuration at the path on top of the default one. The
// default files are placed next to the configuration file.
func Load(path string) (Config, error) {
	cfg := Default(filepath.Dir(path))

	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}

	if err != nil {
		return cfg, xerrors.Errorf("failed to read config: %v", err)
	}

	err = yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return cfg, xerrors.Errorf("failed to decode config: %v", err)
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, xerrors.Errorf("invalid config: %v", err)
	}

	return cfg, nil
}

// Save writes the configuration at the path.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return xerrors.Errorf("failed to encode config: %v", err)
	}

	err = os.MkdirAll(filepath.Dir(path), 0700)
	if err != nil {
		return xerrors.Errorf("failed to create folder: %v", err)
	}

	err = ioutil.WriteFile(path, data, 0600)
	if err != nil {
		return xerrors.Errorf("failed to write config: %v", err)
	}

	return nil
}

// Validate returns an error for the first invalid value.
func (c Config) Validate() error {
	_, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return xerrors.Errorf("logLevel: %v", err)
	}

	if strings.TrimSpace(c.Ledger.Path) == "" {
		return xerrors.New("ledger.path: is required")
	}

	if c.Ledger.Deployer != "" {
		_, ok := marshal.Address(c.Ledger.Deployer)
		if !ok {
			return xerrors.Errorf("ledger.deployer: invalid address '%s'", c.Ledger.Deployer)
		}
	}

	if c.Ledger.Funding != "" {
		_, err = positive(c.Ledger.Funding)
		if err != nil {
			return xerrors.Errorf("ledger.funding: %v", err)
		}
	}

	_, err = c.GasPrice()
	if err != nil {
		return xerrors.Errorf("wallet.gasPrice: %v", err)
	}

	if c.Batch.Threshold < 0 {
		return xerrors.New("batch.threshold: must not be negative")
	}

	return nil
}

// Level returns the log level.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}

	return level
}

// GasPrice returns the gas price of the wallet, or the default one if it is
// not set.
func (c Config) GasPrice() (*big.Int, error) {
	if c.Wallet.GasPrice == "" {
		return new(big.Int).Set(wallet.DefaultGasPrice), nil
	}

	return positive(c.Wallet.GasPrice)
}

// Funding returns the default funding of the local ledger.
func (c Config) Funding() (*big.Int, error) {
	return positive(c.Ledger.Funding)
}

// Key returns the private key of the wallet, read inline first and then from
// the key file.
func (c Config) Key() (*ecdsa.PrivateKey, error) {
	value := c.Wallet.Key

	if value == "" {
		if c.Wallet.KeyFile == "" {
			return nil, xerrors.New("no wallet key configured")
		}

		data, err := ioutil.ReadFile(c.Wallet.KeyFile)
		if err != nil {
			return nil, xerrors.Errorf("failed to read key file: %v", err)
		}

		value = string(data)
	}

	return wallet.LoadKey(value)
}

func positive(value string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || v.Sign() <= 0 {
		return nil, xerrors.Errorf("invalid amount '%s'", value)
	}

	return v, nil
}
