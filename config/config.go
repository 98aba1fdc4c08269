// Package config loads the client configuration from command line flags,
// FUNDSHADOW_ prefixed environment variables and an optional YAML file, in
// that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/util"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables read by Load, such
// as FUNDSHADOW_API_PORT for api.port.
const EnvPrefix = "FUNDSHADOW"

// ErrHelp is returned by Load when the help flag was given.
var ErrHelp = flag.ErrHelp

// Config is the configuration of the client daemon.
type Config struct {
	Dev     bool         `mapstructure:"dev"`
	Datadir string       `mapstructure:"datadir"`
	Web3    Web3Config   `mapstructure:"web3"`
	Wallet  WalletConfig `mapstructure:"wallet"`
	API     APIConfig    `mapstructure:"api"`
	Codec   CodecConfig  `mapstructure:"codec"`
	Reads   ReadsConfig  `mapstructure:"reads"`
	Log     LogConfig    `mapstructure:"log"`
	File    string       `mapstructure:"config"`
}

// Web3Config selects the node endpoints and the deployed contract.
type Web3Config struct {
	RPC          []string      `mapstructure:"rpc"`
	Contract     string        `mapstructure:"contract"`
	Subscribe    bool          `mapstructure:"subscribe"`
	PollInterval time.Duration `mapstructure:"poll"`
}

// WalletConfig holds the signing key of the client account.
type WalletConfig struct {
	PrivKey string `mapstructure:"privkey"`
}

// APIConfig configures the local HTTP API.
type APIConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Decimals uint8  `mapstructure:"decimals"`
}

// CodecConfig configures the value sealing.
type CodecConfig struct {
	Bits int `mapstructure:"bits"`
}

// ReadsConfig tunes the concurrent contract reads of the registry.
type ReadsConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	RetryTime   time.Duration `mapstructure:"retry"`
}

// LogConfig configures the log package.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// flags maps each viper key to its command line flag.
var flags = map[string]string{
	"dev":               "dev",
	"datadir":           "datadir",
	"config":            "config",
	"web3.rpc":          "w3rpc",
	"web3.contract":     "contract",
	"web3.subscribe":    "subscribe",
	"web3.poll":         "poll",
	"wallet.privkey":    "privkey",
	"api.host":          "host",
	"api.port":          "port",
	"api.decimals":      "decimals",
	"codec.bits":        "bits",
	"reads.concurrency": "concurrency",
	"reads.retry":       "retry",
	"log.level":         "loglevel",
	"log.output":        "logoutput",
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("fundshadow", flag.ContinueOnError)
	fs.Bool("dev", false, "run against an in-memory contract, for development")
	fs.String("datadir", "", "directory of the local database (in memory if empty)")
	fs.String("config", "", "path of an optional YAML configuration file")
	fs.StringSlice("w3rpc", nil, "web3 rpc endpoints, the first one is the primary")
	fs.String("contract", "", "address of the Fund Shadow contract")
	fs.Bool("subscribe", false, "follow contract events with a log subscription (websocket endpoints)")
	fs.Duration("poll", 5*time.Second, "contract events and receipts polling interval")
	fs.String("privkey", "", "hex private key of the client account")
	fs.String("host", "127.0.0.1", "API listen host")
	fs.Int("port", 9090, "API listen port (0 chooses a free one)")
	fs.Uint8("decimals", 0, "decimals of the amounts in API requests (0 for the smallest unit)")
	fs.Int("bits", 0, "bit range of the sealed values (0 for the default)")
	fs.Int("concurrency", 0, "maximum concurrent contract reads (0 for the default)")
	fs.Duration("retry", 10*time.Second, "maximum time spent retrying a failing contract read")
	fs.String("loglevel", "info", "log level (debug, info, warn, error)")
	fs.String("logoutput", "stdout", "log output (stdout, stderr or a file path)")
	return fs
}

// Load parses args, merges them with the environment and the configuration
// file, and returns the validated configuration.
func Load(args []string) (*Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range flags {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks the configuration is complete and consistent.
func (c *Config) Validate() error {
	var errs []error
	if !c.Dev {
		if len(c.Web3.RPC) == 0 {
			errs = append(errs, fmt.Errorf("at least one web3 rpc endpoint is required"))
		}
		if !common.IsHexAddress(c.Web3.Contract) {
			errs = append(errs, fmt.Errorf("invalid contract address %q", c.Web3.Contract))
		}
		if c.Wallet.PrivKey == "" {
			errs = append(errs, fmt.Errorf("a private key is required"))
		}
	}
	if key := util.TrimHex(c.Wallet.PrivKey); key != "" && len(key) != 64 {
		errs = append(errs, fmt.Errorf("private key must be 32 bytes hex encoded"))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid API port %d", c.API.Port))
	}
	if c.API.Decimals > 18 {
		errs = append(errs, fmt.Errorf("decimals must be at most 18"))
	}
	if c.Codec.Bits < 0 || c.Codec.Bits > 64 {
		errs = append(errs, fmt.Errorf("bits must be between 1 and 64"))
	}
	if c.Reads.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative"))
	}
	switch c.Log.Level {
	case log.LogLevelDebug, log.LogLevelInfo, log.LogLevelWarn, log.LogLevelError, log.LogLevelFatal:
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Log.Level))
	}
	if c.Web3.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Usage returns the flags help text.
func Usage() string {
	return newFlagSet().FlagUsages()
}
