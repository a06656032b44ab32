package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"SASVerify/internal/ledger"
	"SASVerify/internal/verify"
)

// envPrefix prefixes environment overrides, e.g. SASVERIFY_RPC_ENDPOINT.
const envPrefix = "SASVERIFY"

// Config holds the verifier configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	RPC    RPCConfig    `mapstructure:"rpc"`
	Retry  RetryConfig  `mapstructure:"retry"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Verify VerifyConfig `mapstructure:"verify"`
	API    APIConfig    `mapstructure:"api"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`
}

// RPCConfig configures the JSON-RPC ledger.
type RPCConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	Commitment string        `mapstructure:"commitment"`
	Encoding   string        `mapstructure:"encoding"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// RetryConfig configures retries around ledger reads. Max 0 disables them.
type RetryConfig struct {
	Max             uint64        `mapstructure:"max"`
	InitialInterval time.Duration `mapstructure:"initialInterval"`
	MaxInterval     time.Duration `mapstructure:"maxInterval"`
	MaxElapsed      time.Duration `mapstructure:"maxElapsed"`
}

// Policy converts the config to a ledger retry policy.
func (c RetryConfig) Policy() ledger.RetryPolicy {
	return ledger.RetryPolicy{
		MaxRetries:      c.Max,
		InitialInterval: c.InitialInterval,
		MaxInterval:     c.MaxInterval,
		MaxElapsed:      c.MaxElapsed,
	}
}

// LedgerConfig selects offline ledger sources. A snapshot file wins over a
// store, and a store over the RPC endpoint.
type LedgerConfig struct {
	Snapshot string `mapstructure:"snapshot"`
	Store    string `mapstructure:"store"`
}

// VerifyConfig configures verification rules.
type VerifyConfig struct {
	// Clock is "system", "ledger" or an RFC 3339 instant.
	Clock               string `mapstructure:"clock"`
	RequireSigner       bool   `mapstructure:"requireSigner"`
	PermanentZeroExpiry bool   `mapstructure:"permanentZeroExpiry"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Addr      string `mapstructure:"addr"`
	HTTP3Addr string `mapstructure:"http3Addr"`
}

// setDefaults registers default values.
func setDefaults(vp *viper.Viper) {
	vp.SetDefault("log.level", "info")

	vp.SetDefault("rpc.endpoint", "https://api.devnet.solana.com")
	vp.SetDefault("rpc.commitment", "confirmed")
	vp.SetDefault("rpc.encoding", "base64+zstd")
	vp.SetDefault("rpc.timeout", 15*time.Second)

	vp.SetDefault("retry.max", 0)
	vp.SetDefault("retry.initialInterval", 200*time.Millisecond)
	vp.SetDefault("retry.maxInterval", 2*time.Second)
	vp.SetDefault("retry.maxElapsed", 10*time.Second)

	vp.SetDefault("ledger.snapshot", "")
	vp.SetDefault("ledger.store", "")

	vp.SetDefault("verify.clock", "system")
	vp.SetDefault("verify.requireSigner", false)
	vp.SetDefault("verify.permanentZeroExpiry", false)

	vp.SetDefault("api.addr", ":8080")
	vp.SetDefault("api.http3Addr", "")
}

// flagKeys maps persistent flag names to config keys.
var flagKeys = map[string]string{
	"log-level":      "log.level",
	"rpc":            "rpc.endpoint",
	"commitment":     "rpc.commitment",
	"retries":        "retry.max",
	"snapshot":       "ledger.snapshot",
	"store":          "ledger.store",
	"clock":          "verify.clock",
	"require-signer": "verify.requireSigner",
}

// addConfigFlags registers the persistent flags bound to config keys.
func addConfigFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("rpc", "", "JSON-RPC endpoint")
	flags.String("commitment", "", "commitment level (processed, confirmed, finalized)")
	flags.Uint64("retries", 0, "retry failed ledger reads this many times")
	flags.String("snapshot", "", "verify against a snapshot file instead of the network")
	flags.String("store", "", "verify against a pinned account store")
	flags.String("clock", "", `time source: "system", "ledger" or an RFC 3339 instant`)
	flags.Bool("require-signer", false, "require the attestation signer to be authorized by its credential")
}

// newViper builds the configuration source: defaults, then the config file,
// then SASVERIFY_* environment variables, then explicitly set flags.
func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	vp := viper.New()
	setDefaults(vp)

	if cfgFile != "" {
		vp.SetConfigFile(cfgFile)
	} else {
		vp.SetConfigType("yaml")
		vp.SetConfigName("sasverify")
		vp.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			vp.AddConfigPath(filepath.Join(home, ".config", "sasverify"))
		}
		vp.AddConfigPath("/etc/sasverify/")
	}

	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := vp.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag %s", name)
				}
			}
		}
	}

	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrapf(err, "read config %s", vp.ConfigFileUsed())
		}
	}

	return vp, nil
}

// loadConfig decodes and validates the configuration.
func loadConfig(vp *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := vp.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks values the consumers would otherwise reject late.
func (c *Config) validate() error {
	switch c.RPC.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return errors.Errorf("invalid rpc.commitment %q", c.RPC.Commitment)
	}

	switch c.RPC.Encoding {
	case "base64", "base64+zstd":
	default:
		return errors.Errorf("invalid rpc.encoding %q", c.RPC.Encoding)
	}

	if _, err := c.clock(nil); err != nil {
		return err
	}

	return nil
}

// clock builds the configured time source. acc backs the ledger clock.
func (c *Config) clock(acc ledger.Accessor) (verify.Clock, error) {
	switch strings.ToLower(c.Verify.Clock) {
	case "", "system":
		return verify.SystemClock{}, nil
	case "ledger":
		return verify.LedgerClock{Accessor: acc}, nil
	}

	t, err := time.Parse(time.RFC3339, c.Verify.Clock)
	if err != nil {
		return nil, errors.Errorf("invalid verify.clock %q: want system, ledger or an RFC 3339 time", c.Verify.Clock)
	}

	return verify.FixedClock(t), nil
}

// verifyOptions builds verifier options over acc.
func (c *Config) verifyOptions(acc ledger.Accessor) (verify.Options, error) {
	clock, err := c.clock(acc)
	if err != nil {
		return verify.Options{}, err
	}

	return verify.Options{
		Clock:                   clock,
		RequireAuthorizedSigner: c.Verify.RequireSigner,
		PermanentZeroExpiry:     c.Verify.PermanentZeroExpiry,
	}, nil
}
