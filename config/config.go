package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"tipvault/crypto"
)

// Environments the node recognises. Anything outside dev must terminate TLS
// on the RPC listener.
const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

type Config struct {
	RPCAddress            string `toml:"RPCAddress"`
	DataDir               string `toml:"DataDir"`
	GenesisFile           string `toml:"GenesisFile"`
	ValidatorKeystorePath string `toml:"ValidatorKeystorePath"`
	Environment           string `toml:"Environment"`

	// RPCAuthTokenEnv names the environment variable holding the bearer
	// token for privileged RPC methods. The token itself never lives in
	// the config file.
	RPCAuthTokenEnv string `toml:"RPCAuthTokenEnv"`
	RPCTxsPerMinute int    `toml:"RPCTxsPerMinute"`
	RPCReadTimeout  int    `toml:"RPCReadTimeout"`
	RPCWriteTimeout int    `toml:"RPCWriteTimeout"`
	RPCTLSCertFile  string `toml:"RPCTLSCertFile"`
	RPCTLSKeyFile   string `toml:"RPCTLSKeyFile"`

	LogLevel string `toml:"LogLevel"`
	LogFile  string `toml:"LogFile"`

	OTLPEndpoint string `toml:"OTLPEndpoint"`
	OTLPInsecure bool   `toml:"OTLPInsecure"`
}

// Load reads the configuration at path, creating a default file (and a fresh
// validator keystore) when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}

	for _, undecoded := range meta.Undecoded() {
		if len(undecoded) == 1 && undecoded[0] == "RPCAuthToken" {
			return nil, fmt.Errorf("config file %s embeds an RPC token; set RPCAuthTokenEnv and export the token instead", path)
		}
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8547"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./tipvault-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = EnvDev
	}
	if strings.TrimSpace(c.RPCAuthTokenEnv) == "" {
		c.RPCAuthTokenEnv = "TIPVAULT_RPC_TOKEN"
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects configurations that would bring the node up in an unsafe
// or contradictory state.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("config: unknown environment %q", c.Environment)
	}
	if c.RPCTxsPerMinute < 0 {
		return fmt.Errorf("config: RPCTxsPerMinute must not be negative")
	}
	if c.RPCReadTimeout < 0 || c.RPCWriteTimeout < 0 {
		return fmt.Errorf("config: RPC timeouts must not be negative")
	}
	hasCert := strings.TrimSpace(c.RPCTLSCertFile) != ""
	hasKey := strings.TrimSpace(c.RPCTLSKeyFile) != ""
	if hasCert != hasKey {
		return fmt.Errorf("config: RPCTLSCertFile and RPCTLSKeyFile must be set together")
	}
	if c.Environment != EnvDev && !hasCert {
		return fmt.Errorf("config: %s environment requires TLS on the RPC listener", c.Environment)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

// RPCAuthToken resolves the bearer token from the configured environment
// variable. Empty means privileged methods stay disabled.
func (c *Config) RPCAuthToken() string {
	return strings.TrimSpace(os.Getenv(c.RPCAuthTokenEnv))
}

// ReadTimeout returns the RPC read timeout, zero when unset so the server
// falls back to its default.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.RPCReadTimeout) * time.Second
}

// WriteTimeout returns the RPC write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.RPCWriteTimeout) * time.Second
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.ValidatorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.ValidatorKeystorePath != keystorePath {
		cfg.ValidatorKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:      ":8547",
		DataDir:         "./tipvault-data",
		GenesisFile:     "",
		Environment:     EnvDev,
		RPCAuthTokenEnv: "TIPVAULT_RPC_TOKEN",
		LogLevel:        "info",
	}
	cfg.ValidatorKeystorePath = keystorePath

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "validator.keystore")
}
