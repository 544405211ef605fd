package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime configuration for the tip indexer.
type Config struct {
	ListenAddress string        `yaml:"listen"`
	DatabasePath  string        `yaml:"database"`
	Node          NodeConfig    `yaml:"node"`
	Metrics       bool          `yaml:"metrics"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
}

// NodeConfig points the indexer at one tipvault node.
type NodeConfig struct {
	// RPCURL is the JSON-RPC endpoint used for queries.
	RPCURL string `yaml:"rpcUrl"`
	// WSURL is the websocket event feed. Derived from RPCURL when empty.
	WSURL string `yaml:"wsUrl"`
	// AuthTokenEnv names the environment variable holding the node bearer
	// token for privileged reads. The token never lives in the file.
	AuthTokenEnv string        `yaml:"authTokenEnv"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LoadConfig reads the YAML config at path. An empty path yields defaults so
// a dev indexer can run against a local node with no file at all.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		dec := yaml.NewDecoder(strings.NewReader(string(raw)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8091"
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		c.DatabasePath = "tipindex.db"
	}
	if strings.TrimSpace(c.Node.RPCURL) == "" {
		c.Node.RPCURL = "http://localhost:8547"
	}
	if strings.TrimSpace(c.Node.AuthTokenEnv) == "" {
		c.Node.AuthTokenEnv = "TIPVAULT_RPC_TOKEN"
	}
	if c.Node.Timeout <= 0 {
		c.Node.Timeout = 15 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 20 * time.Second
	}
}

func (c *Config) validate() error {
	if _, err := url.Parse(c.Node.RPCURL); err != nil {
		return fmt.Errorf("config: invalid node rpcUrl: %w", err)
	}
	if strings.TrimSpace(c.Node.WSURL) != "" {
		if _, err := url.Parse(c.Node.WSURL); err != nil {
			return fmt.Errorf("config: invalid node wsUrl: %w", err)
		}
	}
	return nil
}

// EventFeedURL returns the websocket endpoint for the node event feed,
// deriving ws(s)://.../ws/events from the RPC URL when not set explicitly.
func (c *Config) EventFeedURL() (string, error) {
	if explicit := strings.TrimSpace(c.Node.WSURL); explicit != "" {
		return explicit, nil
	}
	parsed, err := url.Parse(c.Node.RPCURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/ws/events"
	return parsed.String(), nil
}

// NodeAuthToken resolves the bearer token from the configured environment
// variable.
func (c *Config) NodeAuthToken() string {
	return strings.TrimSpace(os.Getenv(c.Node.AuthTokenEnv))
}
