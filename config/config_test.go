package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tipvault/crypto"
)

func TestLoadParsesNodeSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	keystorePath := filepath.Join(dir, "validator.keystore")
	contents := fmt.Sprintf(`RPCAddress = "0.0.0.0:9000"
DataDir = "./data"
GenesisFile = "genesis.json"
ValidatorKeystorePath = "%s"
Environment = "staging"
RPCAuthTokenEnv = "TV_TOKEN"
RPCTxsPerMinute = 12
RPCReadTimeout = 20
RPCWriteTimeout = 18
RPCTLSCertFile = "/path/to/cert.pem"
RPCTLSKeyFile = "/path/to/key.pem"
LogLevel = "debug"
OTLPEndpoint = "otel-collector:4318"
OTLPInsecure = true
`, keystorePath)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9000" {
		t.Fatalf("unexpected RPC address %q", cfg.RPCAddress)
	}
	if cfg.Environment != EnvStaging {
		t.Fatalf("unexpected environment %q", cfg.Environment)
	}
	if cfg.RPCTxsPerMinute != 12 {
		t.Fatalf("unexpected tx budget %d", cfg.RPCTxsPerMinute)
	}
	if cfg.ReadTimeout().Seconds() != 20 || cfg.WriteTimeout().Seconds() != 18 {
		t.Fatalf("unexpected timeouts %v/%v", cfg.ReadTimeout(), cfg.WriteTimeout())
	}
	if cfg.OTLPEndpoint != "otel-collector:4318" || !cfg.OTLPInsecure {
		t.Fatalf("unexpected otlp settings %q insecure=%v", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	}
	if !crypto.KeystoreExists(keystorePath) {
		t.Fatalf("expected keystore to be created at %s", keystorePath)
	}
}

func TestLoadCreatesDefaultConfigAndKeystore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RPCAddress != ":8547" {
		t.Fatalf("unexpected default RPC address %q", cfg.RPCAddress)
	}
	if cfg.Environment != EnvDev {
		t.Fatalf("unexpected default environment %q", cfg.Environment)
	}
	if cfg.RPCAuthTokenEnv != "TIPVAULT_RPC_TOKEN" {
		t.Fatalf("unexpected token env %q", cfg.RPCAuthTokenEnv)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}
	if !crypto.KeystoreExists(cfg.ValidatorKeystorePath) {
		t.Fatalf("expected keystore at %s", cfg.ValidatorKeystorePath)
	}
	if _, err := crypto.LoadFromKeystore(cfg.ValidatorKeystorePath, ""); err != nil {
		t.Fatalf("expected generated keystore to decrypt: %v", err)
	}
}

func TestLoadRejectsEmbeddedToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `RPCAddress = ":9000"
RPCAuthToken = "secret-in-file"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "RPCAuthTokenEnv") {
		t.Fatalf("expected embedded token rejection, got %v", err)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown environment", func(c *Config) { c.Environment = "production" }},
		{"negative tx budget", func(c *Config) { c.RPCTxsPerMinute = -1 }},
		{"negative timeout", func(c *Config) { c.RPCReadTimeout = -5 }},
		{"cert without key", func(c *Config) { c.RPCTLSCertFile = "cert.pem"; c.RPCTLSKeyFile = "" }},
		{"prod without tls", func(c *Config) { c.Environment = EnvProd }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tc := range cases {
		cfg := &Config{}
		cfg.applyDefaults()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestRPCAuthTokenComesFromEnvironment(t *testing.T) {
	cfg := &Config{RPCAuthTokenEnv: "TIPVAULT_TEST_TOKEN"}
	t.Setenv("TIPVAULT_TEST_TOKEN", "  bearer-value  ")
	if got := cfg.RPCAuthToken(); got != "bearer-value" {
		t.Fatalf("expected trimmed token, got %q", got)
	}
}
