package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tipvault/cmd/internal/passphrase"
	"tipvault/config"
	"tipvault/core"
	"tipvault/core/genesis"
	"tipvault/core/types"
	"tipvault/crypto"
	"tipvault/observability/logging"
	telemetry "tipvault/observability/otel"
	"tipvault/rpc"
	"tipvault/storage"
)

const (
	validatorPassEnv = "TIPVAULT_VALIDATOR_PASS"
	genesisPathEnv   = "TIPVAULT_GENESIS"
)

func main() {
	configFile := flag.String("config", "./config.toml", "path to the configuration file")
	genesisFlag := flag.String("genesis", "", "path to a genesis spec JSON file (overrides TIPVAULT_GENESIS and config GenesisFile)")
	allowAutogenesis := flag.Bool("allow-autogenesis", false, "DEV ONLY: boot a fresh dev genesis with the validator as platform admin")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.SetupWithOptions(logging.Options{
		Service: "tipvaultd",
		Env:     cfg.Environment,
		Level:   logLevel(cfg.LogLevel),
		File:    cfg.LogFile,
	})
	fatal := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	shutdownTelemetry := func(context.Context) error { return nil }
	if strings.TrimSpace(cfg.OTLPEndpoint) != "" {
		shutdownTelemetry, err = telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: "tipvaultd",
			Environment: cfg.Environment,
			Endpoint:    cfg.OTLPEndpoint,
			Insecure:    cfg.OTLPInsecure,
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			fatal("initialise telemetry", "error", err)
		}
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		fatal("open database", "dataDir", cfg.DataDir, "error", err)
	}
	defer db.Close()

	validatorKey, err := loadValidatorKey(cfg)
	if err != nil {
		fatal("load validator key", "keystore", cfg.ValidatorKeystorePath, "error", err)
	}
	validatorAddr := validatorKey.PubKey().Address()

	spec, err := resolveGenesis(*genesisFlag, cfg, *allowAutogenesis, validatorAddr)
	if err != nil {
		fatal("resolve genesis", "error", err)
	}

	node, err := core.NewNode(db, validatorKey, spec, logger)
	if err != nil {
		fatal("start node", "error", err)
	}
	defer node.Close()

	server := rpc.NewServer(node, rpc.ServerConfig{
		AuthToken:    cfg.RPCAuthToken(),
		TxsPerMinute: cfg.RPCTxsPerMinute,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		TLSCertFile:  cfg.RPCTLSCertFile,
		TLSKeyFile:   cfg.RPCTLSKeyFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vault := node.Vault()
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("rpc listening",
			slog.String("address", cfg.RPCAddress),
			slog.Uint64("chainId", node.ChainID()),
			slog.String("validator", validatorAddr.String()),
			slog.String("vault", crypto.NewAddress(vault[:]).String()),
		)
		serveErr <- server.Start(cfg.RPCAddress)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			fatal("rpc server stopped", "error", err)
		}
	}
}

// loadValidatorKey decrypts the configured keystore. Keystores written by
// config bootstrap carry an empty passphrase; anything else resolves the
// passphrase from the environment or an interactive prompt.
func loadValidatorKey(cfg *config.Config) (*crypto.PrivateKey, error) {
	path := cfg.ValidatorKeystorePath
	if !crypto.KeystoreExists(path) {
		return nil, fmt.Errorf("validator keystore %s does not exist", path)
	}
	if key, err := crypto.LoadFromKeystore(path, ""); err == nil {
		return key, nil
	}
	pass, err := passphrase.NewSource(validatorPassEnv, "node key").Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

// resolveGenesis picks the genesis source in precedence order: the --genesis
// flag, the config file, the TIPVAULT_GENESIS variable, and finally a dev
// autogenesis when explicitly allowed.
func resolveGenesis(flagPath string, cfg *config.Config, allowAutogenesis bool, validator crypto.Address) (*genesis.Spec, error) {
	path := strings.TrimSpace(flagPath)
	if path == "" {
		path = strings.TrimSpace(cfg.GenesisFile)
	}
	if path == "" {
		path = strings.TrimSpace(os.Getenv(genesisPathEnv))
	}
	if path != "" {
		return genesis.Load(path)
	}
	if !allowAutogenesis {
		return nil, fmt.Errorf("no genesis spec configured; provide --genesis, set GenesisFile, or pass --allow-autogenesis for a dev node")
	}
	if cfg.Environment != config.EnvDev {
		return nil, fmt.Errorf("autogenesis is restricted to the dev environment, config declares %q", cfg.Environment)
	}
	spec := genesis.DevSpec(types.ChainID(), validator)
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
