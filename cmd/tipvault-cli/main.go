package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tipvault/core/types"
	"tipvault/crypto"
	sdk "tipvault/sdk/tipvault"
)

const keyFileName = "tipvault-wallet.key"

var rpcEndpoint = defaultRPCEndpoint()
var rpcAuthToken = os.Getenv("TIPVAULT_RPC_TOKEN")

func main() {
	args := os.Args[1:]
	var err error
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	rest := args[1:]
	switch command {
	case "generate-key":
		generateKey()
	case "balance":
		requireArgs(rest, 1, "balance <address>")
		getBalance(rest[0])
	case "send":
		requireArgs(rest, 3, "send <key_file> <to> <amount>")
		run(func(ctx context.Context, cli *sdk.Client) error {
			key, nonce, err := keyAndNonce(ctx, cli, rest[0])
			if err != nil {
				return err
			}
			tx, err := sdk.NewTransferTx(key, nonce, rest[1], rest[2])
			if err != nil {
				return err
			}
			return submit(ctx, cli, tx)
		})
	case "register":
		requireArgs(rest, 4, "register <key_file> <name> <bio> <category> [image_url]")
		run(func(ctx context.Context, cli *sdk.Client) error {
			key, nonce, err := keyAndNonce(ctx, cli, rest[0])
			if err != nil {
				return err
			}
			tx, err := sdk.NewRegisterTx(key, nonce, rest[1], rest[2], rest[3], argAt(rest, 4))
			if err != nil {
				return err
			}
			return submit(ctx, cli, tx)
		})
	case "update-profile":
		requireArgs(rest, 4, "update-profile <key_file> <name> <bio> <category> [image_url]")
		run(func(ctx context.Context, cli *sdk.Client) error {
			key, nonce, err := keyAndNonce(ctx, cli, rest[0])
			if err != nil {
				return err
			}
			tx, err := sdk.NewUpdateProfileTx(key, nonce, rest[1], rest[2], rest[3], argAt(rest, 4))
			if err != nil {
				return err
			}
			return submit(ctx, cli, tx)
		})
	case "tip":
		requireArgs(rest, 3, "tip <key_file> <creator> <amount> [message]")
		run(func(ctx context.Context, cli *sdk.Client) error {
			params, err := cli.GetParams(ctx)
			if err != nil {
				return fmt.Errorf("fetch platform params: %w", err)
			}
			key, nonce, err := keyAndNonce(ctx, cli, rest[0])
			if err != nil {
				return err
			}
			tx, err := sdk.NewTipTx(key, nonce, params.Vault, rest[1], rest[2], argAt(rest, 3))
			if err != nil {
				return err
			}
			return submit(ctx, cli, tx)
		})
	case "split-set":
		requireArgs(rest, 4, "split-set <key_file> <collaborator> <percent> <name>")
		percent, err := strconv.ParseUint(rest[2], 10, 8)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid percent %q\n", rest[2])
			os.Exit(1)
		}
		run(func(ctx context.Context, cli *sdk.Client) error {
			key, nonce, err := keyAndNonce(ctx, cli, rest[0])
			if err != nil {
				return err
			}
			tx, err := sdk.NewSetSplitTx(key, nonce, rest[1], strings.Join(rest[3:], " "), uint8(percent))
			if err != nil {
				return err
			}
			return submit(ctx, cli, tx)
		})
	case "split-remove":
		requireArgs(rest, 1, "split-remove <key_file>")
		runSimple(rest[0], sdk.NewRemoveSplitTx)
	case "badge":
		requireArgs(rest, 4, "badge <key_file> <supporter> <tier> <creator>")
		tier, err := strconv.ParseUint(rest[2], 10, 8)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid tier %q\n", rest[2])
			os.Exit(1)
		}
		run(func(ctx context.Context, cli *sdk.Client) error {
			key, nonce, err := keyAndNonce(ctx, cli, rest[0])
			if err != nil {
				return err
			}
			tx, err := sdk.NewMintBadgeTx(key, nonce, rest[1], uint8(tier), rest[3])
			if err != nil {
				return err
			}
			return submit(ctx, cli, tx)
		})
	case "pause":
		requireArgs(rest, 1, "pause <key_file>")
		runSimple(rest[0], sdk.NewPauseTx)
	case "unpause":
		requireArgs(rest, 1, "unpause <key_file>")
		runSimple(rest[0], sdk.NewUnpauseTx)
	case "transfer-admin":
		requireArgs(rest, 2, "transfer-admin <key_file> <new_admin>")
		run(func(ctx context.Context, cli *sdk.Client) error {
			key, nonce, err := keyAndNonce(ctx, cli, rest[0])
			if err != nil {
				return err
			}
			tx, err := sdk.NewTransferAdminTx(key, nonce, rest[1])
			if err != nil {
				return err
			}
			return submit(ctx, cli, tx)
		})
	case "accept-admin":
		requireArgs(rest, 1, "accept-admin <key_file>")
		runSimple(rest[0], sdk.NewAcceptAdminTx)
	case "set-min-tip":
		requireArgs(rest, 2, "set-min-tip <key_file> <amount>")
		runAmount(rest[0], rest[1], sdk.NewSetMinTipTx)
	case "set-fee":
		requireArgs(rest, 2, "set-fee <key_file> <bps>")
		bps, err := strconv.ParseUint(rest[1], 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid fee %q\n", rest[1])
			os.Exit(1)
		}
		run(func(ctx context.Context, cli *sdk.Client) error {
			key, nonce, err := keyAndNonce(ctx, cli, rest[0])
			if err != nil {
				return err
			}
			tx, err := sdk.NewSetFeeTx(key, nonce, uint32(bps))
			if err != nil {
				return err
			}
			return submit(ctx, cli, tx)
		})
	case "set-thresholds":
		requireArgs(rest, 5, "set-thresholds <key_file> <bronze> <silver> <gold> <diamond>")
		run(func(ctx context.Context, cli *sdk.Client) error {
			key, nonce, err := keyAndNonce(ctx, cli, rest[0])
			if err != nil {
				return err
			}
			tx, err := sdk.NewSetThresholdsTx(key, nonce, rest[1], rest[2], rest[3], rest[4])
			if err != nil {
				return err
			}
			return submit(ctx, cli, tx)
		})
	case "withdraw":
		requireArgs(rest, 2, "withdraw <key_file> <amount>")
		runAmount(rest[0], rest[1], sdk.NewWithdrawFeesTx)
	case "profile":
		requireArgs(rest, 1, "profile <address>")
		runQuery(func(ctx context.Context, cli *sdk.Client) (interface{}, error) {
			return cli.GetProfile(ctx, rest[0])
		})
	case "record":
		requireArgs(rest, 1, "record <address>")
		runQuery(func(ctx context.Context, cli *sdk.Client) (interface{}, error) {
			return cli.GetTipRecord(ctx, rest[0])
		})
	case "split":
		requireArgs(rest, 1, "split <address>")
		runQuery(func(ctx context.Context, cli *sdk.Client) (interface{}, error) {
			return cli.GetSplit(ctx, rest[0])
		})
	case "badges":
		requireArgs(rest, 1, "badges <creator>")
		runQuery(func(ctx context.Context, cli *sdk.Client) (interface{}, error) {
			return cli.ListBadges(ctx, rest[0])
		})
	case "creators":
		runQuery(func(ctx context.Context, cli *sdk.Client) (interface{}, error) {
			return cli.ListCreators(ctx)
		})
	case "stats":
		runQuery(func(ctx context.Context, cli *sdk.Client) (interface{}, error) {
			return cli.GetStats(ctx)
		})
	case "params":
		runQuery(func(ctx context.Context, cli *sdk.Client) (interface{}, error) {
			return cli.GetParams(ctx)
		})
	case "admin":
		runQuery(func(ctx context.Context, cli *sdk.Client) (interface{}, error) {
			return cli.GetAdmin(ctx)
		})
	case "fees":
		runQuery(func(ctx context.Context, cli *sdk.Client) (interface{}, error) {
			return cli.GetFees(ctx)
		})
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func defaultRPCEndpoint() string {
	if fromEnv := strings.TrimSpace(os.Getenv("TIPVAULT_RPC_URL")); fromEnv != "" {
		return fromEnv
	}
	return "http://localhost:8547"
}

// applyGlobalFlags strips --rpc <url> / --rpc=<url> from anywhere in the
// argument list so command handlers see only their own arguments.
func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--rpc requires a URL argument")
			}
			i++
			rpcEndpoint = strings.TrimSpace(args[i])
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimSpace(strings.TrimPrefix(arg, "--rpc="))
		default:
			out = append(out, arg)
		}
	}
	if rpcEndpoint == "" {
		return nil, fmt.Errorf("rpc endpoint must not be empty")
	}
	return out, nil
}

func requireArgs(args []string, min int, usage string) {
	if len(args) < min {
		fmt.Fprintf(os.Stderr, "usage: tipvault-cli %s\n", usage)
		os.Exit(1)
	}
}

func argAt(args []string, idx int) string {
	if idx < len(args) {
		return args[idx]
	}
	return ""
}

func newClient() (*sdk.Client, error) {
	return sdk.New(rpcEndpoint, sdk.WithAuthToken(rpcAuthToken))
}

func run(fn func(context.Context, *sdk.Client) error) {
	cli, err := newClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := fn(ctx, cli); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runSimple executes a builder that needs only key and nonce (pause, accept,
// split-remove and friends).
func runSimple(keyFile string, build func(*crypto.PrivateKey, uint64) (*types.Transaction, error)) {
	run(func(ctx context.Context, cli *sdk.Client) error {
		key, nonce, err := keyAndNonce(ctx, cli, keyFile)
		if err != nil {
			return err
		}
		tx, err := build(key, nonce)
		if err != nil {
			return err
		}
		return submit(ctx, cli, tx)
	})
}

func runAmount(keyFile, amount string, build func(*crypto.PrivateKey, uint64, string) (*types.Transaction, error)) {
	run(func(ctx context.Context, cli *sdk.Client) error {
		key, nonce, err := keyAndNonce(ctx, cli, keyFile)
		if err != nil {
			return err
		}
		tx, err := build(key, nonce, amount)
		if err != nil {
			return err
		}
		return submit(ctx, cli, tx)
	})
}

func runQuery(fn func(context.Context, *sdk.Client) (interface{}, error)) {
	run(func(ctx context.Context, cli *sdk.Client) error {
		result, err := fn(ctx, cli)
		if err != nil {
			return err
		}
		return printJSON(result)
	})
}

func keyAndNonce(ctx context.Context, cli *sdk.Client, keyFile string) (*crypto.PrivateKey, uint64, error) {
	key, err := loadPrivateKey(keyFile)
	if err != nil {
		return nil, 0, err
	}
	balance, err := cli.GetBalance(ctx, key.PubKey().Address().String())
	if err != nil {
		return nil, 0, fmt.Errorf("fetch account nonce: %w", err)
	}
	return key, balance.Nonce, nil
}

func submit(ctx context.Context, cli *sdk.Client, tx *types.Transaction) error {
	result, err := cli.Submit(ctx, tx)
	if err != nil {
		return err
	}
	fmt.Printf("Transaction accepted: %s (%s)\n", result.Hash, result.Type)
	for _, evt := range result.Events {
		fmt.Printf("  event %s\n", evt.Type)
		for key, value := range evt.Attributes {
			fmt.Printf("    %s: %s\n", key, value)
		}
	}
	return nil
}

func generateKey() {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
		os.Exit(1)
	}
	if _, err := os.Stat(keyFileName); err == nil {
		fmt.Fprintf(os.Stderr, "%s already exists; move it aside before generating a new key\n", keyFileName)
		os.Exit(1)
	}
	if err := os.WriteFile(keyFileName, key.Bytes(), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save key to %s: %v\n", keyFileName, err)
		os.Exit(1)
	}
	fmt.Printf("Generated new key and saved to %s\n", keyFileName)
	fmt.Printf("Your public address is: %s\n", key.PubKey().Address().String())
	fmt.Println("Store this file securely. Signing commands refuse to run without it.")
}

func getBalance(addr string) {
	run(func(ctx context.Context, cli *sdk.Client) error {
		balance, err := cli.GetBalance(ctx, addr)
		if err != nil {
			return err
		}
		fmt.Printf("State for: %s\n", balance.Address)
		fmt.Printf("  Balance: %s\n", balance.Balance)
		fmt.Printf("  Nonce:   %d\n", balance.Nonce)
		if balance.AuthAddress != "" {
			fmt.Printf("  Rekeyed to: %s\n", balance.AuthAddress)
		}
		return nil
	})
}

func loadPrivateKey(path string) (*crypto.PrivateKey, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("private key file %s not found; run tipvault-cli generate-key first", path)
		}
		return nil, fmt.Errorf("failed to read private key file %s: %w", path, err)
	}
	if len(keyBytes) == 0 {
		return nil, fmt.Errorf("private key file %s is empty; run tipvault-cli generate-key first", path)
	}
	key, err := crypto.PrivateKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key in %s: %w", path, err)
	}
	return key, nil
}

func printJSON(result interface{}) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func printUsage() {
	fmt.Println("Usage: tipvault-cli [--rpc <url>] <command> [arguments]")
	fmt.Println()
	fmt.Println("Signing commands need a local key file (run generate-key first) and the node's")
	fmt.Println("bearer token exported as TIPVAULT_RPC_TOKEN.")
	fmt.Println("Commands:")
	fmt.Println("  generate-key                                        - Generate a key and save it to " + keyFileName)
	fmt.Println("  balance <address>                                   - Show an account's balance and nonce")
	fmt.Println("  send <key_file> <to> <amount>                       - Transfer value between accounts")
	fmt.Println("  register <key_file> <name> <bio> <category> [image] - Register a creator profile")
	fmt.Println("  update-profile <key_file> <name> <bio> <category> [image]")
	fmt.Println("  tip <key_file> <creator> <amount> [message]         - Tip a registered creator")
	fmt.Println("  split-set <key_file> <collaborator> <percent> <name>")
	fmt.Println("  split-remove <key_file>                             - Clear the revenue split")
	fmt.Println("  badge <key_file> <supporter> <tier> <creator>       - Mint an appreciation badge")
	fmt.Println("  pause | unpause <key_file>                          - Toggle the platform circuit breaker")
	fmt.Println("  transfer-admin <key_file> <new_admin>               - Propose an admin handoff")
	fmt.Println("  accept-admin <key_file>                             - Accept a pending handoff")
	fmt.Println("  set-min-tip <key_file> <amount>")
	fmt.Println("  set-fee <key_file> <bps>")
	fmt.Println("  set-thresholds <key_file> <bronze> <silver> <gold> <diamond>")
	fmt.Println("  withdraw <key_file> <amount>                        - Withdraw accumulated platform fees")
	fmt.Println("  profile | record | split <address>                  - Creator queries")
	fmt.Println("  badges <creator>                                    - List a creator's badges")
	fmt.Println("  creators | stats | params                           - Platform queries")
	fmt.Println("  admin | fees                                        - Privileged platform queries")
}
