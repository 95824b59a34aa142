// Command kinvault-agent runs one vault command per invocation: it parses
// the natural-language text on the command line through the workflow
// engine and prints the result. With no text and -startup it performs a
// proactive trigger check instead.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/kinvault/kinvault/internal/config"
	"github.com/kinvault/kinvault/internal/consent"
	"github.com/kinvault/kinvault/internal/crypto"
	"github.com/kinvault/kinvault/internal/llm"
	"github.com/kinvault/kinvault/internal/storage"
	"github.com/kinvault/kinvault/internal/storage/postgres"
	"github.com/kinvault/kinvault/internal/storage/sqlite"
	"github.com/kinvault/kinvault/internal/workflow"
	"github.com/kinvault/kinvault/pkg/types"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file (optional, uses env vars by default)")
	userID     = flag.String("user", "", "Vault owner (overrides config)")
	token      = flag.String("token", "", "Consent token to present to the gate")
	startup    = flag.Bool("startup", false, "Run the proactive trigger check before parsing the command")
	jsonOut    = flag.Bool("json", false, "Print the full result as JSON instead of just the message")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfigFromFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *userID != "" {
		cfg.Agent.UserID = *userID
	}

	gate := buildGate(cfg)
	decision := gate.Validate(*token, "vault")
	if !decision.OK {
		log.Fatalf("Consent check failed: %s", decision.Reason)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	defer func() { _ = store.Close() }()

	generator, err := llm.NewTextGenerator(llm.ProviderConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}

	key, err := vaultKey(cfg)
	if err != nil {
		log.Fatalf("Failed to derive vault key: %v", err)
	}

	engine := workflow.NewEngineWithConfig(store, llm.NewParser(generator), llm.NewAdvisor(generator), workflow.Config{
		StartupWindowDays: cfg.Agent.StartupWindowDays,
		ListingWindowDays: cfg.Agent.ListingWindowDays,
	})

	text := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if text == "" && !*startup {
		fmt.Fprintln(os.Stderr, "Usage: kinvault-agent [flags] <command text>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx := context.Background()
	result := engine.RunCommand(ctx, decision.Claims.UserID, key, text, *startup)

	printResult(result, *jsonOut)
	if result.Status != types.StatusSuccess {
		os.Exit(1)
	}
}

// buildGate wires the consent gate. A configured token yields a static
// gate; development mode without a token admits everything as the
// configured user.
func buildGate(cfg *config.Config) consent.Gate {
	if cfg.Security.ConsentToken != "" {
		return consent.NewStaticGate(cfg.Security.ConsentToken, cfg.Agent.UserID)
	}
	return consent.AllowAll(cfg.Agent.UserID)
}

func openStore(cfg *config.Config) (storage.RecordStore, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.NewRecordStore(cfg.Storage.PostgresDSN)
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return sqlite.NewRecordStore(filepath.Join(cfg.Storage.DataPath, "kinvault.db"))
	}
}

// vaultKey derives the record encryption key. With a passphrase configured
// the key comes from Argon2id over a per-installation salt persisted next
// to the database; without one (development mode) a fixed key is coerced
// so local data survives restarts.
func vaultKey(cfg *config.Config) ([]byte, error) {
	if cfg.Security.VaultPassphrase == "" {
		return crypto.CoerceKey([]byte("kinvault-development-key")), nil
	}

	saltPath := filepath.Join(cfg.Storage.DataPath, "kinvault.salt")
	salt, err := os.ReadFile(saltPath)
	if os.IsNotExist(err) {
		salt = crypto.GenerateSalt()
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		if err := os.WriteFile(saltPath, salt, 0o600); err != nil {
			return nil, fmt.Errorf("failed to persist key salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read key salt: %w", err)
	}

	return crypto.DeriveVaultKey(cfg.Security.VaultPassphrase, salt), nil
}

func printResult(result *types.CommandResult, asJSON bool) {
	if asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Println(result.Message)
	for _, row := range result.Data {
		line, err := json.Marshal(row)
		if err != nil {
			continue
		}
		fmt.Printf("  %s\n", line)
	}
}
