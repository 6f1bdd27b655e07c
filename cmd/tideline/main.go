package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/tideline/tideline/internal/aggregates"
	"github.com/tideline/tideline/internal/cache"
	"github.com/tideline/tideline/internal/config"
	nostrclient "github.com/tideline/tideline/internal/nostr"
	"github.com/tideline/tideline/internal/ops"
	"github.com/tideline/tideline/internal/profiles"
	"github.com/tideline/tideline/internal/relays"
	"github.com/tideline/tideline/internal/web"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "manual"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		handleInit()
		return
	}

	var (
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("config", "", "Path to configuration file")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tideline %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		fmt.Printf("  by:     %s\n", builtBy)
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Println("tideline - Nostr social-news aggregation server")
		fmt.Println()
		fmt.Println("No configuration file specified. Use --config <path> to specify config.")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  tideline init              Generate example configuration")
		fmt.Println("  tideline --version         Show version information")
		fmt.Println("  tideline --config <path>   Start with configuration file")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting tideline %s\n", version)
	fmt.Printf("  Site: %s\n", cfg.Site.Title)
	fmt.Printf("  Relays: %d configured\n", len(cfg.Relays.Defaults))
	fmt.Println()

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := ops.NewLogger(&cfg.Logging)
	ops.SetDefault(logger)

	store := relays.NewStore(&cfg.Relays)

	fmt.Println("Initializing cache...")
	cacheStore, err := cache.New(&cfg.Caching)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	fmt.Printf("  Cache: %s ready\n", cfg.Caching.Engine)

	fmt.Println("Connecting relay pool...")
	client := nostrclient.New(ctx, store, &cfg.Relays.Policy)
	defer client.Close()
	fmt.Printf("  Pool: %d relays\n", len(store.Metadata().Relays))

	aggMgr := aggregates.NewManager(client, cacheStore, store.Generation, cfg, logger)
	profileSvc := profiles.NewService(client, cacheStore, store.Generation, cfg, logger)

	fmt.Printf("Starting web server on %s:%d...\n", cfg.Server.Host, cfg.Server.Port)
	server := web.New(cfg, logger, store, client, aggMgr, profileSvc)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start web server: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ All services started successfully!")
	fmt.Println()
	fmt.Println("Press Ctrl+C to shutdown gracefully...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println()
	fmt.Println("Shutting down gracefully...")

	if err := server.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping server: %v\n", err)
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}

func handleInit() {
	exampleConfig, err := config.GetExampleConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading example config: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(string(exampleConfig))
}
