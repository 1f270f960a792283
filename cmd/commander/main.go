// Package main runs the Commander deck session behind the local bridge.
// Presentation clients drive it over REST and receive events on /ws.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ramonehamilton/mtg-commander/internal/api"
	"github.com/ramonehamilton/mtg-commander/internal/config"
	"github.com/ramonehamilton/mtg-commander/internal/deck"
	"github.com/ramonehamilton/mtg-commander/internal/events"
	"github.com/ramonehamilton/mtg-commander/internal/export"
	"github.com/ramonehamilton/mtg-commander/internal/remote"
	"github.com/ramonehamilton/mtg-commander/internal/session"
	"github.com/ramonehamilton/mtg-commander/internal/storage"
	"github.com/ramonehamilton/mtg-commander/internal/version"
)

var (
	configPath = flag.String("config", "", "Config file path (default: ~/.mtga-commander/config.toml)")
	backendURL = flag.String("backend", "", "Deck/catalog service URL (overrides config)")
	port       = flag.Int("port", 0, "Bridge port (overrides config)")
	noCache    = flag.Bool("no-cache", false, "Disable the snapshot cache")
	debug      = flag.Bool("debug", false, "Log every session event")
	showVer    = flag.Bool("version", false, "Print version and exit")

	exportDeck   = flag.String("export", "", "Write deck ID as a decklist and exit")
	exportFormat = flag.String("format", "arena", "Decklist format: arena, text, json, csv")
	exportOut    = flag.String("out", "", "Decklist file (default: stdout)")
	exportForce  = flag.Bool("force", false, "Overwrite an existing decklist file")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.GetVersion())
		return
	}

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run returns instead of exiting so deferred cleanup always happens.
func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Keep stdout clean when a decklist goes there.
	if *exportDeck == "" {
		fmt.Println("MTG Commander - Deck Session")
		fmt.Println("============================")
		fmt.Println()
	}
	log.Printf("Backend: %s", cfg.Remote.BaseURL)

	client, err := newClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure client: %w", err)
	}

	var cache deck.Cache
	if cfg.Cache.Enabled {
		db, err := openCache(cfg)
		if err != nil {
			return fmt.Errorf("failed to open snapshot cache: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("Error closing snapshot cache: %v", err)
			}
		}()
		cache = storage.NewSnapshotStore(db)
	}

	dispatcher := events.NewEventDispatcher()
	dispatcher.Register(events.NewLoggingObserver(cfg.App.DebugMode))

	sess := session.New(client, session.Options{
		SearchLimit: cfg.Search.Limit,
		Cache:       cache,
		Dispatcher:  dispatcher,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := sess.RefreshDecks(ctx); err != nil {
		log.Printf("Initial deck refresh failed: %v", err)
	}
	cancel()
	if e := sess.LastError(); e != nil {
		log.Printf("Deck service unavailable at startup: %s", e.Message)
	}
	log.Printf("Decks loaded: %d", len(sess.Decks()))

	if *exportDeck != "" {
		req := exportRequest{DeckID: *exportDeck, Format: *exportFormat, Out: *exportOut, Force: *exportForce}
		if err := exportDecklist(sess, req, os.Stdout); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		return nil
	}

	if !cfg.API.Enabled {
		log.Println("Bridge disabled in config; nothing to serve")
		return nil
	}

	server := api.NewServer(&api.Config{
		Port:           cfg.API.Port,
		AllowedOrigins: cfg.AllowedOrigins(),
	}, sess)

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}

	fmt.Println()
	fmt.Printf("Bridge running at http://localhost:%d (events on /ws)\n", server.Port())
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println()
	fmt.Println("Shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	fmt.Println("Bridge stopped.")
	return nil
}

// deckSource is the part of the session a decklist export reads.
type deckSource interface {
	Deck(id string) (remote.Deck, bool)
}

type exportRequest struct {
	DeckID string
	Format string
	Out    string // empty writes to stdout
	Force  bool   // replace an existing Out
}

func exportDecklist(src deckSource, req exportRequest, stdout io.Writer) error {
	format, err := export.ParseDeckFormat(req.Format)
	if err != nil {
		return err
	}
	d, ok := src.Deck(req.DeckID)
	if !ok {
		return fmt.Errorf("deck %s not found", req.DeckID)
	}
	if req.Out == "" {
		return export.WriteDeck(stdout, d, format)
	}
	if err := export.WriteDeckFile(req.Out, d, format, req.Force); err != nil {
		return err
	}
	log.Printf("Exported %s to %s", d.Name, req.Out)
	return nil
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if *backendURL != "" {
		cfg.Remote.BaseURL = *backendURL
	}
	if *port != 0 {
		cfg.API.Port = *port
	}
	if *noCache {
		cfg.Cache.Enabled = false
	}
	if *debug {
		cfg.App.DebugMode = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient(cfg *config.Config) (*remote.Client, error) {
	timeout, err := cfg.GetRequestTimeout()
	if err != nil {
		return nil, err
	}
	interval, err := cfg.GetRateInterval()
	if err != nil {
		return nil, err
	}

	clientCfg := remote.DefaultClientConfig(cfg.Remote.BaseURL)
	clientCfg.Timeout = timeout
	clientCfg.MaxRetries = cfg.Remote.MaxRetries
	clientCfg.RateInterval = interval
	if cfg.Remote.UserAgent != "" {
		clientCfg.UserAgent = cfg.Remote.UserAgent
	}
	return remote.NewClient(clientCfg), nil
}

func openCache(cfg *config.Config) (*storage.DB, error) {
	path, err := cfg.CachePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	log.Printf("Snapshot cache: %s", path)
	return storage.Open(storage.DefaultConfig(path))
}
