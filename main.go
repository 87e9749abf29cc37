package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"propsync/cache"
	"propsync/config"
	"propsync/httputil"
	"propsync/logging"
	"propsync/models"
	"propsync/providers"
	"propsync/reconcile"
	"propsync/scheduler"
	"propsync/scraper"
	"propsync/services"
	"propsync/storage"
	"propsync/workers"
)

var (
	syncAgency     = flag.Int64("sync-agency", 0, "Sync one agency by id and exit")
	syncAll        = flag.Bool("sync-all", false, "Sync every agency and exit")
	reconcileID    = flag.Int64("reconcile", 0, "Reconcile one property of this agency id (with -ref) and print JSON")
	listReff       = flag.String("ref", "", "Property ListReff for -reconcile")
	scrapeDaft     = flag.String("scrape-daft", "", "Run the daft market scrape (full or incremental) and exit")
	force          = flag.Bool("force", false, "Ignore cache freshness and refetch every provider")
	importMappings = flag.String("import-mappings", "", "Replace the Postgres field mappings with this YAML file and exit")
	enqueue        = flag.String("enqueue", "", "Queue a command for the running daemon (sync_all, sync_agency, scrape_daft, refresh, pause, resume)")
	agencyParam    = flag.Int64("agency", 0, "Agency id for -enqueue sync_agency")
	modeParam      = flag.String("mode", "", "Scrape mode for -enqueue scrape_daft")
	status         = flag.Bool("status", false, "Print sync and cache status and exit")
)

// domainStore holds agencies, properties and the raw cache.
type domainStore interface {
	services.AgencyStore
	services.PropertyStore
	services.CacheStore
	services.RunStore
	statusReader
}

// statusReader is what -status reads from the domain store.
type statusReader interface {
	GetLastRunTime(ctx context.Context, kind string) (time.Time, error)
	CountStale(ctx context.Context, p models.Provider, cutoff time.Time) (int, error)
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting propsync...")
	log.Printf("Loaded %d provider configs", len(cfg.Providers))
	for id, p := range cfg.Providers {
		logging.Debugf("  - %s (%s)", p.Name, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite holds operational data: runs, logs, commands, daft market.
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	if *enqueue != "" {
		params := &models.CommandParams{AgencyID: *agencyParam, ForceRefresh: *force, Mode: *modeParam}
		id, err := sqliteStore.EnqueueCommand(models.CommandType(*enqueue), params)
		if err != nil {
			log.Fatalf("Failed to enqueue command: %v", err)
		}
		log.Printf("Queued command %s (#%d)", *enqueue, id)
		return
	}

	var store domainStore = sqliteStore
	var pgStore *storage.PostgresStore
	if cfg.Database.URL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		if err := pgStore.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate Postgres: %v", err)
		}
		store = pgStore
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Database.URL))
	} else {
		log.Println("DATABASE_URL not set, using SQLite for agencies and cache")
	}

	if *importMappings != "" {
		if err := runImportMappings(ctx, pgStore, *importMappings); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		return
	}

	if *status {
		printStatus(ctx, os.Stdout, store, sqliteStore, cfg.Cache.Expiry)
		return
	}

	var mappings services.MappingStore
	switch {
	case cfg.FieldMappingsFile != "":
		mappings = storage.NewFileMappingStore(cfg.FieldMappingsFile)
		log.Printf("Field mappings: %s", cfg.FieldMappingsFile)
	case pgStore != nil:
		mappings = pgStore
	default:
		mappings = storage.NewFileMappingStore("config/field_mappings.yaml")
		log.Println("Field mappings: config/field_mappings.yaml")
	}

	clients := httputil.NewClients(&cfg.Proxy, cfg.ProviderTimeout)
	if cfg.Proxy.URL != "" {
		log.Println("Proxy enabled for scraping")
	}

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	aggregator := services.NewAggregator(store, providers.NewFetchers(cfg, clients.API), cache.NewGate(cfg.Cache.Expiry), cfg.ProviderTimeout)
	for _, p := range models.ExternalProviders {
		aggregator.SetTimeout(p, cfg.Provider(string(p)).Timeout(cfg.ProviderTimeout))
	}
	aggregator.SetMetrics(metrics)
	if cfg.S3.Enabled() {
		archive, err := storage.NewRawArchive(ctx, cfg.S3)
		if err != nil {
			log.Printf("Warning: raw archive disabled: %v", err)
		} else {
			aggregator.SetArchiver(archive)
			log.Printf("Archiving raw payloads to s3://%s", cfg.S3.Bucket)
		}
	}

	engine := reconcile.NewEngine(reconcile.NewClassifier(cfg.ImageFields...))
	reconciler := services.NewReconciliationService(mappings, store, store, aggregator, engine)
	reconciler.SetMetrics(metrics)

	feed := providers.NewPropertyDriveFetcher(cfg.Provider(string(models.ProviderPropertyDrive)), clients.API, cfg.APIToken)
	syncer := services.NewSyncService(store, store, feed, aggregator, cfg.Sync)
	syncer.SetRunStore(store, sqliteStore)
	syncer.SetMetrics(metrics)

	market := scraper.NewDaftMarketScraper(cfg.Provider(string(models.ProviderDaft)), clients.Scraping, sqliteStore)
	market.OnListing = metrics.ObserveMarketListing
	orchestrator := scheduler.NewOrchestrator(syncer, market)

	// One-shot commands
	switch {
	case *reconcileID != 0:
		if *listReff == "" {
			log.Fatal("-reconcile requires -ref")
		}
		result, err := reconciler.Reconcile(ctx, *reconcileID, *listReff, *force)
		if err != nil {
			log.Fatalf("Reconcile failed: %v", err)
		}
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Encode result: %v", err)
		}
		fmt.Println(string(out))
		return
	case *syncAgency != 0:
		if err := orchestrator.RunAgency(ctx, *syncAgency, *force); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		return
	case *syncAll:
		if err := orchestrator.RunAll(ctx, *force); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		return
	case *scrapeDaft != "":
		if err := orchestrator.ScrapeDaft(ctx, *scrapeDaft); err != nil {
			log.Fatalf("Daft scrape failed: %v", err)
		}
		return
	}

	// Daemon mode
	refreshWorker := workers.NewRefreshWorker(store, orchestrator)
	refreshWorker.SetPauseCheck(orchestrator.IsPaused)
	refreshWorker.SetLogger(func(level models.LogLevel, source, message string) {
		sqliteStore.Log("refresh", level, message, source)
	})

	sched := scheduler.New(cfg.Scheduler, orchestrator, sqliteStore)
	sched.SetRefreshWorker(refreshWorker)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	go refreshWorker.Run(ctx, 5, 30*time.Minute) // batch of 5 agencies every 30 min
	log.Println("Refresh worker started")

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

func runImportMappings(ctx context.Context, pgStore *storage.PostgresStore, path string) error {
	if pgStore == nil {
		return errors.New("-import-mappings needs DATABASE_URL")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	mappings, err := storage.ParseFieldMappings(data)
	if err != nil {
		return err
	}
	if err := pgStore.ReplaceFieldMappings(ctx, mappings); err != nil {
		return fmt.Errorf("replace mappings: %w", err)
	}
	log.Printf("Imported %d field mappings from %s", len(mappings), path)
	return nil
}

// printStatus reads runs and cache state from the domain store, which is
// Postgres when configured, and the command queue from SQLite.
func printStatus(ctx context.Context, w io.Writer, store statusReader, queue *storage.SQLiteStore, expiry time.Duration) {
	for _, kind := range []string{"all", "agency"} {
		last, err := store.GetLastRunTime(ctx, kind)
		if err != nil {
			log.Printf("Warning: last %s run: %v", kind, err)
			continue
		}
		if last.IsZero() {
			fmt.Fprintf(w, "last %s sync: never\n", kind)
			continue
		}
		fmt.Fprintf(w, "last %s sync: %s (%s ago)\n", kind, last.Format(time.RFC3339), time.Since(last).Round(time.Minute))
	}

	cutoff := time.Now().Add(-expiry)
	for _, p := range models.ExternalProviders {
		n, err := store.CountStale(ctx, p, cutoff)
		if err != nil {
			log.Printf("Warning: stale count for %s: %v", p, err)
			continue
		}
		fmt.Fprintf(w, "%-14s %d stale records\n", p, n)
	}

	pending, err := queue.GetPendingCommands()
	if err == nil {
		fmt.Fprintf(w, "pending commands: %d\n", len(pending))
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("Metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Warning: metrics server stopped: %v", err)
	}
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
