package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/config"
	"github.com/lanternhq/lantern/pkg/corpus"
	"github.com/lanternhq/lantern/pkg/observability"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/storage/postgres"
	"github.com/lanternhq/lantern/pkg/storage/sqlite"
	"github.com/lanternhq/lantern/pkg/vocab"
)

var (
	envFile  = flag.String("env-file", ".env", "Optional dotenv file loaded before configuration")
	auditDir = flag.String("audit-dir", "", "Audit log directory for sqlite installs (default: next to the database file)")
	runOnce  = flag.Bool("run-once", false, "Run one sync and exit (for testing and backfills)")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Corpus.Source == "" {
		log.Fatalf("Corpus sync is not configured: set LANTERN_CORPUS_SOURCE to s3 or filesystem")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var v *vocab.Vocabulary
	if cfg.Vocabulary.Path != "" {
		v, err = vocab.Load(cfg.Vocabulary.Path)
		if err != nil {
			log.Fatalf("Failed to load vocabulary from %s: %v", cfg.Vocabulary.Path, err)
		}
	} else {
		v = vocab.Default()
	}

	var (
		store       storage.Store
		s3Client    *postgres.S3Client
		auditLogger audit.Logger
	)
	switch cfg.Storage.Type {
	case "postgres":
		pgStore, err := postgres.New(cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		store = pgStore
		s3Client = pgStore.Corpus()

		dbLogger, err := audit.NewDBLogger(pgStore.DB())
		if err != nil {
			log.Fatalf("Failed to initialize audit trail: %v", err)
		}
		auditLogger = dbLogger
	default:
		liteStore, err := sqlite.New(cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to open sqlite database: %v", err)
		}
		store = liteStore

		fileCfg := audit.DefaultFileLoggerConfig()
		fileCfg.BasePath = *auditDir
		if fileCfg.BasePath == "" {
			fileCfg.BasePath = filepath.Join(filepath.Dir(liteStore.Path()), "audit")
		}
		fileLogger, err := audit.NewFileLogger(fileCfg)
		if err != nil {
			log.Fatalf("Failed to open audit log in %s: %v", fileCfg.BasePath, err)
		}
		defer fileLogger.Close()
		auditLogger = fileLogger
	}
	defer store.Close()

	var scanner corpus.Scanner
	switch cfg.Corpus.Source {
	case "filesystem":
		scanner, err = corpus.NewFilesystemScanner(cfg.Corpus.Root)
		if err != nil {
			log.Fatalf("Failed to open corpus root %s: %v", cfg.Corpus.Root, err)
		}
		log.Printf("Scanning filesystem corpus at %s", cfg.Corpus.Root)
	default: // s3
		if s3Client == nil {
			s3Client, err = postgres.NewS3Client(cfg.Storage)
			if err != nil {
				log.Fatalf("Failed to create S3 client: %v", err)
			}
		}
		scanner, err = corpus.NewS3Scanner(s3Client, cfg.Storage.S3Prefix)
		if err != nil {
			log.Fatalf("Failed to create S3 scanner: %v", err)
		}
		log.Printf("Scanning s3://%s/%s", cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
	}

	var state *corpus.StateStore
	if cfg.Corpus.StateFile != "" {
		state = corpus.NewStateStore(cfg.Corpus.StateFile)
	}

	syncer, err := corpus.NewSyncer(scanner, store, access.NewDeriver(v), corpus.SyncerConfig{
		Workers:      cfg.Corpus.Workers,
		Extensions:   cfg.Corpus.Extensions,
		ManifestName: cfg.Corpus.ManifestName,
		TaskTimeout:  cfg.Corpus.TaskTimeout,
		State:        state,
		Logger:       logger,
		Audit:        auditLogger,
	})
	if err != nil {
		log.Fatalf("Failed to build syncer: %v", err)
	}

	// Run once mode (for testing or backfilling)
	if *runOnce {
		if err := runSync(syncer); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		log.Println("Sync completed successfully")
		return
	}

	// Scheduled mode. Overlapping runs are skipped rather than queued so a
	// slow scan never stacks up behind itself.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err = c.AddFunc(cfg.Corpus.SyncSchedule, func() {
		if err := runSync(syncer); err != nil {
			log.Printf("Sync failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule sync: %v", err)
	}

	c.Start()
	log.Println("Lantern corpus sync started")
	log.Printf("Sync schedule: %s", cfg.Corpus.SyncSchedule)

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop the cron scheduler and wait for a running sync to finish
	ctx := c.Stop()
	<-ctx.Done()

	log.Println("Sync daemon stopped")
}

func runSync(syncer *corpus.Syncer) error {
	summary, err := syncer.Run(context.Background())
	if err != nil {
		return err
	}
	log.Printf("Sync finished in %s: scanned=%d indexed=%d unchanged=%d deleted=%d failed=%d",
		summary.Duration.Round(time.Millisecond), summary.Scanned, summary.Indexed,
		summary.Unchanged, summary.Deleted, summary.Failed)
	return nil
}
