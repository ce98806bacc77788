package cli

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/audit"
	"github.com/lanternhq/lantern/pkg/config"
	"github.com/lanternhq/lantern/pkg/corpus"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/storage/postgres"
	"github.com/lanternhq/lantern/pkg/storage/sqlite"
	"github.com/lanternhq/lantern/pkg/vocab"
)

func newSyncCommand() *Command {
	cmd := &Command{
		Name:        "sync",
		Description: "Run one corpus sync against the configured storage",
		Flags:       flag.NewFlagSet("sync", flag.ExitOnError),
		Run:         runSyncCommand,
	}

	cmd.Flags.String("source", "", "Corpus source: s3 or filesystem (overrides LANTERN_CORPUS_SOURCE)")
	cmd.Flags.String("root", "", "Local corpus directory (overrides LANTERN_CORPUS_ROOT)")

	return cmd
}

func runSyncCommand(args []string) error {
	cmd := newSyncCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if source := cmd.Flags.Lookup("source").Value.String(); source != "" {
		cfg.Corpus.Source = source
	}
	if root := cmd.Flags.Lookup("root").Value.String(); root != "" {
		cfg.Corpus.Root = root
	}
	if cfg.Corpus.Source == "" {
		return fmt.Errorf("no corpus source: set LANTERN_CORPUS_SOURCE or pass -source")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	var v *vocab.Vocabulary
	if cfg.Vocabulary.Path != "" {
		v, err = vocab.Load(cfg.Vocabulary.Path)
		if err != nil {
			return fmt.Errorf("failed to load vocabulary from %s: %w", cfg.Vocabulary.Path, err)
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
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		store = pgStore
		s3Client = pgStore.Corpus()

		dbLogger, err := audit.NewDBLogger(pgStore.DB())
		if err != nil {
			return fmt.Errorf("failed to initialize audit trail: %w", err)
		}
		auditLogger = dbLogger
	default:
		liteStore, err := sqlite.New(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to open sqlite database: %w", err)
		}
		store = liteStore

		fileCfg := audit.DefaultFileLoggerConfig()
		fileCfg.BasePath = filepath.Join(filepath.Dir(liteStore.Path()), "audit")
		fileLogger, err := audit.NewFileLogger(fileCfg)
		if err != nil {
			return fmt.Errorf("failed to open audit log in %s: %w", fileCfg.BasePath, err)
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
			return fmt.Errorf("failed to open corpus root %s: %w", cfg.Corpus.Root, err)
		}
		log.Infof("Scanning filesystem corpus at %s", cfg.Corpus.Root)
	default: // s3
		if s3Client == nil {
			s3Client, err = postgres.NewS3Client(cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to create S3 client: %w", err)
			}
		}
		scanner, err = corpus.NewS3Scanner(s3Client, cfg.Storage.S3Prefix)
		if err != nil {
			return fmt.Errorf("failed to create S3 scanner: %w", err)
		}
		log.Infof("Scanning s3://%s/%s", cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
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
		Audit:        auditLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to build syncer: %w", err)
	}

	summary, err := syncer.Run(context.Background())
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("Sync finished in %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Printf("  Scanned:   %d\n", summary.Scanned)
	fmt.Printf("  Indexed:   %d\n", summary.Indexed)
	fmt.Printf("  Unchanged: %d\n", summary.Unchanged)
	fmt.Printf("  Deleted:   %d\n", summary.Deleted)
	fmt.Printf("  Failed:    %d\n", summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d documents failed to sync", summary.Failed)
	}
	return nil
}
