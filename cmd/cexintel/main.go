package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cexintel/config"
	"cexintel/internal/briefing"
	"cexintel/internal/classify"
	"cexintel/internal/collector"
	"cexintel/internal/diff"
	"cexintel/internal/intel"
	"cexintel/internal/metrics"
	"cexintel/internal/score"
	"cexintel/internal/store"
	"cexintel/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	date := flag.String("date", "", "Collection date (YYYY-MM-DD, default today)")
	focus := flag.String("focus", "all", "Monitoring scope: all, tier1 or an exchange name")
	collectOnly := flag.Bool("collect-only", false, "Collect and print the day record without storing it")
	history := flag.Int("history", 0, "Print the last N stored days and exit")
	migrate := flag.Bool("migrate", false, "Backfill categories on stored records and exit")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Cexintel.Name,
		"version": cfg.Cexintel.Version,
	}).Info("starting cexintel")

	st, err := buildStore(cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to build store")
		os.Exit(1)
	}

	switch {
	case *history > 0:
		if err := printHistory(st, *history); err != nil {
			log.WithError(err).Error("history listing failed")
			os.Exit(1)
		}
		return
	case *migrate:
		if err := migrateCategories(st, log); err != nil {
			log.WithError(err).Error("category migration failed")
			os.Exit(1)
		}
		return
	}

	runDate := *date
	if runDate == "" {
		runDate = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", runDate); err != nil {
		log.WithError(err).Error("invalid -date value")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	exchanges, err := resolveFocus(cfg.Collector, *focus)
	if err != nil {
		log.WithError(err).Error("invalid -focus value")
		os.Exit(1)
	}

	col := collector.New(cfg.Collector, cfg.Filter)
	rec, report, err := col.Run(ctx, runDate, exchanges)
	if err != nil {
		log.WithError(err).Error("collection run aborted")
		os.Exit(1)
	}

	if *collectOnly {
		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			log.WithError(err).Error("failed to encode day record")
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	yesterday := loadYesterday(st, runDate, log)
	if err := st.Put(rec); err != nil {
		log.WithError(err).Error("failed to store day record")
		os.Exit(1)
	}

	result := diff.Compare(rec, yesterday)
	log.WithFields(logger.Fields{
		"new":       len(result.NewItems),
		"resolved":  len(result.ResolvedItems),
		"first_run": result.IsFirstRun,
	}).Info("day-over-day comparison finished")

	stats, err := windowStats(st, cfg)
	if err != nil {
		log.WithError(err).Warn("window scoring failed; briefing rendered without scores")
	}

	text := briefing.Render(rec, result, stats)
	fmt.Println(text)
	briefingPath := filepath.Join(cfg.Store.Root, "last_briefing.txt")
	if err := os.WriteFile(briefingPath, []byte(text), 0o644); err != nil {
		log.WithError(err).Warn("failed to save briefing")
	}

	metrics.NewPublisher(cfg.Metrics.CloudWatch).PublishRun(ctx, rec, report)

	log.WithFields(logger.Fields{
		"date":   runDate,
		"alerts": report.AlertCount,
	}).Info("cexintel finished")
}

// buildStore wires the historical store with the configured mirrors.
func buildStore(cfg *config.Config, log *logger.Log) (*store.Store, error) {
	var mirrors []store.Mirror
	if cfg.Store.MirrorDir != "" {
		mirrors = append(mirrors, store.NewDirMirror(cfg.Store.MirrorDir))
	}
	if cfg.Store.ArchiveDir != "" {
		mirrors = append(mirrors, store.NewParquetMirror(cfg.Store.ArchiveDir))
	}
	if cfg.Storage.S3.Enabled {
		s3m, err := store.NewS3Mirror(cfg.Storage.S3)
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, s3m)
	}
	log.WithComponent("main").WithFields(logger.Fields{
		"root":    cfg.Store.Root,
		"mirrors": len(mirrors),
	}).Info("store configured")
	return store.New(cfg.Store.Root, mirrors...), nil
}

// resolveFocus narrows the monitored list the way the collection CLI
// always has: everything, the tier-1 prefix, or a single named
// exchange.
func resolveFocus(cfg config.CollectorConfig, focus string) ([]string, error) {
	switch strings.ToLower(focus) {
	case "", "all":
		return cfg.Exchanges, nil
	case "tier1":
		return cfg.Tier1(), nil
	}
	for _, ex := range cfg.Exchanges {
		if strings.EqualFold(ex, focus) {
			return []string{ex}, nil
		}
	}
	return nil, fmt.Errorf("unknown exchange %q", focus)
}

func loadYesterday(st *store.Store, runDate string, log *logger.Log) *intel.DayRecord {
	day, _ := time.Parse("2006-01-02", runDate)
	prev := day.AddDate(0, 0, -1).Format("2006-01-02")
	rec, ok, err := st.Get(prev)
	if err != nil {
		log.WithError(err).Warn("failed to load yesterday's record; treating as first run")
		return nil
	}
	if !ok {
		return nil
	}
	return &rec
}

func windowStats(st *store.Store, cfg *config.Config) (map[string]score.Stats, error) {
	records, err := st.Window(cfg.Dashboard.WindowDays)
	if err != nil {
		return nil, err
	}
	seed, err := st.Seed()
	if err != nil {
		return nil, err
	}
	return score.Window(records, seed, cfg.Collector.Exchanges), nil
}

func printHistory(st *store.Store, n int) error {
	dates, err := st.ListDates(n)
	if err != nil {
		return err
	}
	for _, date := range dates {
		rec, ok, err := st.Get(date)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fmt.Printf("%s  %3d alerts  %s\n", date, len(rec.Alerts), rec.Summary)
	}
	return nil
}

// migrateCategories backfills the category field on every stored record
// and rewrites only the days that changed.
func migrateCategories(st *store.Store, log *logger.Log) error {
	dates, err := st.ListDates(0)
	if err != nil {
		return err
	}
	changed := 0
	for _, date := range dates {
		rec, ok, err := st.Get(date)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !classify.MigrateRecord(&rec) {
			continue
		}
		if err := st.Put(rec); err != nil {
			return err
		}
		changed++
	}
	log.WithComponent("migrate").WithFields(logger.Fields{
		"dates":   len(dates),
		"changed": changed,
	}).Info("category migration finished")
	return nil
}
