package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/rcline/electioncal/internal/collate"
	"github.com/rcline/electioncal/internal/config"
	"github.com/rcline/electioncal/internal/enrich"
	"github.com/rcline/electioncal/internal/fetch"
	"github.com/rcline/electioncal/internal/logger"
	"github.com/rcline/electioncal/internal/models"
	"github.com/rcline/electioncal/internal/polymarket"
	"github.com/rcline/electioncal/internal/storage"
	"github.com/rcline/electioncal/internal/table"
	"github.com/rcline/electioncal/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

const usage = `usage: electioncal [-config path] <command>

commands:
  fetch     pull closed election markets into the labeling CSV
  events    resolve the curated event list into D/R market pairs
  enrich    derive 7-day probabilities and correctness for labeled markets
  collate   merge enriched D/R pairs into one row per event`

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	command := flag.Arg(0)

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	client := polymarket.NewClient(
		cfg.Polymarket.GammaAPIURL,
		cfg.Polymarket.ClobAPIURL,
		cfg.Polymarket.Timeout,
		polymarket.ClientConfig{
			MaxRetries:     cfg.Polymarket.MaxRetries,
			RetryDelayBase: cfg.Polymarket.RetryDelayBase,
			RequestDelay:   cfg.Polymarket.RequestDelay,
		},
	)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cancelling run...")
		cancel()
	}()

	switch command {
	case "fetch":
		err = runFetch(ctx, cfg, client)
	case "events":
		err = runEvents(ctx, cfg, client)
	case "enrich":
		err = runEnrich(ctx, cfg, client, store, telegramClient)
	case "collate":
		err = runCollate(ctx, cfg, client, store)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		if telegramClient != nil {
			if sendErr := telegramClient.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
		logger.Fatal("Command %s failed: %v", command, err)
	}
}

func runFetch(ctx context.Context, cfg *config.Config, client *polymarket.Client) error {
	fetcher := fetch.New(client, fetch.Config{
		TagID:          cfg.Fetch.TagID,
		ExcludedTagIDs: cfg.Fetch.ExcludedTagIDs,
		PageLimit:      cfg.Fetch.PageLimit,
	})

	markets, err := fetcher.FetchAll(ctx)
	if err != nil {
		if len(markets) == 0 {
			return fmt.Errorf("failed to fetch markets: %w", err)
		}
		// Keep the pages already gathered; re-running resumes cleanly
		// because the output is overwritten whole.
		logger.Warn("Pagination stopped early, writing %d markets fetched so far: %v", len(markets), err)
	}
	if len(markets) == 0 {
		return fmt.Errorf("no markets found for tag %d", cfg.Fetch.TagID)
	}

	t := fetch.ToTable(markets)
	if err := t.WriteFile(cfg.Paths.MarketsCSV); err != nil {
		return err
	}
	logger.Info("Saved %d markets to %s", t.Len(), cfg.Paths.MarketsCSV)
	return nil
}

func runEvents(ctx context.Context, cfg *config.Config, client *polymarket.Client) error {
	slugs, err := fetch.ReadSlugList(cfg.Paths.SlugList)
	if err != nil {
		return err
	}
	logger.Info("Resolving %d events from %s", len(slugs), cfg.Paths.SlugList)

	pairs, err := fetch.ResolveEvents(ctx, client, slugs)
	if err != nil {
		return err
	}

	complete := 0
	for i := range pairs {
		if pairs[i].Complete() {
			complete++
		}
	}
	logger.Info("Resolved %d events (%d with both D and R markets)", len(pairs), complete)

	if err := fetch.WritePairs(cfg.Paths.EventsJSON, pairs); err != nil {
		return err
	}
	logger.Info("Saved %d events to %s", len(pairs), cfg.Paths.EventsJSON)
	return nil
}

func runEnrich(ctx context.Context, cfg *config.Config, client *polymarket.Client, store *storage.Storage, telegramClient *telegram.Client) error {
	t, err := table.ReadFile(cfg.Paths.LabeledCSV)
	if err != nil {
		return err
	}
	inputRows := t.Len()
	logger.Info("Loaded %d rows from %s", inputRows, cfg.Paths.LabeledCSV)

	duplicates, err := t.DedupeBy("id")
	if err != nil {
		return err
	}
	logger.Info("After deduplication: %d rows (%d duplicates removed)", t.Len(), duplicates)

	records, err := enrich.RecordsFromTable(t)
	if err != nil {
		return err
	}

	enricher := enrich.New(client, priceCache(cfg, store), enrich.Config{
		WindowDays:      cfg.Enrich.WindowDays,
		FidelityMinutes: cfg.Enrich.FidelityMinutes,
		MatchTolerance:  cfg.Enrich.MatchTolerance,
	})

	enriched, report, err := enricher.Run(ctx, records)
	if err != nil {
		return err
	}
	report.RunID = uuid.NewString()
	report.InputRows = inputRows
	report.Duplicates = duplicates

	if err := enrich.AppendDerived(t, enriched, cfg.Enrich.WindowDays); err != nil {
		return err
	}
	if err := t.WriteFile(cfg.Paths.EnrichedCSV); err != nil {
		return err
	}
	logger.Info("Saved %d markets to %s", t.Len(), cfg.Paths.EnrichedCSV)

	logReport(report)
	if err := store.RecordRun(report); err != nil {
		logger.Warn("Failed to record run: %v", err)
	}
	if telegramClient != nil {
		if err := telegramClient.SendReport(report); err != nil {
			logger.Warn("Failed to send Telegram summary: %v", err)
		}
	}
	return nil
}

func runCollate(ctx context.Context, cfg *config.Config, client *polymarket.Client, store *storage.Storage) error {
	pairs, err := collate.LoadPairs(cfg.Paths.EventsJSON)
	if err != nil {
		return err
	}
	logger.Info("Loaded %d events from %s", len(pairs), cfg.Paths.EventsJSON)

	enricher := enrich.New(client, priceCache(cfg, store), enrich.Config{
		WindowDays:      cfg.Enrich.WindowDays,
		FidelityMinutes: cfg.Enrich.FidelityMinutes,
		MatchTolerance:  cfg.Enrich.MatchTolerance,
	})
	collator := collate.New(enricher, cfg.Enrich.WindowDays)

	t, err := collator.Run(ctx, pairs)
	if err != nil {
		return err
	}
	if err := t.WriteFile(cfg.Paths.CollatedCSV); err != nil {
		return err
	}
	logger.Info("Saved %d collated events to %s", t.Len(), cfg.Paths.CollatedCSV)
	return nil
}

func priceCache(cfg *config.Config, store *storage.Storage) enrich.Cache {
	if !cfg.Storage.CachePrices || store == nil {
		return nil
	}
	return store
}

func logReport(r *models.RunReport) {
	logger.Info("Run %s: %d markets, 7d prices for %d, 1d prices for %d, %d fetch failures",
		r.RunID, r.Markets, r.With7d, r.With1d, r.FetchFails)
	if r.Total7d > 0 {
		logger.Info("Correct at 7d: %d/%d (%.1f%%)", r.Correct7d, r.Total7d, 100*float64(r.Correct7d)/float64(r.Total7d))
	}
	if r.Total1d > 0 {
		logger.Info("Correct at 1d: %d/%d (%.1f%%)", r.Correct1d, r.Total1d, 100*float64(r.Correct1d)/float64(r.Total1d))
	}
	for _, side := range []models.Side{models.SideRepublican, models.SideDemocrat} {
		ss := r.BySide[side]
		if ss == nil || ss.Markets == 0 {
			continue
		}
		logger.Info("Side %s: %d markets, correct at 7d %d/%d, correct at 1d %d/%d",
			side, ss.Markets, ss.Correct7d, ss.Total7d, ss.Correct1d, ss.Total1d)
	}
}
