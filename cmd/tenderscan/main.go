package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tenderscan/internal/browser"
	"tenderscan/internal/config"
	"tenderscan/internal/journal"
	"tenderscan/internal/models"
	"tenderscan/internal/runner"
	"tenderscan/internal/scraper"
	"tenderscan/internal/workbook"
	"tenderscan/pkg/logger"
)

func main() {
	var (
		input      = flag.String("input", "", "Path to the tender workbook (.xlsx)")
		outputDir  = flag.String("output-dir", ".", "Directory for the output workbook")
		outputName = flag.String("output", "", "Output filename (default: timestamped)")
		market     = flag.String("market", "both", "Marketplace to scrape: yandex, ozon or both")
		headless   = flag.Bool("headless", true, "Run browser in headless mode")
		auth       = flag.Bool("auth", false, "Inject cookies.json into browser sessions")
		resume     = flag.Bool("resume", false, "Reuse offers journaled by a prior run of the same input")
		checkpoint = flag.Int("checkpoint", 0, "Merge into the output workbook every N items (0 = config default)")
	)
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting tender scan")

	if *input == "" {
		fmt.Println("No input workbook. Use -input to specify the tender file.")
		flag.Usage()
		os.Exit(1)
	}

	markets, err := selectMarkets(*market)
	if err != nil {
		log.Fatalf("Invalid market selection: %v", err)
	}

	items, err := workbook.ReadItems(*input)
	if err != nil {
		logger.Error("Failed to read tender items", "error", err)
		os.Exit(1)
	}
	if len(items) == 0 {
		logger.Error("No items found in workbook", "input", *input)
		os.Exit(1)
	}
	logger.Info("Tender items loaded", "input", *input, "items", len(items))

	outputPath := filepath.Join(*outputDir, *outputName)
	if *outputName == "" {
		stamp := time.Now().Format("20060102_150405")
		outputPath = filepath.Join(*outputDir, fmt.Sprintf("tender_result_%s.xlsx", stamp))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, saving completed items")
		cancel()
	}()

	browserOpts := &browser.Options{
		Headless:       *headless && cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      browser.DefaultOptions().UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		ProfileRoot:    cfg.Browser.ProfileRoot,
		ExtraHeaders:   browser.DefaultOptions().ExtraHeaders,
	}
	if *auth {
		browserOpts.CookiesPath = cfg.Browser.CookiesPath
	}

	b, err := browser.New(browserOpts)
	if err != nil {
		logger.Error("Failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	j, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		logger.Error("Failed to open journal", "error", err)
		os.Exit(1)
	}
	defer j.Close()

	merger := workbook.NewMerger(workbook.MergeOptions{
		HigherColor:       cfg.Tender.HigherColor,
		FarColor:          cfg.Tender.FarColor,
		ModerateColor:     cfg.Tender.ModerateColor,
		NeutralColor:      cfg.Tender.NeutralColor,
		ModerateThreshold: cfg.Tender.ModerateThreshold,
		FarThreshold:      cfg.Tender.FarThreshold,
		LinkScanWindow:    cfg.Tender.LinkScanWindow,
		LinkOffset:        cfg.Tender.LinkOffset,
		HighlightColors:   cfg.Tender.HighlightColors,
		Logger:            logger,
	})

	checkpointEvery := cfg.Tender.CheckpointEvery
	if *checkpoint > 0 {
		checkpointEvery = *checkpoint
	}

	exitCode := 0
	for _, mkt := range markets {
		if err := runMarket(ctx, marketRun{
			market:          mkt,
			items:           items,
			inputPath:       *input,
			outputPath:      outputPath,
			resume:          *resume,
			checkpointEvery: checkpointEvery,
			cfg:             cfg,
			browser:         b,
			journal:         j,
			merger:          merger,
		}, logger); err != nil {
			// One marketplace failing to merge must not kill the other.
			logger.Error("Market run failed", "market", mkt.Label, "error", err)
			exitCode = 1
		}
		if ctx.Err() != nil {
			break
		}
	}

	logger.Info("Tender scan finished", "output", outputPath)
	if exitCode != 0 {
		b.Close()
		j.Close()
		os.Exit(exitCode)
	}
}

type marketRun struct {
	market          *scraper.Marketplace
	items           []models.Item
	inputPath       string
	outputPath      string
	resume          bool
	checkpointEvery int
	cfg             *config.Config
	browser         *browser.Browser
	journal         *journal.Journal
	merger          *workbook.Merger
}

// runMarket scrapes every item against one marketplace and merges the result
// table into the output workbook. Periodic checkpoints merge partial tables
// so an interrupted run still leaves a usable file.
func runMarket(ctx context.Context, r marketRun, logger *slog.Logger) error {
	finder := scraper.NewFinder(r.market, scraper.FinderOptions{
		BusinessMarkup: r.cfg.Scraper.BusinessMarkup,
		VisitDelayMin:  r.cfg.Scraper.VisitDelayMin,
		VisitDelayMax:  r.cfg.Scraper.VisitDelayMax,
		MaxRetries:     r.cfg.Scraper.MaxRetries,
		RetryDelay:     r.cfg.Scraper.RetryDelay,
		WaitTimeout:    r.cfg.Scraper.WaitTimeout,
		MaxCandidates:  r.cfg.Scraper.MaxCandidates,
	}, logger)

	var prior models.ResultTable
	if r.resume {
		var err error
		prior, err = r.journal.CompletedOffers(ctx, r.inputPath, r.market.Label)
		if err != nil && !errors.Is(err, journal.ErrNoPriorRun) {
			return fmt.Errorf("failed to load prior offers: %w", err)
		}
		logger.Info("Resuming from journal", "market", r.market.Label, "completed", len(prior))
	}

	runID, err := r.journal.StartRun(ctx, r.inputPath, r.market.Label)
	if err != nil {
		return err
	}

	coord := runner.New(r.browser, runner.Options{
		CheckpointEvery: r.checkpointEvery,
		Checkpoint: func(table models.ResultTable) error {
			return r.merger.Merge(r.inputPath, r.outputPath, table, r.market.Label)
		},
		RecordOffer: func(position int, name string, res models.OfferResult) error {
			// Background context: a finished item is journaled even while the
			// run is being cancelled.
			return r.journal.RecordOffer(context.Background(), runID, position, name, res)
		},
		Resume: prior,
	}, logger)

	table := coord.Run(ctx, finder, r.items)

	// Final merge runs even after cancellation: completed items must land in
	// the output before exit.
	if err := r.merger.Merge(r.inputPath, r.outputPath, table, r.market.Label); err != nil {
		return err
	}

	logger.Info("Market results merged",
		"market", r.market.Label, "found", table.FoundCount(), "items", len(r.items))
	return nil
}

func selectMarkets(mode string) ([]*scraper.Marketplace, error) {
	switch mode {
	case "yandex":
		return []*scraper.Marketplace{scraper.YandexMarket()}, nil
	case "ozon":
		return []*scraper.Marketplace{scraper.Ozon()}, nil
	case "both":
		return []*scraper.Marketplace{scraper.YandexMarket(), scraper.Ozon()}, nil
	default:
		return nil, errors.New("must be one of: yandex, ozon, both")
	}
}
