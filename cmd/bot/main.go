package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"VCPSentinel/internal/broker"
	"VCPSentinel/internal/collector"
	"VCPSentinel/internal/config"
	"VCPSentinel/internal/notifier"
	"VCPSentinel/internal/recorder"
	"VCPSentinel/internal/risk"
	"VCPSentinel/internal/scanner"
	"VCPSentinel/internal/scheduler"
	"VCPSentinel/internal/screener"
	"VCPSentinel/internal/trader"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfgPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	once := flag.Bool("once", false, "run a single scan and exit")
	dryRun := flag.Bool("dry-run", false, "simulate fills instead of sending live orders")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded .env")
	}

	log.Println("[INFO] VCPSentinel starting...")

	if v := os.Getenv("CONFIG_PATH"); v != "" && *cfgPath == "configs/config.yaml" {
		*cfgPath = v
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(*dryRun || *once); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Broker: live REST client, or a simulator on top of whatever price data
	// is reachable.
	var bk broker.Broker
	switch {
	case !*dryRun && cfg.Broker.BaseURL != "":
		bk = broker.NewRESTBroker(cfg.Broker.BaseURL, cfg.Broker.APIKey, cfg.Broker.Account, cfg.Proxy, cfg.Broker.RatePerSec)
	case cfg.Broker.BaseURL != "":
		bk = broker.NewSimBroker(broker.NewRESTBroker(cfg.Broker.BaseURL, cfg.Broker.APIKey, cfg.Broker.Account, cfg.Proxy, cfg.Broker.RatePerSec), 100_000)
	default:
		bk = broker.NewSimBroker(broker.NewYahooSource(cfg.Proxy), 100_000)
	}
	log.Printf("[INFO] broker: %s", bk.Name())

	params := risk.Params{
		MaxRiskPerTradePct: cfg.Risk.MaxRiskPerTradePct,
		MaxPositions:       cfg.Risk.MaxPositions,
		InitialStopPct:     cfg.Risk.InitialStopPct,
		MinRSRating:        cfg.Risk.MinRSRating,
		MinVCPScore:        cfg.Risk.MinVCPScore,
	}

	// Recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Notifier: Telegram when configured, console otherwise.
	var notif notifier.Notifier
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		notif = tn
	} else {
		notif = notifier.NewConsoleNotifier()
	}

	// Screening pipeline
	col := collector.NewCollector(bk, cfg.Universe.Workers)
	trendCfg := screener.DefaultTrendConfig()
	trendCfg.MinRSRating = cfg.Risk.MinRSRating
	sc := scanner.New(
		col,
		screener.NewRanker(screener.DefaultMinUniverse),
		screener.NewTrendEvaluator(trendCfg),
		screener.NewDetector(screener.DefaultVCPConfig()),
		rec,
		params,
	)

	coord := trader.NewCoordinator(bk, params, rec, notif)
	if err := coord.Restore(); err != nil {
		log.Fatalf("[FATAL] restore positions: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(ctx, sc, coord, bk, notif, cfg.Universe.Symbols,
		time.Duration(cfg.Schedule.PollIntervalSec)*time.Second)

	if *once {
		sched.RunScanNow()
		log.Println("[INFO] single scan complete")
		return
	}

	if err := sched.RegisterScan(cfg.Schedule.ScanCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing scan now")
		go sched.RunScanNow()
	}

	log.Println("[INFO] VCPSentinel is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := coord.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] coordinator shutdown: %v", err)
	}
	cancel()
	log.Println("[INFO] VCPSentinel stopped")
}
