package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	pcache "github.com/aipulse/pulse/pkg/cache"
	"github.com/aipulse/pulse/pkg/config"
	"github.com/aipulse/pulse/pkg/content"
	"github.com/aipulse/pulse/pkg/fetcher"
	"github.com/aipulse/pulse/pkg/health"
	"github.com/aipulse/pulse/pkg/parser"
	"github.com/aipulse/pulse/pkg/proxy"
	"github.com/aipulse/pulse/pkg/scheduler"
	"github.com/aipulse/pulse/pkg/store"
	"github.com/aipulse/pulse/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" description:"config file (uses built-in defaults when omitted)"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	p := flags.NewParser(&opts, flags.Default)
	if _, err := p.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor)

	log.Printf("[INFO] starting pulse version %s", revision)

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.Debug); err != nil {
		log.Printf("[ERROR] pulse failed: %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

// run wires the pipeline and serves until the context is canceled
func run(ctx context.Context, cfg *config.Config, debug bool) error {
	selector := proxy.NewSelector(cfg.GetProxies(), proxy.Options{})
	fetch := fetcher.New(selector, fetcher.Options{
		Timeout:       cfg.Fetch.Timeout,
		ProxyAttempts: cfg.Fetch.ProxyAttempts,
		Backoff:       cfg.Fetch.Backoff,
		UserAgent:     cfg.Fetch.UserAgent,
	})
	parse := parser.New()
	articles := store.New(cfg.Store.MaxArticles)
	tracker := health.NewTracker(health.Options{
		MaxRetries:        cfg.Retry.MaxRetries,
		RetryDelay:        cfg.Retry.Delay,
		CategoryWarnRatio: cfg.Retry.CategoryWarnRatio,
	})

	var cacheClient scheduler.CacheWriter
	if cfg.Cache.Enabled {
		cacheClient = pcache.NewClient(cfg.Cache.BaseURL, cfg.Fetch.Timeout)
		log.Printf("[INFO] cache write-through enabled, service at %s", cfg.Cache.BaseURL)
	}

	var extractor scheduler.Extractor
	if cfg.Extraction.Enabled {
		extractor = content.NewHTTPExtractor(cfg.Extraction.Timeout, cfg.Fetch.UserAgent, cfg.Extraction.MinTextLength)
		log.Printf("[INFO] content enrichment enabled")
	}

	sched := scheduler.NewScheduler(fetch, parse, articles, tracker, cacheClient, extractor, scheduler.Config{
		Feeds:           cfg.GetFeeds(),
		PollInterval:    cfg.Schedule.PollInterval,
		RetryInterval:   cfg.Schedule.RetryInterval,
		CleanupInterval: cfg.Schedule.CleanupInterval,
		EnrichInterval:  cfg.Extraction.Interval,
		EnrichRateLimit: cfg.Extraction.RateLimit,
		MinTextLength:   cfg.Extraction.MinTextLength,
		BatchSize:       cfg.Schedule.BatchSize,
		MaxWorkers:      cfg.Schedule.MaxWorkers,
		BatchPause:      cfg.Schedule.BatchPause,
	})

	sched.Start(ctx)
	defer sched.Stop()

	srv := server.New(cfg, articles, tracker, selector, sched, revision, debug)
	return srv.Run(ctx)
}

// loadConfig loads the YAML config or falls back to built-in defaults
func loadConfig(opts Opts) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.Config != "" {
		cfg, err = config.Load(opts.Config)
		if err != nil {
			return nil, fmt.Errorf("can't load config %s: %w", opts.Config, err)
		}
	} else {
		cfg = config.Default()
	}

	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
	return cfg, nil
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
