package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/aipulse/pulse/pkg/cache"
	"github.com/aipulse/pulse/server"
)

// Opts with all CLI options
type Opts struct {
	Listen  string        `short:"l" long:"listen" env:"LISTEN" default:":8081" description:"listen address"`
	Dir     string        `short:"d" long:"dir" env:"CACHE_DIR" default:"var/cache" description:"snapshot directory"`
	TTL     time.Duration `long:"ttl" env:"CACHE_TTL" default:"30m" description:"snapshot freshness window"`
	Timeout time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"http read/write timeout"`

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

	log.Printf("[INFO] starting pulse cache service version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	st, err := cache.NewFileStore(opts.Dir, opts.TTL)
	if err != nil {
		log.Printf("[ERROR] can't open snapshot store: %v", err)
		os.Exit(1)
	}

	srv := server.NewCacheServer(st, opts.Listen, opts.Timeout, revision, opts.Debug)
	if err := srv.Run(ctx); err != nil {
		log.Printf("[ERROR] cache service failed: %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

func setupLog(dbg, noColor bool) {
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

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
