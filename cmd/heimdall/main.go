package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"heimdall/config"
	"heimdall/driver"
	"heimdall/engine"
	"heimdall/infra/journal"
	"heimdall/infra/logx"
	"heimdall/jobs/broadcaster"
	"heimdall/tradelog"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (default: heimdall.yaml in ./config or .)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	log, err := logx.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	defer log.Sync()

	openHour, openMinute, err := cfg.OpenClock()
	if err != nil {
		log.Error("bad config", zap.Error(err))
		return 1
	}

	// ---------------- Trade journal (optional) ----------------

	var sinks []tradelog.Sink
	var jnl *journal.Journal
	if cfg.Journal.Dir != "" {
		jnl, err = journal.Open(cfg.Journal.Dir)
		if err != nil {
			log.Error("journal open failed", zap.Error(err))
			return 1
		}
		defer jnl.Close()
		sinks = append(sinks, jnl)
		log.Info("trade journal enabled", zap.String("dir", cfg.Journal.Dir))
	}

	// ---------------- Engine ----------------

	trades := tradelog.New(log, sinks...)
	eng := engine.New(engine.Config{
		ReferenceIndex:    cfg.ReferenceIndex,
		SessionOpenHour:   openHour,
		SessionOpenMinute: openMinute,
		PriceScale:        cfg.PriceScale,
	}, trades, log)

	for _, b := range cfg.Bands {
		ref, err := decimal.NewFromString(b.Reference)
		if err != nil {
			log.Error("bad band reference", zap.String("symbol", b.Symbol), zap.Error(err))
			return 1
		}
		pct, err := decimal.NewFromString(b.Percent)
		if err != nil {
			log.Error("bad band percent", zap.String("symbol", b.Symbol), zap.Error(err))
			return 1
		}
		eng.SetPriceBand(b.Symbol, ref, pct)
	}

	// ---------------- Trade feed (optional) ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.Feed.Brokers) > 0 {
		if jnl == nil {
			log.Error("feed requires journal.dir to be set")
			return 1
		}
		bc, err := broadcaster.New(jnl, cfg.Feed.Brokers, cfg.Feed.Topic, cfg.Feed.Interval, log)
		if err != nil {
			log.Error("broadcaster init failed", zap.Error(err))
			return 1
		}
		defer bc.Close()
		bc.Start(ctx)
	}

	// ---------------- Command script ----------------

	in := os.Stdin
	if script := flag.Arg(0); script != "" {
		f, err := os.Open(script)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open command file: %s\n", script)
			return 1
		}
		defer f.Close()
		in = f
	}

	if err := driver.Run(in, os.Stdout, os.Stderr, eng, time.Now); err != nil {
		log.Error("driver failed", zap.Error(err))
		return 1
	}
	return 0
}
