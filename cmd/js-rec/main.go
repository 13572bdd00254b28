package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"js-rec/internal/core/app"
	"js-rec/internal/platform/config"
	"js-rec/internal/platform/logx"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logx.SetVerbosity(cfg.Verbosity)

	if cfg.Input == "" {
		fmt.Fprintln(os.Stderr, "uso: js-rec --input urls.txt [--outdir salida] [--passes probe,fetch]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logx.Infof("Iniciando js-rec input=%s outdir=%s passes=%v concurrency=%d retries=%d",
		cfg.Input, cfg.OutDir, cfg.Passes, cfg.Concurrency, cfg.Retries)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := app.Run(ctx, cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logx.Warnf("interrumpido; las URLs pendientes quedan sin intentar")
			os.Exit(130)
		}
		logx.Errorf("%v", err)
		os.Exit(1)
	}

	logx.Infof("Listo. %d almacenadas, %d duplicadas, %d fallidas. Salida en: %s",
		summary.Stored, summary.Duplicates, summary.Failed, cfg.OutDir)
}
