package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
	"github.com/mkrupp/homecase-imagekv/internal/infra/config"
	"github.com/mkrupp/homecase-imagekv/internal/infra/logging"
	"github.com/mkrupp/homecase-imagekv/internal/infra/telemetry"
	"github.com/mkrupp/homecase-imagekv/internal/infra/transport/http"
	"github.com/mkrupp/homecase-imagekv/internal/repo/blob"
	"github.com/mkrupp/homecase-imagekv/internal/repo/journal"
	"github.com/mkrupp/homecase-imagekv/internal/svc/imagesvc"
)

const (
	appName = "imagekv"
	svcName = "imagesvc"
)

type Config struct {
	config.EnvConfig

	Log       logging.LoggerConfig         `envPrefix:"LOG_"`
	Store     blob.StoreConfig             `envPrefix:"STORE_"`
	Journal   journal.RepositoryConfig     `envPrefix:"JOURNAL_"`
	Image     imagesvc.ImageConfig         `envPrefix:"IMAGE_"`
	ImageHTTP imagesvc.HTTPTransportConfig `envPrefix:"IMAGE_HTTP_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.imagesvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
			panic(err)
		}

		log.InfoContext(ctx, "shutdown")
	}()

	storeFactory, err := blob.NewStoreFactory(cfg.Store)
	if err != nil {
		return fmt.Errorf("store factory: %w", err)
	}

	journalFactory, err := journal.NewRepositoryFactory(cfg.Journal)
	if err != nil {
		return fmt.Errorf("journal factory: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), //nolint:exhaustruct
	)

	imageSvc, err := imagesvc.NewBlobImageService(
		ctx,
		storeFactory,
		journalFactory,
		codec.New(),
		telemetry.NewMetrics(registry),
		cfg.Image,
	)
	if err != nil {
		return fmt.Errorf("new image service: %w", err)
	}
	defer imageSvc.Close()

	httpTransport := imagesvc.NewHTTPTransport(imageSvc, telemetry.Handler(registry), cfg.ImageHTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.ImageHTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
