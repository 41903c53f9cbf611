package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/janneta/canvass/campaign"
	"github.com/janneta/canvass/candidate"
	"github.com/janneta/canvass/config"
	"github.com/janneta/canvass/docstore"
	"github.com/janneta/canvass/filestorage"
	"github.com/janneta/canvass/localcache"
	"github.com/janneta/canvass/pendingwrites"
	"github.com/janneta/canvass/printer"
	"github.com/janneta/canvass/receipt"
	"github.com/janneta/canvass/translate"
	"github.com/janneta/canvass/voter"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"go.uber.org/zap"
)

const receiptsPath = "/receipts"

func newStorage(ctx context.Context, cfg config.Config) (filestorage.FileStorage, error) {
	switch cfg.Storage.Driver {
	case "gcs":
		return filestorage.NewGCSClient(ctx)
	case "s3":
		return filestorage.NewAWSClient(cfg.Storage.S3Region, cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey)
	case "drive":
		return filestorage.NewGoogleDriveStorage(ctx, cfg.Storage.DriveCredentials, cfg.Storage.DriveToken)
	}
	publicURL := cfg.Storage.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("http://localhost:%d%s", cfg.Port, receiptsPath)
	}
	return filestorage.NewLocalStorage(publicURL), nil
}

func main() {
	if err := config.LoadEnvFile(config.EnvFile); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %q", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := localcache.Open(cfg.Store.CachePath)
	if err != nil {
		logger.Fatalf("failed to open local cache: %q", err)
	}
	defer cache.Close()
	store, closeStore, err := docstore.Open(ctx, cfg.Store.Options())
	if err != nil {
		logger.Fatalf("failed to open %s store: %q", cfg.Store.Driver, err)
	}
	defer closeStore()
	queue := pendingwrites.New(cache.DB(), store, logger)

	cand, err := candidate.Load(ctx, cache, cfg.CandidateFile, logger)
	if err != nil {
		logger.Fatalf("failed to load candidate branding: %q", err)
	}
	translator := translate.New(logger)
	if cfg.TranslateURL != "" {
		translator.BaseURL = cfg.TranslateURL
	}
	renderer := receipt.NewBrowserRenderer(cfg.BrowserURL, logger)
	defer renderer.Close()
	storage, err := newStorage(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to create %s receipt storage: %q", cfg.Storage.Driver, err)
	}

	svc := campaign.New(campaign.Deps{
		Voters:     voter.NewService(store, cache, queue, logger),
		Queue:      queue,
		Candidate:  cand,
		Printer:    printer.NewConnection(printer.NewBlueZ(cfg.Printer.Adapter, cfg.Printer.Address, logger), printer.DefaultOptions(), logger),
		Translator: translator,
		Renderer:   renderer,
		Storage:    filestorage.WithRetries(storage, 2*time.Second, logger),
		Bucket:     cfg.Storage.Bucket,
		Logger:     logger,
	})
	h := campaign.NewHandler(svc)

	e := echo.New()
	e.HideBanner = true
	e.GET("/manifest.webmanifest", h.Manifest)
	if cfg.Storage.Driver == "local" {
		e.Static(receiptsPath, cfg.Storage.Bucket)
	}
	api := e.Group("/api", middleware.BasicAuth(func(username, password string, c echo.Context) (bool, error) {
		return (username == cfg.UserName && password == cfg.Password), nil
	}))
	h.Register(api)

	go func() {
		logger.Infow("server online", "port", cfg.Port, "store", cfg.Store.Driver, "storage", cfg.Storage.Driver)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Infow("server stopped", "error", err)
			stop()
		}
	}()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("failed to shut down server", "error", err)
	}
}
