package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"live-translator/internal/bootstrap"
	"live-translator/internal/config"
	"live-translator/internal/logging"
)

func main() {
	// A local .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	if err := bootstrap.PrepareToolPath(); err != nil {
		log.Printf("prepare tool path: %v", err)
	}

	loader := config.Loader{}
	store := config.NewFileStore(loader.SettingsPath())
	settings, err := loader.Load(store)
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}

	logger, err := logging.New(settings.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logger.Info("settings loaded", zap.String("path", store.Path()))

	app, err := bootstrap.New(bootstrap.Options{
		Settings: settings,
		Store:    store,
		Loader:   loader,
		Services: bootstrap.NewServices(settings, logger),
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("bootstrap app", zap.Error(err))
	}

	if err := app.Run(); err != nil {
		logger.Fatal("run app", zap.Error(err))
	}
}
