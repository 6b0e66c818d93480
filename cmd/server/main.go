package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/vela-games/lfsserver/config"
	"github.com/vela-games/lfsserver/logging"
	"github.com/vela-games/lfsserver/router"
	"github.com/vela-games/lfsserver/services"
)

// NewSigKillContext returns a Context that cancels when os.Interrupt or os.Kill is received
func NewSigKillContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()

	return ctx
}

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.GetConfig(flags)
	if err != nil {
		log.Fatal("error getting configuration", "err", err)
	}

	logger := logging.NewLogger(cfg)
	ctx := log.WithContext(NewSigKillContext(), logger)

	storage, err := services.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("error opening storage", "backend", cfg.StorageBackend, "err", err)
	}
	defer services.Close(storage) //nolint:errcheck

	router := router.NewRouter(cfg, logger)
	router.InitRoutes(cfg, storage)

	err = router.Run(ctx, cfg.Addr())
	if err != nil {
		logger.Fatal("error running server", "err", err)
	}
}
