package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ledzpl/linechat/internal/chat"
	"github.com/ledzpl/linechat/internal/config"
	"github.com/ledzpl/linechat/internal/logging"
)

func main() {
	configDir := flag.String("config", "configs", "Directory containing linechat.yaml")
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "linechat: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	logger := logging.Init(cfg.Log)

	room := chat.NewRoom(
		chat.WithQueueCapacity(cfg.Room.QueueCapacity),
		chat.WithOutboxSize(cfg.Room.OutboxSize),
		chat.WithDeliverTimeout(cfg.Room.DeliverTimeout),
		chat.WithLogger(logger),
	)
	defer room.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return room.Run(ctx)
	})

	listeners, err := newListeners(cfg, room, logger)
	if err != nil {
		return err
	}
	for _, l := range listeners {
		l := l
		g.Go(func() error {
			return l.serve(ctx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
