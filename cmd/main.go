package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/victornm/umoja/internal/config"
	"github.com/victornm/umoja/internal/server"
)

func main() {
	path := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the config file, defaults to $CONFIG_PATH")
	flag.Parse()

	c, err := loadConfig(*path)
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	s, err := server.Init(c)
	if err != nil {
		log.Fatalf("Init server failed: %v", err)
	}

	go s.Start()

	<-ctx.Done()
	s.Shutdown()
}

func loadConfig(path string) (server.Config, error) {
	var c server.Config

	if path == "" {
		return c, fmt.Errorf("config path not set: use -config or CONFIG_PATH")
	}

	if err := config.Load(path, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
