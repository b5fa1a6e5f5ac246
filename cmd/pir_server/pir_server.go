package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"keywordpir/driver"
	"keywordpir/rpc"
	"keywordpir/usecase"
)

func main() {
	config := new(driver.Config).AddPirFlags().AddServerFlags().Parse()
	if config.ConfigFile == "" {
		logrus.Fatal("Missing -config")
	}

	prof := driver.NewProfiler(config.CpuProfile)
	defer prof.Close()

	store := usecase.NewStore()
	reloader := driver.NewReloader(config.ConfigFile, store)
	// Usecases that fail to build are logged; the others are served.
	if err := reloader.Reload(); err != nil && len(store.Names()) == 0 {
		logrus.Fatalf("No usecase could be built: %v", err)
	}
	if config.Watch {
		if err := reloader.Watch(); err != nil {
			logrus.Fatalf("Failed to watch %s: %v", config.ConfigFile, err)
		}
		defer reloader.Close()
	}

	server, err := rpc.NewServer(config.Port, config.UseTLS)
	if err != nil {
		logrus.Fatalf("Failed to create server: %s", err)
	}
	pirDriver := driver.NewServerDriver(store, config.KeyCacheSize, config.MeasureBandwidth)
	if err := server.RegisterName("PirServerDriver", pirDriver); err != nil {
		logrus.Fatalf("Failed to register PIR driver, %s", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		server.Close()
	}()

	if err := server.Serve(); err != nil {
		logrus.Fatalf("Failed to serve: %v", err)
	}
}
