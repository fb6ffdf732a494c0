package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-chatrelay/internal/api"
	"github.com/npezzotti/go-chatrelay/internal/config"
	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/npezzotti/go-chatrelay/internal/server"
	"github.com/npezzotti/go-chatrelay/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func main() {
	var allowedOrigins stringSliceFlag

	addr := flag.String("addr", "localhost:8080", "server address")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "postgres connection string")
	signingKey := flag.String("signing-key", os.Getenv("SIGNING_KEY"), "base64 encoded jwt signing secret")
	ringTimeout := flag.Duration("ring-timeout", config.DefaultRingTimeout, "time before an unanswered call is ended")
	flag.Var(&allowedOrigins, "allowed-origins", "comma separated list of allowed origins")
	flag.Parse()

	logger := log.New(os.Stderr, "[chat-relay] ", log.LstdFlags|log.Lshortfile)

	if err := run(logger, *addr, *dsn, *signingKey, allowedOrigins, *ringTimeout); err != nil {
		logger.Fatal(err)
	}
}

func run(logger *log.Logger, addr, dsn, signingKey string, allowedOrigins []string, ringTimeout time.Duration) error {
	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, ringTimeout)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	db, err := database.NewPgChatRelayRepository(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	go statsUpdater.Run()
	defer statsUpdater.Stop()

	signalServer, err := server.NewSignalServer(logger, db, statsUpdater, cfg.RingTimeout)
	if err != nil {
		return fmt.Errorf("signal server: %w", err)
	}
	go signalServer.Run()

	app := api.NewChatRelayApp(mux, logger, signalServer, db, cfg)

	errCh := make(chan error, 1)
	go func() {
		if err := app.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}

	if err := signalServer.Shutdown(ctx); err != nil {
		logger.Printf("signal server shutdown: %v", err)
	}

	return nil
}
