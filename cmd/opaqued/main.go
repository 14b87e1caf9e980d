// Command opaqued runs the handshake service over HTTP with a Redis
// backend.
//
// Configuration comes from flags, with environment variables as fallback:
//
//	-a / OPAQUED_ADDR          bind address (default ":8080")
//	-r / OPAQUED_REDIS_ADDR    Redis address (default "127.0.0.1:6379")
//	-p / OPAQUED_REDIS_PASS    Redis password
//	-s / OPAQUED_SETUP         base64 server setup (required; see opaqued-setup)
//	-t / OPAQUED_STATE_TTL     login state lifetime (default 60s)
//	-dev                       run against an embedded in-memory Redis
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sealbox/opaqued"
	"github.com/sealbox/opaqued/httpapi"
	"github.com/sealbox/opaqued/logging"
	"github.com/sealbox/opaqued/pake"
)

type options struct {
	addr      string
	redisAddr string
	redisPass string
	setupB64  string
	stateTTL  time.Duration
	dev       bool
}

func parseOptions() options {
	opts := options{
		addr:      envOr("OPAQUED_ADDR", ":8080"),
		redisAddr: envOr("OPAQUED_REDIS_ADDR", "127.0.0.1:6379"),
		redisPass: os.Getenv("OPAQUED_REDIS_PASS"),
		setupB64:  os.Getenv("OPAQUED_SETUP"),
		stateTTL:  60 * time.Second,
	}

	flag.StringVar(&opts.addr, "a", opts.addr, "bind address")
	flag.StringVar(&opts.redisAddr, "r", opts.redisAddr, "redis address")
	flag.StringVar(&opts.redisPass, "p", opts.redisPass, "redis password")
	flag.StringVar(&opts.setupB64, "s", opts.setupB64, "base64 server setup")
	flag.DurationVar(&opts.stateTTL, "t", opts.stateTTL, "login state lifetime")
	flag.BoolVar(&opts.dev, "dev", false, "use embedded in-memory redis")
	flag.Parse()

	return opts
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	opts := parseOptions()

	slogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	log := logging.NewSlogLogger(slogger)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	setup, err := loadSetup(opts, log)
	if err != nil {
		return err
	}

	redisAddr := opts.redisAddr
	if opts.dev {
		mini, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("starting embedded redis: %w", err)
		}
		defer mini.Close()
		redisAddr = mini.Addr()
		log.Warn(ctx, "dev mode: using embedded in-memory redis", "addr", redisAddr)
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: opts.redisPass})
	defer client.Close()

	cfg := opaqued.DefaultConfig()
	cfg.LoginStateTTL = opts.stateTTL

	engine, err := opaqued.New().
		WithConfig(cfg).
		WithRedis(client).
		WithServerSetup(setup).
		WithLogger(log).
		Build()
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	server := &http.Server{
		Addr:              opts.addr,
		Handler:           httpapi.New(engine, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", opts.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func loadSetup(opts options, log logging.Logger) (*pake.ServerSetup, error) {
	if opts.setupB64 == "" {
		if !opts.dev {
			return nil, errors.New("server setup is required: pass -s or set OPAQUED_SETUP (generate one with opaqued-setup)")
		}
		log.Warn(context.Background(), "dev mode: generating throwaway server setup; registrations will not survive restarts")
		return pake.NewServerSetup(), nil
	}

	raw, err := base64.StdEncoding.DecodeString(opts.setupB64)
	if err != nil {
		return nil, fmt.Errorf("decoding server setup: %w", err)
	}
	setup, err := pake.ParseServerSetup(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing server setup: %w", err)
	}
	return setup, nil
}
