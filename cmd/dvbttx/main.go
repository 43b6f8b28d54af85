package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/dvbttx/internal/debugsrv"
	"github.com/zsiec/dvbttx/internal/stats"
	"github.com/zsiec/dvbttx/internal/supervisor"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		slog.Error("invalid arguments", "error", err)
		fmt.Fprintln(os.Stderr, "usage: dvbttx <host> <channel> <pid> <udp-port>")
		os.Exit(1)
	}

	debugAddr := envOr("DVBTTX_DEBUG_ADDR", ":4414")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	collector := stats.New()

	sup, err := supervisor.New(cfg, collector, nil)
	if err != nil {
		slog.Error("failed to start supervisor", "error", err)
		os.Exit(1)
	}

	dbg, err := debugsrv.New(debugAddr, collector, nil)
	if err != nil {
		slog.Error("failed to create debug server", "error", err)
		os.Exit(1)
	}

	slog.Info("dvbttx starting",
		"host", cfg.Host, "channel", cfg.Channel, "pid", cfg.PID, "udp_port", cfg.UDPPort,
		"debug_addr", debugAddr,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sup.Run(ctx)
	})
	g.Go(func() error {
		return dbg.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("service error", "error", err)
		os.Exit(1)
	}
}

// parseArgs validates the four positional arguments spec §6 mandates:
// host, channel (decimal), PID (decimal, 1..8190), UDP port (decimal,
// 1..65535). Any failure here is a configuration error (spec §7) — fatal,
// exits non-zero before any socket is opened.
func parseArgs(args []string) (supervisor.Config, error) {
	if len(args) != 4 {
		return supervisor.Config{}, fmt.Errorf("expected 4 arguments, got %d", len(args))
	}

	host := args[0]
	if host == "" {
		return supervisor.Config{}, fmt.Errorf("host must not be empty")
	}

	channel, err := strconv.Atoi(args[1])
	if err != nil {
		return supervisor.Config{}, fmt.Errorf("invalid channel %q: %w", args[1], err)
	}

	pid, err := strconv.Atoi(args[2])
	if err != nil || pid < 1 || pid > 8190 {
		return supervisor.Config{}, fmt.Errorf("invalid PID %q: must be 1..8190", args[2])
	}

	port, err := strconv.Atoi(args[3])
	if err != nil || port < 1 || port > 65535 {
		return supervisor.Config{}, fmt.Errorf("invalid UDP port %q: must be 1..65535", args[3])
	}

	return supervisor.Config{
		Host:    host,
		Channel: channel,
		PID:     uint16(pid),
		UDPPort: port,
	}, nil
}

// envOr returns the value of key if it is set (even to the empty string),
// otherwise fallback.
func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
