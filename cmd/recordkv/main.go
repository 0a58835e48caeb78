// Command recordkv is a shell over a recordkv adapter.
//
// Records are kept in one namespace on one of several backends. Commands can
// be typed into the interactive prompt or passed as arguments:
//
//	recordkv -backend pebble -dir ./data save '{"title":"buy milk"}'
//	recordkv -backend redis list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/recordkv"
	"github.com/hupe1980/recordkv/codec"
	"github.com/hupe1980/recordkv/kv"
	"github.com/hupe1980/recordkv/prommetrics"
)

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := &slog.LevelVar{}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "YAML configuration file")
	namespace := flag.String("namespace", "", "record namespace")
	area := flag.String("area", "", "storage area: local or sync")
	backend := flag.String("backend", "", "backend: "+strings.Join(backends, ", "))
	dir := flag.String("dir", "", "data directory of the local and pebble backends")
	codecName := flag.String("codec", "", "value codec, e.g. go-json or json+zstd")
	cacheSize := flag.Int("cache", 0, "read cache entries, 0 disables the cache")
	noQuota := flag.Bool("no-quota", false, "do not enforce sync area quotas")
	ordered := flag.Bool("ordered-delete", false, "write the index before removing records")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address")
	logLevel := flag.String("log", "", "log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "namespace":
			cfg.Namespace = *namespace
		case "area":
			cfg.Area = *area
		case "backend":
			cfg.Backend = *backend
		case "dir":
			cfg.Dir = *dir
		case "codec":
			cfg.Codec = *codecName
		case "cache":
			cfg.CacheSize = *cacheSize
		case "no-quota":
			cfg.NoQuota = *noQuota
		case "ordered-delete":
			cfg.Ordered = *ordered
		case "metrics":
			cfg.MetricsAddr = *metricsAddr
		case "log":
			cfg.LogLevel = *logLevel
		}
	})
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}

	a, store, closeStore, err := openAdapter(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("close adapter", "err", err)
		}
		if err := closeStore(); err != nil {
			slog.Error("close store", "err", err)
		}
	}()

	if cfg.MetricsAddr != "" {
		srv, err := serveMetrics(ctx, cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	sh := newShell(a, store, os.Stdout)
	if args := flag.Args(); len(args) > 0 {
		_, err := sh.exec(ctx, args)
		return err
	}
	return sh.repl(ctx)
}

// openAdapter builds the adapter described by cfg and returns it with its
// backend. The returned function releases the backend and must run after the
// adapter is closed.
func openAdapter(ctx context.Context, cfg Config) (*recordkv.Adapter, kv.Store, func() error, error) {
	ar, err := recordkv.ParseArea(cfg.Area)
	if err != nil {
		return nil, nil, nil, err
	}
	c, ok := codec.ByName(cfg.Codec)
	if !ok {
		return nil, nil, nil, fmt.Errorf("unknown codec %q", cfg.Codec)
	}
	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []recordkv.Option{
		recordkv.WithStore(ar, store),
		recordkv.WithCodec(c),
		recordkv.WithLogger(recordkv.NewLogger(slog.Default().Handler())),
		recordkv.WithOrderedDelete(cfg.Ordered),
	}
	if cfg.NoQuota {
		opts = append(opts, recordkv.WithSyncQuota(nil))
	}
	if cfg.MetricsAddr != "" {
		mc, err := prommetrics.New(prometheus.DefaultRegisterer, "recordkv")
		if err != nil {
			_ = closer.Close()
			return nil, nil, nil, err
		}
		opts = append(opts, recordkv.WithMetricsCollector(mc))
	}

	a, err := recordkv.New(cfg.Namespace, ar, opts...)
	if err != nil {
		_ = closer.Close()
		return nil, nil, nil, err
	}
	slog.Debug("adapter ready", "namespace", cfg.Namespace, "area", ar, "backend", cfg.Backend, "codec", c.Name())
	return a, store, closer.Close, nil
}

func serveMetrics(ctx context.Context, addr string) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server", "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())
	return srv, nil
}

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "recordkv: %s\n", err)
		os.Exit(1)
	}
}
