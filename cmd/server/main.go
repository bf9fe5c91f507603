// path: fairy_chess/cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fairy_chess/internal/catalog"
	"fairy_chess/internal/compiler"
	"fairy_chess/internal/game"
	"fairy_chess/internal/httpx"
	"fairy_chess/internal/metrics"
	"fairy_chess/internal/script"
)

func main() {
	// Flags (env fallbacks).
	addr := flag.String("addr", getenv("FAIRY_ADDR", ":8080"), "listen address")
	catalogPath := flag.String("catalog", getenv("FAIRY_CATALOG", ""), "catalog YAML file (default: built-in catalog)")
	compilerURL := flag.String("compiler-url", getenv("FAIRY_COMPILER_URL", ""), "block program compiler endpoint")
	compilerTimeout := flag.Duration("compiler-timeout", getdur("FAIRY_COMPILER_TIMEOUT", compiler.DefaultTimeout), "compiler request timeout")
	cacheSize := flag.Int("cache-size", getint("FAIRY_CACHE_SIZE", compiler.DefaultCacheSize), "compiled program cache entries")
	moveTimeout := flag.Duration("move-timeout", getdur("FAIRY_MOVE_TIMEOUT", script.DefaultTimeout), "wall clock limit per move program")
	maxSteps := flag.Int("max-steps", getint("FAIRY_MAX_STEPS", script.DefaultMaxSteps), "step budget per move program")
	logDev := flag.Bool("log-dev", getenb("FAIRY_LOG_DEV", false), "human readable development logging")
	flag.Parse()

	log, err := newLogger(*logDev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cat, err := loadCatalog(*catalogPath)
	fatalIf(log, err, "catalog")
	log.Info("catalog loaded",
		zap.String("path", *catalogPath),
		zap.Int("moves", len(cat.Moves)),
		zap.Int("pieces", len(cat.Pieces)),
		zap.Strings("setups", cat.SetupNames()))

	programs, err := compiler.New(compiler.Config{
		URL:       *compilerURL,
		Timeout:   *compilerTimeout,
		CacheSize: *cacheSize,
		Logger:    log.Named("compiler"),
	})
	fatalIf(log, err, "compiler client")
	if *compilerURL == "" {
		log.Warn("no compiler service configured; only text programs will run")
	}

	rec := metrics.New()
	eng := game.NewEngine(programs,
		game.WithLogger(log.Named("engine")),
		game.WithExecutor(script.NewExecutor(*moveTimeout, *maxSteps)),
		game.WithObserver(rec))

	srv := httpx.NewServer(httpx.Config{
		Engine:  eng,
		Catalog: cat,
		Metrics: rec,
		Logger:  log.Named("http"),
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen(*addr) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var result *multierror.Error
	select {
	case err := <-errc:
		result = multierror.Append(result, err)
	case s := <-sig:
		log.Info("shutting down", zap.Stringer("signal", s))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		result = multierror.Append(result, srv.Close(ctx))
		select {
		case err := <-errc:
			result = multierror.Append(result, err)
		case <-ctx.Done():
			result = multierror.Append(result, errors.Wrap(ctx.Err(), "listener did not stop"))
		}
		cancel()
	}
	if err := result.ErrorOrNil(); err != nil {
		log.Error("server stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenb(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func fatalIf(log *zap.Logger, err error, label string) {
	if err != nil {
		log.Fatal(label, zap.Error(err))
	}
}
