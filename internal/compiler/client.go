// path: fairy_chess/internal/compiler/client.go
// Package compiler obtains runnable move programs for stored move
// implementations, either inline program text or block programs compiled by
// the external compiler service.
package compiler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"fairy_chess/internal/script"
	"fairy_chess/internal/shared"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultCacheSize = 512

	maxProgramBytes = 1 << 20
)

var (
	// ErrUnavailable is returned when the compiler service cannot be reached or
	// answers with anything but 200.
	ErrUnavailable = shared.ClassError(shared.ErrDependency, "compiler unavailable")
	// ErrNoImplementation means the move has nothing to compile.
	ErrNoImplementation = shared.ClassError(shared.ErrCompile, "move has no implementation")
)

type Config struct {
	// URL of the compiler service. Empty means only inline program text works.
	URL        string
	Timeout    time.Duration
	CacheSize  int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client compiles implementations and caches the results by content hash.
// Failed fetches and compile errors are not cached.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	cache   *lru.Cache[string, *script.Program]
	group   singleflight.Group
	log     *zap.Logger
}

// New returns a Client. Zero values in cfg take the package defaults.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cache, err := lru.New[string, *script.Program](cfg.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "program cache")
	}
	return &Client{
		url:     strings.TrimRight(cfg.URL, "/"),
		http:    cfg.HTTPClient,
		timeout: cfg.Timeout,
		cache:   cache,
		log:     cfg.Logger,
	}, nil
}

// Program returns the compiled program for implementation. A JSON string is
// program text and is compiled locally; any other JSON value is sent to the
// compiler service, whose reply is program text.
//
// Concurrent callers for the same implementation share one fetch. The fetch
// is bounded by the client timeout, not by any caller's ctx, so a caller that
// gives up leaves it running for the others and gets an aborted error.
func (c *Client) Program(ctx context.Context, implementation json.RawMessage) (*script.Program, error) {
	impl := bytes.TrimSpace(implementation)
	if len(impl) == 0 || bytes.Equal(impl, []byte("null")) {
		return nil, ErrNoImplementation
	}

	key := cacheKey(impl)
	if prog, ok := c.cache.Get(key); ok {
		return prog, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		src, err := c.source(fctx, impl)
		if err != nil {
			return nil, err
		}
		prog, err := script.Compile(src)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, prog)
		return prog, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debug("program fetch coalesced", zap.String("key", key[:12]))
		}
		return res.Val.(*script.Program), nil
	case <-ctx.Done():
		return nil, shared.Abort(ctx.Err(), "program fetch abandoned")
	}
}

// Len reports how many compiled programs are cached.
func (c *Client) Len() int { return c.cache.Len() }

func (c *Client) source(ctx context.Context, impl []byte) (string, error) {
	if impl[0] == '"' {
		var text string
		if err := json.Unmarshal(impl, &text); err != nil {
			return "", shared.ClassError(shared.ErrCompile, "implementation is not valid JSON text")
		}
		return text, nil
	}
	return c.fetch(ctx, impl)
}

func (c *Client) fetch(ctx context.Context, blocks []byte) (string, error) {
	if c.url == "" {
		return "", errors.WithMessage(ErrUnavailable, "no compiler service configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(blocks))
	if err != nil {
		return "", errors.WithMessage(ErrUnavailable, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("compiler request failed", zap.String("url", c.url), zap.Error(err))
		return "", errors.WithMessage(ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProgramBytes))
	if err != nil {
		return "", errors.WithMessage(ErrUnavailable, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error("compiler rejected request",
			zap.String("url", c.url),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(body, 200)))
		return "", errors.WithMessagef(ErrUnavailable, "status %d", resp.StatusCode)
	}
	c.log.Debug("program compiled remotely", zap.Duration("elapsed", time.Since(start)), zap.Int("bytes", len(body)))

	text := bytes.TrimSpace(body)
	if len(text) > 0 && text[0] == '"' {
		var s string
		if err := json.Unmarshal(text, &s); err == nil {
			return s, nil
		}
	}
	return string(text), nil
}

func cacheKey(impl []byte) string {
	sum := sha256.Sum256(impl)
	return hex.EncodeToString(sum[:])
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
