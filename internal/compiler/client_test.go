// path: fairy_chess/internal/compiler/client_test.go
package compiler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairy_chess/internal/shared"
)

const blocks = `{"blocks":{"blocks":[{"type":"teleport"}]}}`

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{URL: url, Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func TestInlineProgramIsCompiledAndCached(t *testing.T) {
	c := newClient(t, "")
	impl, _ := json.Marshal("(teleport me target)")

	first, err := c.Program(context.Background(), impl)
	require.NoError(t, err)
	assert.Equal(t, "(teleport me target)", first.Source())

	second, err := c.Program(context.Background(), impl)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestInlineCompileErrorIsNotCached(t *testing.T) {
	c := newClient(t, "")
	impl, _ := json.Marshal("(teleport me")

	_, err := c.Program(context.Background(), impl)
	require.Error(t, err)
	assert.Equal(t, shared.ClassCompile, shared.Classify(err))
	assert.Zero(t, c.Len())
}

func TestMissingImplementation(t *testing.T) {
	c := newClient(t, "")
	for _, impl := range []string{"", "null", "  "} {
		_, err := c.Program(context.Background(), json.RawMessage(impl))
		assert.ErrorIs(t, err, ErrNoImplementation)
	}
}

func TestBlocksAreCompiledRemotely(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, blocks, string(body))
		_, _ = io.WriteString(w, "(if (occupied? target) (take (unit-on target)))\n(teleport me target)")
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	prog, err := c.Program(context.Background(), json.RawMessage(blocks))
	require.NoError(t, err)
	assert.Contains(t, prog.Source(), "teleport me target")

	_, err = c.Program(context.Background(), json.RawMessage(blocks))
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRemoteReplyMayBeJSONString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode("(teleport me target)")
	}))
	defer srv.Close()

	prog, err := newClient(t, srv.URL).Program(context.Background(), json.RawMessage(blocks))
	require.NoError(t, err)
	assert.Equal(t, "(teleport me target)", prog.Source())
}

func TestCompilerFailuresAreDependencyErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	for i := 0; i < 2; i++ {
		_, err := c.Program(context.Background(), json.RawMessage(blocks))
		require.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, shared.ClassDependency, shared.Classify(err))
		assert.True(t, shared.Retryable(err))
	}
	assert.Equal(t, int32(2), hits.Load(), "failures are not cached")

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, err := newClient(t, closed.URL).Program(context.Background(), json.RawMessage(blocks))
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = newClient(t, "").Program(context.Background(), json.RawMessage(blocks))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRemoteCompileErrorIsNotDependency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "(launch me)")
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Program(context.Background(), json.RawMessage(blocks))
	require.Error(t, err)
	assert.Equal(t, shared.ClassCompile, shared.Classify(err))
	assert.False(t, shared.Retryable(err))
}

func TestConcurrentFetchesAreCoalesced(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		_, _ = io.WriteString(w, "(teleport me target)")
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	const callers = 8
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			_, errs[i] = c.Program(context.Background(), json.RawMessage(blocks))
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestAbandonedCallerLeavesSharedFetchRunning(t *testing.T) {
	var hits atomic.Int32
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		arrived <- struct{}{}
		<-release
		_, _ = io.WriteString(w, "(teleport me target)")
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Program(ctx, json.RawMessage(blocks))
		first <- err
	}()
	<-arrived

	second := make(chan error, 1)
	go func() {
		_, err := c.Program(context.Background(), json.RawMessage(blocks))
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-first
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, shared.ClassAborted, shared.Classify(err))

	close(release)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, c.Len())
}
