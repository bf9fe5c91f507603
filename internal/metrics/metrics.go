// path: fairy_chess/internal/metrics/metrics.go
// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements game.MoveObserver and tracks live games and sockets.
type Recorder struct {
	registry *prometheus.Registry
	moves    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	games    prometheus.Gauge
	sockets  prometheus.Gauge
}

// New registers the collectors on a private registry so tests and multiple
// servers in one process do not collide.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fairy_chess",
			Name:      "moves_total",
			Help:      "Move attempts by outcome class.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fairy_chess",
			Name:      "move_duration_seconds",
			Help:      "Time from move request to commit or rejection.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2},
		}, []string{"outcome"}),
		games: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fairy_chess",
			Name:      "games_live",
			Help:      "Games currently held by the engine.",
		}),
		sockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fairy_chess",
			Name:      "sockets_open",
			Help:      "Open game websocket connections.",
		}),
	}
	r.registry.MustRegister(r.moves, r.latency, r.games, r.sockets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

// ObserveMove counts a move attempt under its error class and records how
// long it took.
func (r *Recorder) ObserveMove(outcome string, elapsed time.Duration) {
	r.moves.WithLabelValues(outcome).Inc()
	r.latency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (r *Recorder) SetGames(n int) { r.games.Set(float64(n)) }

func (r *Recorder) SocketOpened() { r.sockets.Inc() }
func (r *Recorder) SocketClosed() { r.sockets.Dec() }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
