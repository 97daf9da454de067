// Package monitor exports room lifecycle metrics to Prometheus.
package monitor

import (
	"sync"

	"balloon-duel/internal/game"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	OpenRooms          *prometheus.GaugeVec
	Transitions        *prometheus.CounterVec
	ClosedRooms        *prometheus.CounterVec
	Settlements        *prometheus.CounterVec
	SettlementFailures prometheus.Counter
	RoundDuration      prometheus.Histogram
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OpenRooms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_rooms",
			Help:      "Rooms not yet finished or cancelled, by status",
		}, []string{"status"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_transitions_total",
			Help:      "Committed room status changes",
		}, []string{"from", "to"}),
		ClosedRooms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_closed_total",
			Help:      "Rooms that reached a terminal status",
		}, []string{"status"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_confirmed_total",
			Help:      "Escrow calls confirmed, by kind",
		}, []string{"kind"}),
		SettlementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_failures_total",
			Help:      "Settlement drives that exhausted their retries",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Time from round start to resolution",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}

	reg.MustRegister(
		m.OpenRooms,
		m.Transitions,
		m.ClosedRooms,
		m.Settlements,
		m.SettlementFailures,
		m.RoundDuration,
	)
	return m
}

// Monitor turns coordinator change notifications into metrics.
type Monitor struct {
	metrics *Metrics

	mu       sync.Mutex
	failures map[string]int
}

func NewMonitor(namespace string, reg prometheus.Registerer) *Monitor {
	return &Monitor{
		metrics:  NewMetrics(namespace, reg),
		failures: map[string]int{},
	}
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// Seed sets the open room gauges, used after recovery so that restarts do
// not start from zero.
func (m *Monitor) Seed(counts map[game.Status]int) {
	for status, n := range counts {
		if status.Terminal() {
			continue
		}
		m.metrics.OpenRooms.WithLabelValues(string(status)).Set(float64(n))
	}
}

func (m *Monitor) OnRoomChanged(prev game.Status, room *game.Room) {
	if prev != room.Status {
		m.metrics.Transitions.WithLabelValues(statusLabel(prev), string(room.Status)).Inc()
		if prev != "" && !prev.Terminal() {
			m.metrics.OpenRooms.WithLabelValues(string(prev)).Dec()
		}
		if room.Status.Terminal() {
			m.metrics.ClosedRooms.WithLabelValues(string(room.Status)).Inc()
			if room.Settlement != nil {
				m.metrics.Settlements.WithLabelValues(string(room.Settlement.Kind)).Inc()
			}
			if room.RoundStartedAt != nil && room.ResolvedAt != nil {
				m.metrics.RoundDuration.Observe(room.ResolvedAt.Sub(*room.RoundStartedAt).Seconds())
			}
			m.forget(room.RoomID)
		} else {
			m.metrics.OpenRooms.WithLabelValues(string(room.Status)).Inc()
		}
		return
	}
	if s := room.Settlement; s.Pending() && s.LastError != "" {
		m.noteFailure(room.RoomID, s.Attempts)
	}
}

// noteFailure counts each failed drive once; attempts only grow between
// drives of the same settlement.
func (m *Monitor) noteFailure(roomID string, attempts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attempts <= m.failures[roomID] {
		return
	}
	m.failures[roomID] = attempts
	m.metrics.SettlementFailures.Inc()
}

func (m *Monitor) forget(roomID string) {
	m.mu.Lock()
	delete(m.failures, roomID)
	m.mu.Unlock()
}

func statusLabel(s game.Status) string {
	if s == "" {
		return "new"
	}
	return string(s)
}
