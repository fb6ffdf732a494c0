package stats

import (
	"expvar"
	"net/http"
	"time"
)

// StatsProvider is the counter surface the signaling core records
// against. Updates are asynchronous; Run must be called before deltas
// are expected to land.
type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

type delta struct {
	name string
	n    int64
}

// StatsUpdater applies counter deltas from a single goroutine so the
// hot paths never touch expvar internals directly.
type StatsUpdater struct {
	metrics *expvar.Map
	deltas  chan delta
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		metrics: expvar.NewMap("chatrelay-stats"),
		deltas:  make(chan delta, 512),
	}

	started := time.Now()
	su.metrics.Set("Uptime", expvar.Func(func() any {
		return time.Since(started).Milliseconds()
	}))

	mux.HandleFunc("GET /debug/vars", su.serveVars)

	return su
}

func (su *StatsUpdater) serveVars(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write([]byte(su.metrics.String()))
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.metrics.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Incr(name string) {
	su.deltas <- delta{name: name, n: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.deltas <- delta{name: name, n: -1}
}

func (su *StatsUpdater) Run() {
	go su.apply()
}

func (su *StatsUpdater) apply() {
	for d := range su.deltas {
		counter, ok := su.metrics.Get(d.name).(*expvar.Int)
		if !ok {
			continue
		}
		counter.Add(d.n)
	}
}

func (su *StatsUpdater) Stop() {
	close(su.deltas)
}
