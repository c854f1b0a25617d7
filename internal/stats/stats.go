package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

// StatsProvider is the counter surface the relay records into.
type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater exposes relay counters over expvar. Counter updates are
// serialized through a channel so callers never contend on the vars map.
type StatsUpdater struct {
	vars   *expvar.Map
	deltas chan counterDelta
}

type counterDelta struct {
	name  string
	delta int64
}

// NewStatsUpdater publishes the relay's expvar map and mounts a JSON view
// of it on the given mux.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		vars:   expvar.NewMap("chat-relay-stats"),
		deltas: make(chan counterDelta, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	return su
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	snapshot := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		snapshot[kv.Key] = value
	})

	json.NewEncoder(w).Encode(snapshot)
}

// RegisterMetric declares a counter. Counters must be registered before
// the first Incr/Decr for their name.
func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Incr(name string) {
	su.deltas <- counterDelta{name: name, delta: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.deltas <- counterDelta{name: name, delta: -1}
}

func (su *StatsUpdater) apply() {
	for d := range su.deltas {
		metric := su.vars.Get(d.name)
		if metric == nil {
			panic("metric not registered: " + d.name)
		}

		metric.(*expvar.Int).Add(d.delta)
	}
}

func (su *StatsUpdater) Run() {
	go su.apply()
}

func (su *StatsUpdater) Stop() {
	close(su.deltas)
}
