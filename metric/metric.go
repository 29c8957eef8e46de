// Package metric publishes operator counters with expvar.
package metric

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const operatorsLabel = "srcsync.operators"

const (
	// CycleCounter measures number of completed process cycles.
	CycleCounter = "Cycles"
	// CopiedCounter measures samples copied from inputs to outputs.
	CopiedCounter = "Copied"
	// SilenceCounter measures samples of inserted silence.
	SilenceCounter = "Silence"
	// DiscardedCounter measures input samples dropped.
	DiscardedCounter = "Discarded"
	// StallCounter counts transitions into a silencing state.
	StallCounter = "Stalls"
	// LatencyCounter shows the latest output latency estimate.
	LatencyCounter = "Latency"
)

var (
	// operators is the only published variable. Destroyed operators are
	// removed from it, expvar itself can not unpublish.
	operators = metrics{
		vars: expvar.NewMap(operatorsLabel),
		m:    make(map[string]*Metric),
	}

	counters = []string{
		CycleCounter,
		CopiedCounter,
		SilenceCounter,
		DiscardedCounter,
		StallCounter,
		LatencyCounter,
	}
)

// Metric holds counters of one operator.
type Metric struct {
	Cycles    *expvar.Int
	Copied    *expvar.Int
	Silence   *expvar.Int
	Discarded *expvar.Int
	Stalls    *expvar.Int
	Latency   *Duration
}

// New returns counters for operator id. Counters are created once per id
// and shared until Delete.
func New(id string) *Metric {
	return operators.get(id)
}

// Delete removes counters of operator id.
func Delete(id string) {
	operators.Lock()
	defer operators.Unlock()
	delete(operators.m, id)
	operators.vars.Delete(id)
}

// Get metrics values for provided operator id.
func Get(id string) map[string]string {
	m := make(map[string]string)
	vars, ok := operators.vars.Get(id).(*expvar.Map)
	if !ok {
		return m
	}
	for _, counter := range counters {
		if v := vars.Get(counter); v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// GetAll returns counters for all measured operators.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	operators.Lock()
	defer operators.Unlock()
	for id := range operators.m {
		m[id] = Get(id)
	}
	return m
}

type metrics struct {
	sync.Mutex
	vars *expvar.Map
	m    map[string]*Metric
}

func (m *metrics) get(id string) *Metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[id]; ok {
		return metric
	}
	metric := &Metric{
		Cycles:    new(expvar.Int),
		Copied:    new(expvar.Int),
		Silence:   new(expvar.Int),
		Discarded: new(expvar.Int),
		Stalls:    new(expvar.Int),
		Latency:   &Duration{},
	}
	vars := new(expvar.Map)
	vars.Set(CycleCounter, metric.Cycles)
	vars.Set(CopiedCounter, metric.Copied)
	vars.Set(SilenceCounter, metric.Silence)
	vars.Set(DiscardedCounter, metric.Discarded)
	vars.Set(StallCounter, metric.Stalls)
	vars.Set(LatencyCounter, metric.Latency)
	m.vars.Set(id, vars)
	m.m[id] = metric
	return metric
}

// Duration allows to format time.Duration metric values.
type Duration struct {
	d int64
}

func (v *Duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)).String())
}

// Set stores the value.
func (v *Duration) Set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
