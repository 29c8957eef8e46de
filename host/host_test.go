package host_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pipelined/srcsync"
	"github.com/pipelined/srcsync/cbuffer"
	"github.com/pipelined/srcsync/host"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// clock counts cycles, operator reads it once per cycle.
type clock struct {
	origin time.Time
	reads  atomic.Int32
}

func (c *clock) Now() time.Duration {
	c.reads.Add(1)
	return time.Since(c.origin)
}

func connect(t *testing.T, h *host.Host) (sink, source *cbuffer.Buffer) {
	t.Helper()
	sink, source = cbuffer.New(960), cbuffer.New(960)
	require.NoError(t, h.Do(func(o *srcsync.Operator) error {
		if err := o.Connect(srcsync.SinkTerminal(0), sink); err != nil {
			return err
		}
		if err := o.Connect(srcsync.SourceTerminal(0), source); err != nil {
			return err
		}
		if err := o.SetRoute([]srcsync.RouteSpec{{Source: 0, Sink: 0}}); err != nil {
			return err
		}
		return o.Start()
	}))
	return sink, source
}

func TestDo(t *testing.T) {
	tests := []struct {
		description string
		fn          func(*srcsync.Operator) error
		expected    error
	}{
		{
			description: "start",
			fn:          (*srcsync.Operator).Start,
		},
		{
			description: "stop while stopped",
			fn:          (*srcsync.Operator).Stop,
			expected:    srcsync.ErrInvalidState,
		},
		{
			description: "invalid route",
			fn: func(o *srcsync.Operator) error {
				return o.SetRoute([]srcsync.RouteSpec{{Source: 0, Sink: srcsync.MaxTerminals}})
			},
			expected: srcsync.ErrInvalidRoute,
		},
	}
	for _, test := range tests {
		h, err := host.New()
		require.NoError(t, err, test.description)
		err = h.Do(test.fn)
		if test.expected != nil {
			assert.ErrorIs(t, err, test.expected, test.description)
		} else {
			assert.NoError(t, err, test.description)
		}
		assert.NoError(t, h.Close(), test.description)
	}
}

func TestClose(t *testing.T) {
	h, err := host.New()
	require.NoError(t, err)
	connect(t, h)
	var op *srcsync.Operator
	require.NoError(t, h.Do(func(o *srcsync.Operator) error {
		op = o
		return nil
	}))
	h.Kick()
	require.NoError(t, h.Close())
	// loop is done, operator is stopped and destroyed.
	assert.False(t, op.Running())
	assert.ErrorIs(t, op.Start(), srcsync.ErrInvalidState)
	assert.ErrorIs(t, h.Close(), host.ErrClosed)
	assert.ErrorIs(t, h.Do((*srcsync.Operator).Start), host.ErrClosed)
	// kicks after close are ignored.
	h.Kick()
	h.Kick()
}

func TestNewInvalidConfig(t *testing.T) {
	_, err := host.New(srcsync.WithPeriod(0))
	assert.ErrorIs(t, err, srcsync.ErrInvalidConfig)
}

func TestKick(t *testing.T) {
	h, err := host.New()
	require.NoError(t, err)
	touchedc := make(chan srcsync.Touched, 16)
	require.NoError(t, h.OnTouched(func(touched srcsync.Touched) {
		select {
		case touchedc <- touched:
		default:
		}
	}))
	_, source := connect(t, h)
	h.Kick()
	select {
	case touched := <-touchedc:
		assert.Equal(t, uint32(1), touched.Sources)
	case <-time.After(time.Second):
		t.Fatal("no cycle after kick")
	}
	require.NoError(t, h.Do(func(*srcsync.Operator) error {
		// restarting output is filled up to max latency.
		assert.Equal(t, 480, source.Data())
		return nil
	}))
	require.NoError(t, h.Close())
}

func TestTimerWakes(t *testing.T) {
	c := clock{origin: time.Now()}
	h, err := host.New(srcsync.WithClock(&c))
	require.NoError(t, err)
	connect(t, h)
	h.Kick()
	assert.Eventually(t, func() bool {
		return c.reads.Load() >= 3
	}, time.Second, time.Millisecond)
	require.NoError(t, h.Do((*srcsync.Operator).Stop))
	require.NoError(t, h.Close())
}
