package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipelined/srcsync"
	"github.com/pipelined/srcsync/cbuffer"
	"github.com/pipelined/srcsync/metric"
	"github.com/pipelined/srcsync/mock"
	"github.com/pipelined/srcsync/signal"
	"github.com/pipelined/srcsync/wav"
)

type simulateCommand struct {
	scenario string
	out      string
	verbose  bool
}

func (cmd *simulateCommand) Name() string {
	return "simulate"
}

func (cmd *simulateCommand) Help() string {
	return "Run a scenario on a manual clock and capture outputs to wav files"
}

func (cmd *simulateCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.scenario, "scenario", "", "scenario file (required)")
	fs.StringVar(&cmd.out, "out", ".", "directory for captured wav files")
	fs.BoolVar(&cmd.verbose, "v", false, "log state transitions")
}

func (cmd *simulateCommand) Run(w io.Writer) error {
	if cmd.scenario == "" {
		return errors.New("missing -scenario required flag")
	}
	s, err := loadScenario(cmd.scenario)
	if err != nil {
		return err
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.WarnLevel)
	if cmd.verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	sim := simulation{
		scenario: s,
		dir:      filepath.Dir(cmd.scenario),
		out:      cmd.out,
		log:      l,
		w:        w,
	}
	return sim.run()
}

// simulation owns the operator and its mock neighbours for one run.
type simulation struct {
	*scenario
	// dir resolves relative input paths.
	dir string
	out string
	log *logrus.Logger
	w   io.Writer

	clock     mock.Clock
	timer     mock.Timer
	op        *srcsync.Operator
	producers []*stallingProducer
	consumers []*mock.Consumer
}

// stallingProducer replays scenario events on top of a mock producer.
type stallingProducer struct {
	mock.Producer
	events []event
	resume int
	skip   int
}

// at applies events of cycle c.
func (p *stallingProducer) at(c int) {
	for _, e := range p.events {
		if e.Cycle == c {
			p.Stalled, p.resume, p.skip = true, c+e.Stall, e.Skip
		}
	}
	if p.Stalled && c >= p.resume {
		p.Stalled = false
		p.Skip(p.skip)
	}
}

func (sim *simulation) run() error {
	options := append(sim.options(),
		srcsync.WithClock(&sim.clock),
		srcsync.WithTimer(&sim.timer),
		srcsync.WithLogger(sim.log),
	)
	op, err := srcsync.New(options...)
	if err != nil {
		return err
	}
	sim.op = op
	if err := sim.setup(); err != nil {
		return err
	}
	op.Subscribe(func(n srcsync.Notification) {
		fmt.Fprintf(sim.w, "%10v sink group %d stalled=%v %s\n", n.Time, n.Group, n.Stalled, n.State)
	})
	if err := op.SetStallNotificationEnable(true); err != nil {
		return err
	}
	if err := op.Start(); err != nil {
		return err
	}

	config := op.GetStatus().Config
	n := signal.SamplesOf(config.SampleRate, config.Period)
	for c := 0; c < sim.Cycles; c++ {
		for _, p := range sim.producers {
			p.at(c)
			p.Produce(n)
		}
		op.Process()
		for _, consumer := range sim.consumers {
			consumer.Consume(n)
		}
		sim.clock.Advance(config.Period)
	}
	status := op.GetStatus()
	if err := op.Stop(); err != nil {
		return err
	}
	if err := sim.capture(config.SampleRate); err != nil {
		return err
	}
	sim.report(status)
	return op.Destroy()
}

// setup configures groups, connects buffers of producers and consumers
// and applies routes.
func (sim *simulation) setup() error {
	if err := sim.op.SetSinkGroups(groupSpecs(sim.SinkGroups)); err != nil {
		return err
	}
	if err := sim.op.SetSourceGroups(groupSpecs(sim.SourceGroups)); err != nil {
		return err
	}
	for _, spec := range sim.Producers {
		p := stallingProducer{
			Producer: mock.Producer{
				Value:      spec.Value,
				Ramp:       spec.Ramp,
				TagType:    tagType(spec.TagType),
				SampleRate: sim.op.GetStatus().Config.SampleRate,
			},
			events: spec.Events,
		}
		if spec.Input != "" {
			words, _, err := wav.Load(filepath.Join(sim.dir, spec.Input))
			if err != nil {
				return err
			}
			p.Source = words
		}
		buffers, err := sim.connect(srcsync.SinkTerminal, sim.SinkGroups[spec.Group].Channels)
		if err != nil {
			return err
		}
		p.Buffers = buffers
		sim.producers = append(sim.producers, &p)
	}
	for _, spec := range sim.Consumers {
		buffers, err := sim.connect(srcsync.SourceTerminal, sim.SourceGroups[spec.Group].Channels)
		if err != nil {
			return err
		}
		sim.consumers = append(sim.consumers, &mock.Consumer{Buffers: buffers})
	}
	return sim.op.SetRoute(routeSpecs(sim.Routes))
}

func (sim *simulation) connect(terminal func(int) srcsync.TerminalID, channels []int) ([]*cbuffer.Buffer, error) {
	buffers := make([]*cbuffer.Buffer, 0, len(channels))
	for _, c := range channels {
		id := terminal(c)
		req, err := sim.op.QueryBufferRequirements(id)
		if err != nil {
			return nil, err
		}
		b := req.NewBuffer()
		if err := sim.op.Connect(id, b); err != nil {
			return nil, err
		}
		buffers = append(buffers, b)
	}
	return buffers, nil
}

// capture writes signals of consumers with output files.
func (sim *simulation) capture(sampleRate int) error {
	for i, spec := range sim.Consumers {
		if spec.Output == "" {
			continue
		}
		bitDepth := signal.BitDepth32
		if spec.BitDepth != 0 {
			bitDepth = signal.BitDepth(spec.BitDepth)
		}
		path := filepath.Join(sim.out, spec.Output)
		sink, err := wav.NewSink(path, sampleRate, len(sim.consumers[i].Buffers), bitDepth)
		if err != nil {
			return err
		}
		if words := sim.consumers[i].Signal(); words.Size() > 0 {
			if err := sink.Write(words); err != nil {
				sink.Close()
				return err
			}
		}
		if err := sink.Close(); err != nil {
			return err
		}
		_, samples := sim.consumers[i].Count()
		fmt.Fprintf(sim.w, "captured %d samples to %s\n", samples, path)
	}
	return nil
}

func (sim *simulation) report(status srcsync.Status) {
	fmt.Fprintf(sim.w, "latency %v after %d cycles\n", status.Latency.Round(time.Microsecond), sim.Cycles)
	for i, g := range status.Groups[:len(sim.SinkGroups)] {
		fmt.Fprintf(sim.w, "sink group %d: %s rate adjust %+.5f\n", i, g.State, g.RateAdjust)
	}
	values := metric.Get(sim.op.ID())
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sim.w, "%s=%s\n", k, values[k])
	}
}
