package main

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pipelined/srcsync"
	"github.com/pipelined/srcsync/cbuffer"
)

//go:embed scenario.schema.json
var schemaSource []byte

const schemaURL = "https://github.com/pipelined/srcsync/scenario.schema.json"

// scenario describes one simulation run.
type scenario struct {
	SampleRate   int        `json:"sampleRate"`
	Period       duration   `json:"period"`
	MaxLatency   duration   `json:"maxLatency"`
	Cycles       int        `json:"cycles"`
	SinkGroups   []group    `json:"sinkGroups"`
	SourceGroups []group    `json:"sourceGroups"`
	Routes       []route    `json:"routes"`
	Producers    []producer `json:"producers"`
	Consumers    []consumer `json:"consumers"`
}

type group struct {
	Channels         []int `json:"channels"`
	Metadata         bool  `json:"metadata"`
	BufferSize       int   `json:"bufferSize"`
	Synchronous      bool  `json:"synchronous"`
	Purge            bool  `json:"purge"`
	RateMatch        bool  `json:"rateMatch"`
	ProvideTimestamp bool  `json:"provideTimestamp"`
}

type route struct {
	Source int     `json:"source"`
	Sink   int     `json:"sink"`
	Gain   float64 `json:"gain"`
}

type producer struct {
	Group   int     `json:"group"`
	Value   int32   `json:"value"`
	Ramp    bool    `json:"ramp"`
	Input   string  `json:"input"`
	TagType string  `json:"tagType"`
	Events  []event `json:"events"`
}

// event stalls a producer at cycle for a number of cycles. Skip samples
// are lost when the producer resumes.
type event struct {
	Cycle int `json:"cycle"`
	Stall int `json:"stall"`
	Skip  int `json:"skip"`
}

type consumer struct {
	Group    int    `json:"group"`
	Output   string `json:"output"`
	BitDepth int    `json:"bitDepth"`
}

type duration time.Duration

func (d *duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaSource)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// parseScenario validates raw against the scenario schema and decodes it.
func parseScenario(raw []byte) (*scenario, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if err := schema.Validate(payload); err != nil {
		return nil, err
	}
	var s scenario
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return &s, nil
}

func loadScenario(path string) (*scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := parseScenario(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// check verifies references the schema can not express.
func (s *scenario) check() error {
	for i, p := range s.Producers {
		if p.Group >= len(s.SinkGroups) {
			return fmt.Errorf("producer %d: sink group %d is not defined", i, p.Group)
		}
	}
	for i, c := range s.Consumers {
		if c.Group >= len(s.SourceGroups) {
			return fmt.Errorf("consumer %d: source group %d is not defined", i, c.Group)
		}
	}
	return nil
}

// options returns operator options of the scenario.
func (s *scenario) options() []srcsync.Option {
	var options []srcsync.Option
	if s.SampleRate > 0 {
		options = append(options, srcsync.WithSampleRate(s.SampleRate))
	}
	if s.Period > 0 {
		options = append(options, srcsync.WithPeriod(time.Duration(s.Period)))
	}
	if s.MaxLatency > 0 {
		options = append(options, srcsync.WithMaxLatency(time.Duration(s.MaxLatency)))
	}
	return options
}

func groupSpecs(groups []group) []srcsync.GroupSpec {
	specs := make([]srcsync.GroupSpec, len(groups))
	for i, g := range groups {
		var channels uint32
		for _, c := range g.Channels {
			channels |= 1 << uint(c)
		}
		specs[i] = srcsync.GroupSpec{
			Channels:         channels,
			Metadata:         g.Metadata,
			BufferSize:       g.BufferSize,
			Synchronous:      g.Synchronous,
			Purge:            g.Purge,
			RateMatch:        g.RateMatch,
			ProvideTimestamp: g.ProvideTimestamp,
		}
	}
	return specs
}

func routeSpecs(routes []route) []srcsync.RouteSpec {
	specs := make([]srcsync.RouteSpec, len(routes))
	for i, r := range routes {
		specs[i] = srcsync.RouteSpec{Source: r.Source, Sink: r.Sink, Gain: r.Gain}
	}
	return specs
}

func tagType(s string) cbuffer.TagType {
	switch s {
	case "arrival":
		return cbuffer.TagArrival
	case "play-time":
		return cbuffer.TagPlayTime
	}
	return cbuffer.TagNone
}
