package main

import (
	"fmt"

	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/stat"

	"github.com/sarchlab/dmcache/mem/agent"
	"github.com/sarchlab/dmcache/mem/blockmem"
	"github.com/sarchlab/dmcache/mem/bus"
	"github.com/sarchlab/dmcache/mem/cache/directmapped"
	"github.com/sarchlab/dmcache/sim/clocking"
	"github.com/sarchlab/dmcache/sim/timing"
	"github.com/sarchlab/dmcache/tracing"
)

// simConfig describes one simulation.
type simConfig struct {
	FrontEndWidth int
	BackEndWidth  int
	CapacityWords uint64
	AddressWidth  int

	ReadLatency  int
	WriteLatency int
	AckDelay     int
	ReqAckDelay  int

	Seed         int64
	Accesses     int
	AddressRange uint64
	WriteRatio   float64

	MaxCycles uint64
}

func defaultSimConfig() simConfig {
	return simConfig{
		FrontEndWidth: 32,
		BackEndWidth:  128,
		CapacityWords: 1024,
		AddressWidth:  24,
		ReadLatency:   4,
		WriteLatency:  2,
		AckDelay:      2,
		ReqAckDelay:   0,
		Seed:          1,
		Accesses:      10000,
		AddressRange:  8192,
		WriteRatio:    0.5,
		MaxCycles:     10000000,
	}
}

func (c *simConfig) addGeometryFlags(flags *pflag.FlagSet) {
	flags.IntVar(&c.FrontEndWidth, "front-width", c.FrontEndWidth,
		"Width of a front-end word in bits.")
	flags.IntVar(&c.BackEndWidth, "back-width", c.BackEndWidth,
		"Width of a cache line in bits.")
	flags.Uint64Var(&c.CapacityWords, "capacity", c.CapacityWords,
		"Cache capacity in front-end words.")
	flags.IntVar(&c.AddressWidth, "address-width", c.AddressWidth,
		"Number of back-end line address bits.")
}

func (c *simConfig) addFlags(flags *pflag.FlagSet) {
	c.addGeometryFlags(flags)

	flags.IntVar(&c.ReadLatency, "read-latency", c.ReadLatency,
		"Back-end read latency in cycles after the data ack.")
	flags.IntVar(&c.WriteLatency, "write-latency", c.WriteLatency,
		"Back-end write latency in cycles after the data ack.")
	flags.IntVar(&c.AckDelay, "ack-delay", c.AckDelay,
		"Cycles from request acceptance to the data ack.")
	flags.IntVar(&c.ReqAckDelay, "req-ack-delay", c.ReqAckDelay,
		"Cycles a strobe is held before the request is acknowledged.")
	flags.Int64Var(&c.Seed, "seed", c.Seed,
		"Seed of the random agent.")
	flags.IntVar(&c.Accesses, "accesses", c.Accesses,
		"Number of accesses the agent issues.")
	flags.Uint64Var(&c.AddressRange, "address-range", c.AddressRange,
		"Number of word addresses the agent touches.")
	flags.Float64Var(&c.WriteRatio, "write-ratio", c.WriteRatio,
		"Probability that an access is a write.")
	flags.Uint64Var(&c.MaxCycles, "max-cycles", c.MaxCycles,
		"Stop after this many cycles. 0 means no limit.")
}

func (c simConfig) backEnd() bus.BackEndConfig {
	return bus.BackEndConfig{
		DataWidth:    c.BackEndWidth,
		AddressWidth: c.AddressWidth,
		ReadLatency:  c.ReadLatency,
		WriteLatency: c.WriteLatency,
	}
}

func (c simConfig) geometry() directmapped.Geometry {
	return directmapped.Geometry{
		FrontEndWidth:       c.FrontEndWidth,
		BackEndWidth:        c.BackEndWidth,
		CapacityWords:       c.CapacityWords,
		BackEndAddressWidth: c.AddressWidth,
	}
}

// simulation is an agent, a cache and a memory in one clock domain.
type simulation struct {
	config simConfig
	engine *timing.SerialEngine
	domain *clocking.Domain
	memory *blockmem.Comp
	agent  *agent.RandomAgent
	cache  *directmapped.Comp

	readTime  *tracing.AverageTimeTracer
	writeTime *tracing.AverageTimeTracer
	busyTime  *tracing.BusyTimeTracer
	steps     *tracing.StepCountTracer
}

func requestsOf(what string) tracing.TaskFilter {
	return func(t tracing.Task) bool {
		return t.Kind == "req_in" && (what == "" || t.What == what)
	}
}

func buildSimulation(c simConfig) (*simulation, error) {
	s := &simulation{
		config: c,
		engine: timing.NewSerialEngine(),
	}

	var err error

	s.memory, err = blockmem.MakeBuilder().
		WithConfig(c.backEnd()).
		WithAckDelay(c.AckDelay).
		WithReqAckDelay(c.ReqAckDelay).
		Build("Memory")
	if err != nil {
		return nil, err
	}

	s.cache, err = directmapped.MakeBuilder().
		WithFrontEndWidth(c.FrontEndWidth).
		WithCapacityWords(c.CapacityWords).
		WithBackEndConfig(c.backEnd()).
		WithBackEnd(s.memory.Signals()).
		Build("Cache")
	if err != nil {
		return nil, err
	}

	s.agent, err = agent.MakeRandomAgentBuilder().
		WithSeed(c.Seed).
		WithFrontEndWidth(c.FrontEndWidth).
		WithAddressRange(c.AddressRange).
		WithWriteRatio(c.WriteRatio).
		WithNumAccesses(c.Accesses).
		Build("Agent", s.cache.FrontEnd())
	if err != nil {
		return nil, err
	}

	bits := s.cache.Layout().AddressBits()
	if bits < 64 && c.AddressRange > uint64(1)<<bits {
		return nil, fmt.Errorf(
			"address range %d exceeds the %d-bit front-end address space",
			c.AddressRange, bits)
	}

	s.domain = clocking.MakeBuilder().
		WithEngine(s.engine).
		WithMaxCycles(c.MaxCycles).
		Build("Domain")
	s.domain.Register(s.memory, s.agent, s.cache)

	s.readTime = tracing.NewAverageTimeTracer(s.engine, requestsOf("read"))
	s.writeTime = tracing.NewAverageTimeTracer(s.engine, requestsOf("write"))
	s.busyTime = tracing.NewBusyTimeTracer(s.engine, requestsOf(""))
	s.steps = tracing.NewStepCountTracer(requestsOf(""))
	tracing.CollectTrace(s.cache, s.readTime, s.writeTime, s.busyTime, s.steps)

	return s, nil
}

// runResult summarizes a finished simulation.
type runResult struct {
	Seed         int64
	Cycles       uint64
	LimitReached bool

	Cache  directmapped.Stats
	Memory blockmem.Stats
	Agent  agent.AgentStats

	LatencyMean   float64
	LatencyStdDev float64

	// ReadCycles and WriteCycles are the mean cycles from the tag test to the
	// acknowledgment of a request. BusyCycles counts the cycles in which the
	// cache worked on a request.
	ReadCycles  float64
	WriteCycles float64
	BusyCycles  uint64

	// Steps counts the requests that went through each step.
	Steps map[string]uint64

	Events uint64

	Mismatches []agent.Mismatch
}

func (s *simulation) run() (runResult, error) {
	s.domain.Start()

	err := s.engine.Run()
	if err != nil {
		return runResult{}, err
	}

	return s.result(), nil
}

func (s *simulation) result() runResult {
	r := runResult{
		Seed:         s.config.Seed,
		Cycles:       s.domain.Cycle(),
		LimitReached: s.domain.LimitReached(),
		Cache:        s.cache.Stats(),
		Memory:       s.memory.Stats(),
		Agent:        s.agent.Stats(),
		Mismatches:   s.agent.Mismatches(),
		Events:       s.engine.EventsHandled(),
		Steps:        make(map[string]uint64),
	}

	freq := float64(s.domain.Freq)
	r.ReadCycles = float64(s.readTime.AverageTime()) * freq
	r.WriteCycles = float64(s.writeTime.AverageTime()) * freq

	s.busyTime.TerminateAllTasks(s.engine.CurrentTime())
	r.BusyCycles = s.domain.Freq.Cycle(s.busyTime.BusyTime())

	for _, step := range s.steps.GetStepNames() {
		r.Steps[step] = s.steps.GetTaskCount(step)
	}

	latencies := s.agent.Latencies()
	switch {
	case len(latencies) > 1:
		r.LatencyMean, r.LatencyStdDev = stat.MeanStdDev(latencies, nil)
	case len(latencies) == 1:
		r.LatencyMean = latencies[0]
	}

	return r
}

// check returns an error if the run did not complete or read wrong data.
func (r runResult) check() error {
	if r.Agent.Mismatches > 0 {
		return fmt.Errorf("seed %d: %d reads returned wrong data, first: %s",
			r.Seed, r.Agent.Mismatches, r.Mismatches[0])
	}

	if r.LimitReached {
		return fmt.Errorf("seed %d: cycle limit reached after %d cycles",
			r.Seed, r.Cycles)
	}

	return nil
}
