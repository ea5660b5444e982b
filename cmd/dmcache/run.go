package main

import (
	"errors"
	stdlog "log"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/dmcache/mem/cache/directmapped"
	"github.com/sarchlab/dmcache/mem/trace"
	"github.com/sarchlab/dmcache/monitoring"
	"github.com/sarchlab/dmcache/sim/id"
	"github.com/sarchlab/dmcache/sim/timing"
)

type runOptions struct {
	traceDB     string
	dumpMemory  string
	monitor     bool
	monitorPort int
	openBrowser bool
}

func newRunCmd() *cobra.Command {
	config := defaultSimConfig()
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation with a random self-checking agent.",
		Long: `run drives the cache with a seeded random mix of reads and writes ` +
			`and checks every read against the data written before. It fails ` +
			`if a read returns wrong data or the cycle limit is reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(cmd, config, opts)
		},
	}

	config.addFlags(cmd.Flags())

	cmd.Flags().StringVar(&opts.traceDB, "trace-db", "",
		"Record requests, state changes and transfers into this SQLite "+
			"database (without suffix) and print a summary of it.")
	cmd.Flags().StringVar(&opts.dumpMemory, "dump-memory", "",
		"Write a zstd image of the back-end memory to this file.")
	cmd.Flags().BoolVar(&opts.monitor, "monitor", false,
		"Serve the monitoring page while running.")
	cmd.Flags().IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server. 0 picks a free port.")
	cmd.Flags().BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring page in a browser.")

	return cmd
}

func runSimulation(cmd *cobra.Command, config simConfig, opts runOptions) error {
	id.UseSequentialIDGenerator()

	s, err := buildSimulation(config)
	if err != nil {
		return err
	}

	log := logrus.WithField("seed", config.Seed)

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		s.cache.AcceptHook(directmapped.NewLogHook(log))

		w := logrus.StandardLogger().WriterLevel(logrus.DebugLevel)
		defer w.Close()

		s.memory.AcceptHook(trace.NewTracer(stdlog.New(w, "transfer: ", 0)))
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		s.engine.AcceptHook(timing.NewEventLogger(log, s.domain.Freq))
	}

	var rec *traceRecording
	if opts.traceDB != "" {
		rec, err = startTraceRecording(s, opts.traceDB)
		if err != nil {
			return err
		}
	}

	if opts.monitor {
		startMonitor(s, opts, log)
	}

	log.WithFields(logrus.Fields{
		"accesses": config.Accesses,
		"capacity": config.CapacityWords,
	}).Info("simulation started")

	r, err := s.run()
	if rec != nil {
		err = errors.Join(err, rec.finish())
	}

	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"cycles": r.Cycles,
		"events": r.Events,
	}).Info("simulation finished")
	printReport(cmd.OutOrStdout(), r)

	if rec != nil {
		err = printTraceSummary(cmd.Context(), cmd.OutOrStdout(), opts.traceDB)
		if err != nil {
			return err
		}
	}

	if opts.dumpMemory != "" {
		err = dumpMemoryFile(opts.dumpMemory, s.memory.Storage)
		if err != nil {
			return err
		}

		log.WithField("file", opts.dumpMemory).Info("memory image written")
	}

	return r.check()
}

func startMonitor(s *simulation, opts runOptions, log logrus.FieldLogger) {
	m := monitoring.NewMonitor().WithPortNumber(opts.monitorPort)
	m.RegisterEngine(s.engine)
	m.RegisterDomain(s.domain)
	m.RegisterComponent(s.cache)
	m.RegisterComponent(s.memory)
	m.RegisterComponent(s.agent)

	err := m.RegisterCollector(collectors.NewGoCollector())
	if err != nil {
		log.WithError(err).Warn("runtime metrics are not exported")
	}

	bar := m.CreateProgressBar("Accesses", uint64(s.config.Accesses))
	s.domain.AcceptHook(&monitoring.ProgressHook{
		Bar: bar,
		Finished: func() uint64 {
			st := s.agent.Stats()
			return st.Reads + st.Writes
		},
	})

	m.StartServer()

	if opts.openBrowser {
		if err := m.OpenBrowser(); err != nil {
			log.WithError(err).Warn("cannot open browser")
		}
	}
}
