package simulation

import (
	"io"
	"log"
	"os"

	"github.com/rs/xid"
	"github.com/sarchlab/curvesim/analysis"
	"github.com/sarchlab/curvesim/config"
	"github.com/sarchlab/curvesim/datarecording"
	"github.com/sarchlab/curvesim/monitoring"
	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/sim/timing"
	"github.com/sarchlab/curvesim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	state         event.State
	maxIterations int

	monitorOn   bool
	monitorPort int
	openBrowser bool

	recordOn        bool
	outputFileName  string
	skipReschedules bool

	logWriter      io.Writer
	logReschedules bool

	samplePeriod timing.VTimeInSec
	samplePath   string
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		maxIterations: event.DefaultMaxIterations,
	}
}

// WithConfig applies the settings loaded from the environment.
func (b Builder) WithConfig(cfg config.Config) Builder {
	b.maxIterations = cfg.MaxIterations

	if cfg.Monitor {
		b = b.WithMonitor(cfg.MonitorPort, cfg.OpenBrowser)
	}

	if cfg.Record {
		b = b.WithRecording(cfg.RecordPath)
	}

	b.skipReschedules = cfg.SkipReschedules

	if cfg.SamplePeriod > 0 {
		b = b.WithSampling(timing.VTimeInSec(cfg.SamplePeriod), cfg.SamplePath)
	}

	if cfg.LogEvents {
		b = b.WithEventLog(os.Stderr, false)
	}

	return b
}

// WithState sets the state handed to every handler.
func (b Builder) WithState(state event.State) Builder {
	b.state = state
	return b
}

// WithMaxIterations limits the invocations per ReachTime call.
func (b Builder) WithMaxIterations(n int) Builder {
	b.maxIterations = n
	return b
}

// WithMonitor serves the monitoring API on the given port. Port 0 picks a
// free port.
func (b Builder) WithMonitor(port int, openBrowser bool) Builder {
	b.monitorOn = true
	b.monitorPort = port
	b.openBrowser = openBrowser

	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	b.monitorPort = 0
	b.openBrowser = false

	return b
}

// WithRecording stores the event trace into outputFileName.sqlite3. An empty
// name is derived from the simulation ID.
func (b Builder) WithRecording(outputFileName string) Builder {
	b.recordOn = true
	b.outputFileName = outputFileName

	return b
}

// WithoutReschedulesRecorded keeps reschedules out of the recorded trace.
func (b Builder) WithoutReschedulesRecorded() Builder {
	b.skipReschedules = true
	return b
}

// WithEventLog prints every invocation, and optionally every reschedule,
// into w.
func (b Builder) WithEventLog(w io.Writer, reschedules bool) Builder {
	b.logWriter = w
	b.logReschedules = reschedules

	return b
}

// WithSampling samples every continuous entity each period. The samples go
// into the recording if there is one, or into path.csv otherwise. An empty
// path is derived from the simulation ID.
func (b Builder) WithSampling(period timing.VTimeInSec, path string) Builder {
	b.samplePeriod = period
	b.samplePath = path

	return b
}

func (b Builder) parametersMustBeValid() {
	if b.maxIterations <= 0 {
		panic("max iterations must be positive")
	}

	if !b.recordOn && b.outputFileName != "" {
		panic("output file name cannot be set when recording is disabled")
	}

	if b.samplePeriod < 0 {
		panic("sampling period must not be negative")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		entityNameIndex: make(map[string]int),
	}

	s.id = xid.New().String()
	s.loop = event.NewLoop(b.state, event.WithMaxIterations(b.maxIterations))

	s.countTracer = tracing.NewCountTracer()
	tracing.CollectTrace(s.loop, s.countTracer)

	if b.recordOn {
		b.buildRecording(s)
	}

	if b.samplePeriod > 0 {
		b.buildSampling(s)
	}

	if b.logWriter != nil {
		logger := log.New(b.logWriter, "", 0)
		s.loop.AcceptHook(event.NewEventLogger(logger, b.logReschedules))
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().
			WithPortNumber(b.monitorPort).
			WithBrowser(b.openBrowser)
		s.monitor.RegisterLoop(s.loop)
		s.monitor.RegisterCountTracer(s.countTracer)
		s.monitorURL = s.monitor.StartServer()
	}

	return s
}

func (b Builder) buildRecording(s *Simulation) {
	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "curvesim_" + s.id
	}

	s.dataRecorder = datarecording.New(outputPath)
	s.dbTracer = tracing.NewDBTracer(s.loop, s.dataRecorder)

	if b.skipReschedules {
		s.dbTracer.SkipReschedules()
	}

	tracing.CollectTrace(s.loop, s.dbTracer)
}

func (b Builder) buildSampling(s *Simulation) {
	if s.dataRecorder != nil {
		s.sampleBackend = analysis.NewRecorderBackend(s.dataRecorder)
	} else {
		path := b.samplePath
		if path == "" {
			path = "curvesim_samples_" + s.id
		}

		s.sampleBackend = analysis.NewCSVBackend(path)
	}

	s.sampler = analysis.MakeSamplerBuilder().
		WithPeriod(b.samplePeriod).
		WithPerfLogger(s.sampleBackend).
		Build()
}
