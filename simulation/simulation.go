// Package simulation assembles an event loop with the services around it:
// tracing, recording, logging, and monitoring.
package simulation

import (
	"context"
	"time"

	"github.com/sarchlab/curvesim/analysis"
	"github.com/sarchlab/curvesim/datarecording"
	"github.com/sarchlab/curvesim/monitoring"
	"github.com/sarchlab/curvesim/sim/curve"
	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/tracing"
)

// A Simulation provides the services required to run a simulation.
type Simulation struct {
	id   string
	loop *event.Loop

	dataRecorder datarecording.DataRecorder
	dbTracer     *tracing.DBTracer
	countTracer  *tracing.CountTracer
	monitor      *monitoring.Monitor
	monitorURL   string

	sampler       *analysis.Sampler
	sampleBackend analysis.Backend

	entities        []event.EventEntity
	entityNameIndex map[string]int
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetLoop returns the event loop of the simulation.
func (s *Simulation) GetLoop() *event.Loop {
	return s.loop
}

// GetDataRecorder returns the data recorder, or nil if nothing is recorded.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetDBTracer returns the tracer that records the trace, if any.
func (s *Simulation) GetDBTracer() *tracing.DBTracer {
	return s.dbTracer
}

// GetCountTracer returns the tracer that counts the records per handler.
func (s *Simulation) GetCountTracer() *tracing.CountTracer {
	return s.countTracer
}

// GetMonitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring server.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// RegisterEntity adds an entity to the loop and makes it visible to the
// monitor. Continuous curves are sampled if sampling is on.
func (s *Simulation) RegisterEntity(e event.EventEntity) {
	name := e.Name()
	if _, found := s.entityNameIndex[name]; found {
		panic("entity " + name + " already registered")
	}

	s.loop.AddEntity(e)
	s.entities = append(s.entities, e)
	s.entityNameIndex[name] = len(s.entities) - 1

	if s.monitor != nil {
		s.monitor.RegisterEntity(e)
	}

	if c, ok := e.(*curve.Continuous); ok && s.sampler != nil {
		s.sampler.Watch(s.loop, c)
	}
}

// GetEntityByName returns the entity with the given name.
func (s *Simulation) GetEntityByName(name string) (event.EventEntity, bool) {
	i, found := s.entityNameIndex[name]
	if !found {
		return nil, false
	}

	return s.entities[i], true
}

// Entities returns all registered entities in registration order.
func (s *Simulation) Entities() []event.EventEntity {
	return append([]event.EventEntity(nil), s.entities...)
}

// Terminate flushes the trace and shuts the services down.
func (s *Simulation) Terminate() {
	if s.sampleBackend != nil {
		s.sampleBackend.Close()
	}

	if s.dbTracer != nil {
		s.dbTracer.Terminate()
	}

	if s.dataRecorder != nil {
		err := s.dataRecorder.Close()
		if err != nil {
			panic(err)
		}
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := s.monitor.StopServer(ctx)
		if err != nil {
			panic(err)
		}
	}
}
