package scenario

import (
	"fmt"
	"io"
	"sort"

	"github.com/sarchlab/curvesim/monitoring"
	"github.com/sarchlab/curvesim/sim/curve"
	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/sim/timing"
	"github.com/sarchlab/curvesim/simulation"
)

// A Runner runs a scenario in a simulation and writes the trace.
type Runner struct {
	scenario *Scenario
	sim      *simulation.Simulation
	out      io.Writer

	entities map[string]event.EventEntity
	lines    int
	err      error
}

// NewRunner builds the simulation of a validated scenario. The runner
// becomes the state of the loop, so the builder must not set one.
func NewRunner(
	s *Scenario,
	builder simulation.Builder,
	out io.Writer,
) *Runner {
	r := &Runner{
		scenario: s,
		out:      out,
		entities: make(map[string]event.EventEntity),
	}

	r.sim = builder.WithState(r).Build()

	for _, spec := range s.Entities {
		e := buildEntity(spec)
		r.entities[spec.Name] = e
		r.sim.RegisterEntity(e)
	}

	for _, spec := range s.Events {
		r.sim.GetLoop().CreateEvent(
			r.entities[spec.Target],
			handlers[spec.Handler].handler,
			event.ParamMap(spec.Params),
			0,
		)
	}

	return r
}

func buildEntity(spec EntitySpec) event.EventEntity {
	if spec.Kind == KindContinuous {
		initial := 0.0
		if len(spec.Keyframes) > 0 {
			initial, _ = toFloat(spec.Keyframes[0].Value)
		}

		c := curve.NewContinuous(spec.Name, initial)
		for _, k := range spec.Keyframes {
			v, _ := toFloat(k.Value)
			c.SetInsert(timing.VTimeInSec(k.Time), v)
		}

		return c
	}

	initial := ""
	if len(spec.Keyframes) > 0 {
		initial = fmt.Sprint(spec.Keyframes[0].Value)
	}

	d := curve.NewDiscrete(spec.Name, initial)
	for _, k := range spec.Keyframes {
		d.SetInsert(timing.VTimeInSec(k.Time), fmt.Sprint(k.Value))
	}

	return d
}

// Simulation returns the simulation the scenario runs in.
func (r *Runner) Simulation() *simulation.Simulation {
	return r.sim
}

// Lines returns the number of trace lines written so far.
func (r *Runner) Lines() int {
	return r.lines
}

// Run applies the mutations in the order of their At time and runs the loop
// until the end of the scenario. Mutations sharing an At time are applied
// as one batch.
func (r *Runner) Run() error {
	mutations := append([]Mutation(nil), r.scenario.Mutations...)
	sort.SliceStable(mutations, func(i, j int) bool {
		return mutations[i].At < mutations[j].At
	})

	var bar *monitoring.ProgressBar
	if m := r.sim.GetMonitor(); m != nil {
		bar = m.CreateProgressBar(r.scenario.Name, uint64(len(mutations)+1))
		defer m.CompleteProgressBar(bar)
	}

	loop := r.sim.GetLoop()

	for len(mutations) > 0 {
		n := 1
		for n < len(mutations) && mutations[n].At == mutations[0].At {
			n++
		}

		group := mutations[:n]
		mutations = mutations[n:]

		if err := r.reach(timing.VTimeInSec(group[0].At)); err != nil {
			return err
		}

		// Mutations at the same time are predicted from together, so that
		// a keyframe added after an erase is not taken as the only change.
		loop.Batch(func() {
			for _, m := range group {
				r.apply(m)
			}
		})

		if bar != nil {
			bar.IncrementFinished(uint64(n))
		}
	}

	if err := r.reach(timing.VTimeInSec(r.scenario.Until)); err != nil {
		return err
	}

	if bar != nil {
		bar.IncrementFinished(1)
	}

	r.writeLine(loop.Now(), "end", r.scenario.Name,
		fmt.Sprintf("%d lines", r.lines))

	return nil
}

func (r *Runner) reach(t timing.VTimeInSec) error {
	err := r.sim.GetLoop().ReachTime(t)
	if err != nil {
		return err
	}

	return r.err
}

func (r *Runner) apply(m Mutation) {
	t := timing.VTimeInSec(m.Time)

	r.writeLine(timing.VTimeInSec(m.At), "mutate", m.Entity,
		fmt.Sprintf("%s %v at %g", m.Mode, m.Value, m.Time))

	switch e := r.entities[m.Entity].(type) {
	case *curve.Continuous:
		v, _ := toFloat(m.Value)
		switch m.Mode {
		case ModeLast:
			e.SetLast(t, v)
		case ModeInsert:
			e.SetInsert(t, v)
		case ModeReplace:
			e.SetReplace(t, v)
		}
	case *curve.Discrete[string]:
		v := fmt.Sprint(m.Value)
		switch m.Mode {
		case ModeLast:
			e.SetLast(t, v)
		case ModeInsert:
			e.SetInsert(t, v)
		case ModeReplace:
			e.SetReplace(t, v)
		}
	}
}

func (r *Runner) discrete(name string) (*curve.Discrete[string], error) {
	d, ok := r.entities[name].(*curve.Discrete[string])
	if !ok {
		return nil, fmt.Errorf("%q is not a discrete entity", name)
	}

	return d, nil
}

func (r *Runner) trace(now timing.VTimeInSec, evt *event.Event, msg string) {
	r.writeLine(now, evt.Handler().ID(), evt.TargetName(), msg)
}

func (r *Runner) writeLine(
	now timing.VTimeInSec,
	handler, target, msg string,
) {
	if r.err != nil {
		return
	}

	_, r.err = fmt.Fprintf(r.out, "[%10.3f] %s %s: %s\n",
		float64(now), handler, target, msg)
	if r.err == nil {
		r.lines++
	}
}

// Terminate shuts the simulation down.
func (r *Runner) Terminate() {
	r.sim.Terminate()
}
