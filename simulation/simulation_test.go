package simulation

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/curvesim/config"
	"github.com/sarchlab/curvesim/datarecording"
	"github.com/sarchlab/curvesim/sim/curve"
	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/sim/timing"
	"github.com/sarchlab/curvesim/tracing"
)

// ringHandler closes a door some delay after it is scheduled.
type ringHandler struct {
	event.HandlerBase
}

func (h *ringHandler) Setup(*event.Event, event.State) {}

func (h *ringHandler) PredictInvokeTime(
	ref timing.VTimeInSec,
	evt *event.Event,
	_ event.State,
) timing.VTimeInSec {
	return ref + evt.Params().Time("delay", 0)
}

func (h *ringHandler) Invoke(
	_ *event.Loop,
	evt *event.Event,
	_ event.State,
	now timing.VTimeInSec,
) error {
	target, _ := evt.Target()
	target.(*curve.Discrete[string]).SetLast(now, "closed")

	return nil
}

type traceRow struct {
	Kind    string
	Handler string
	Target  string
	Time    float64
}

var _ = Describe("Simulation", func() {
	var (
		simulation *Simulation
		door       *curve.Discrete[string]
		ring       *ringHandler
	)

	run := func() {
		simulation.RegisterEntity(door)
		simulation.GetLoop().CreateEvent(door, ring,
			event.ParamMap{"delay": 5.0}, 0)
		Expect(simulation.GetLoop().ReachTime(10)).To(Succeed())
	}

	BeforeEach(func() {
		door = curve.NewDiscrete("door", "open")
		ring = &ringHandler{HandlerBase: event.NewHandlerBase("ring", event.Once)}
	})

	AfterEach(func() {
		if simulation != nil {
			simulation.Terminate()
			simulation = nil
		}
	})

	It("should register entities", func() {
		simulation = MakeBuilder().Build()

		simulation.RegisterEntity(door)

		e, found := simulation.GetEntityByName("door")
		Expect(found).To(BeTrue())
		Expect(e).To(BeIdenticalTo(door))
		Expect(simulation.Entities()).To(HaveLen(1))
		Expect(simulation.ID()).NotTo(BeEmpty())

		_, found = simulation.GetEntityByName("window")
		Expect(found).To(BeFalse())

		Expect(func() {
			simulation.RegisterEntity(curve.NewDiscrete("door", "closed"))
		}).To(Panic())
	})

	It("should count invocations", func() {
		simulation = MakeBuilder().Build()

		run()

		Expect(door.Get(10)).To(Equal("closed"))
		Expect(simulation.GetCountTracer().Count("ring")).To(Equal(
			tracing.HandlerCount{Invocations: 1, Reschedules: 1}))
		Expect(simulation.GetDataRecorder()).To(BeNil())
		Expect(simulation.GetMonitor()).To(BeNil())
	})

	It("should log events", func() {
		buf := new(bytes.Buffer)
		simulation = MakeBuilder().WithEventLog(buf, false).Build()

		run()

		Expect(buf.String()).To(Equal("5.000, invoke ring -> door\n"))
	})

	It("should record the trace", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		simulation = MakeBuilder().
			WithRecording(path).
			WithoutReschedulesRecorded().
			Build()

		run()
		simulation.Terminate()
		simulation = nil

		reader := datarecording.NewReader(path + ".sqlite3")
		defer reader.Close()
		reader.MapTable(tracing.TraceTable, traceRow{})

		rows, total, err := reader.Query(context.Background(),
			tracing.TraceTable, datarecording.QueryParams{})

		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(1))
		Expect(rows[0]).To(Equal(&traceRow{
			Kind:    tracing.KindInvoke,
			Handler: "ring",
			Target:  "door",
			Time:    5,
		}))
	})

	It("should sample continuous curves", func() {
		path := filepath.Join(GinkgoT().TempDir(), "samples")
		simulation = MakeBuilder().WithSampling(4, path).Build()

		simulation.RegisterEntity(curve.NewContinuous("level", 3))
		simulation.RegisterEntity(door)
		Expect(simulation.GetLoop().ReachTime(10)).To(Succeed())
		simulation.Terminate()
		simulation = nil

		content, err := os.ReadFile(path + ".csv")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(Equal("Time,Where,What,Value\n" +
			"4.0000000000,level,Value,3.0000000000\n" +
			"8.0000000000,level,Value,3.0000000000\n"))
	})

	It("should serve the monitor", func() {
		simulation = MakeBuilder().WithMonitor(0, false).Build()

		run()

		rsp, err := http.Get(simulation.MonitorURL() + "/api/entities")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(MatchJSON(`["door"]`))
	})

	It("should apply the configuration", func() {
		b := MakeBuilder().WithConfig(config.Config{
			MaxIterations:   3,
			Record:          true,
			SkipReschedules: true,
		})

		Expect(b.maxIterations).To(Equal(3))
		Expect(b.recordOn).To(BeTrue())
		Expect(b.skipReschedules).To(BeTrue())
		Expect(b.monitorOn).To(BeFalse())
	})

	It("should refuse invalid parameters", func() {
		Expect(func() {
			MakeBuilder().WithMaxIterations(0).Build()
		}).To(Panic())

		Expect(func() {
			b := MakeBuilder()
			b.outputFileName = "orphan"
			b.Build()
		}).To(Panic())

		Expect(func() {
			MakeBuilder().WithSampling(-1, "").Build()
		}).To(Panic())
	})
})
