package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/curvesim/sim/curve"
	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/tracing"
)

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		loop   *event.Loop
		level  *curve.Continuous
		router http.Handler
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	BeforeEach(func() {
		m = NewMonitor().WithProfileDuration(10 * time.Millisecond)
		loop = event.NewLoop(nil)
		level = curve.NewContinuous("level", 1)
		loop.AddEntity(level)

		m.RegisterLoop(loop)
		m.RegisterEntity(level)
		m.RegisterEntity(curve.NewDiscrete("door", "open"))
		router = m.Router()
	})

	It("should report the time", func() {
		Expect(loop.ReachTime(12.5)).To(Succeed())

		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"now":12.5,"paused":false}`))
	})

	It("should pause and continue the loop", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(loop.IsPaused()).To(BeTrue())

		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
		Expect(loop.IsPaused()).To(BeFalse())
	})

	It("should refuse to control without a loop", func() {
		m = NewMonitor()
		router = m.Router()

		Expect(get("/api/now").Code).To(Equal(http.StatusServiceUnavailable))
		Expect(get("/api/pause").Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("should list entities", func() {
		rec := get("/api/entities")

		Expect(rec.Body.String()).To(MatchJSON(`["door","level"]`))
	})

	It("should register entities while serving", func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 20; i++ {
				m.RegisterEntity(curve.NewDiscrete(fmt.Sprintf("d%d", i), "x"))
			}
		}()

		for i := 0; i < 20; i++ {
			Expect(get("/api/entities").Code).To(Equal(http.StatusOK))
			Expect(get("/api/entity/missing").Code).To(Equal(http.StatusNotFound))
		}

		Eventually(done).Should(BeClosed())

		var names []string
		Expect(json.Unmarshal(get("/api/entities").Body.Bytes(), &names)).
			To(Succeed())
		Expect(names).To(HaveLen(22))
	})

	It("should dump entities", func() {
		Expect(get("/api/entity/level").Code).To(Equal(http.StatusOK))
		Expect(get("/api/entity/missing").Code).To(Equal(http.StatusNotFound))
		Expect(loop.IsPaused()).To(BeFalse())
	})

	It("should refuse malformed field requests", func() {
		Expect(get("/api/field/notjson").Code).To(Equal(http.StatusBadRequest))
	})

	It("should list counts", func() {
		counter := tracing.NewCountTracer()
		counter.EventInvoked(tracing.Record{Handler: "timer"})
		counter.EventInvoked(tracing.Record{Handler: "timer"})
		m.RegisterCountTracer(counter)

		rec := get("/api/counts")

		var rsp []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0]).To(HaveKeyWithValue("handler", "timer"))
		Expect(rsp[0]).To(HaveKeyWithValue("Invocations", BeNumerically("==", 2)))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("mutations", 4)
		bar.IncrementInProgress(2)
		bar.MoveInProgressToFinished(1)
		m.CreateProgressBar("other", 1)

		var rsp []progressRsp
		Expect(json.Unmarshal(get("/api/progress").Body.Bytes(), &rsp)).
			To(Succeed())
		Expect(rsp).To(HaveLen(2))
		Expect(rsp[0].Name).To(Equal("mutations"))
		Expect(rsp[0].Finished).To(Equal(uint64(1)))
		Expect(rsp[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)

		Expect(json.Unmarshal(get("/api/progress").Body.Bytes(), &rsp)).
			To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("other"))
	})

	It("should report resources", func() {
		rec := get("/api/resource")

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should collect a profile", func() {
		rec := get("/api/profile")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
	})

	It("should serve over http", func() {
		url := m.StartServer()
		defer func() {
			Expect(m.StopServer(context.Background())).To(Succeed())
		}()

		rsp, err := http.Get(url + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
