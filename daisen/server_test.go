package daisen

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/curvesim/analysis"
	"github.com/sarchlab/curvesim/datarecording"
	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/sim/timing"
	"github.com/sarchlab/curvesim/tracing"
)

var _ = Describe("Server", func() {
	var (
		reader datarecording.DataReader
		router http.Handler
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	getTrace := func(path string) pageRsp[traceRsp] {
		rec := get(path)
		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp pageRsp[traceRsp]
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		return rsp
	}

	BeforeEach(func() {
		path := filepath.Join(GinkgoT().TempDir(), "rec")
		recorder := datarecording.New(path)

		tracer := tracing.NewDBTracer(event.NewLoop(nil), recorder)
		samples := analysis.NewRecorderBackend(recorder)

		tracer.EventRescheduled(tracing.Record{
			Kind: tracing.KindReschedule, Handler: "pulse", Target: "valve",
			Time: 0, OldTime: timing.Never, NewTime: 25,
		})
		tracer.EventInvoked(tracing.Record{
			Kind: tracing.KindInvoke, Handler: "timer", Target: "level",
			Time: 5, OldTime: timing.Never, NewTime: timing.Never,
		})
		tracer.EventDropped(tracing.Record{
			Kind: tracing.KindCancel, Handler: "pulse", Target: "valve",
			Time: 20, OldTime: timing.Never, NewTime: timing.Never,
		})
		samples.AddDataEntry(analysis.Entry{Time: 10, Where: "level", What: "Value", Value: 1})
		samples.AddDataEntry(analysis.Entry{Time: 20, Where: "level", What: "Value", Value: 2})
		samples.AddDataEntry(analysis.Entry{Time: 20, Where: "depth", What: "Value", Value: 3})

		tracer.Terminate()
		Expect(recorder.Close()).To(Succeed())

		reader = datarecording.NewReader(path + ".sqlite3")
		router = NewServer(reader).Router()
	})

	AfterEach(func() {
		Expect(reader.Close()).To(Succeed())
	})

	It("should list tables", func() {
		Expect(get("/api/tables").Body.String()).
			To(MatchJSON(`["curve_sample","event_trace"]`))
	})

	It("should list the whole trace in order", func() {
		rsp := getTrace("/api/trace")

		Expect(rsp.Total).To(Equal(3))
		Expect(rsp.Records).To(HaveLen(3))
		Expect(rsp.Records[0].Kind).To(Equal(tracing.KindReschedule))
		Expect(rsp.Records[0].OldTime).To(BeNil())
		Expect(*rsp.Records[0].NewTime).To(Equal(25.0))
		Expect(*rsp.Records[0].LoopTime).To(Equal(0.0))
		Expect(rsp.Records[0].Hash).To(Equal("0000000000000000"))
	})

	It("should filter the trace", func() {
		rsp := getTrace("/api/trace?kind=invoke")
		Expect(rsp.Total).To(Equal(1))
		Expect(rsp.Records[0].Target).To(Equal("level"))
		Expect(*rsp.Records[0].Time).To(Equal(5.0))

		rsp = getTrace("/api/trace?handler=pulse&target=valve")
		Expect(rsp.Total).To(Equal(2))

		rsp = getTrace("/api/trace?start=1&end=10")
		Expect(rsp.Total).To(Equal(1))
		Expect(rsp.Records[0].Handler).To(Equal("timer"))
	})

	It("should page the trace", func() {
		rsp := getTrace("/api/trace?limit=1&offset=1")

		Expect(rsp.Total).To(Equal(3))
		Expect(rsp.Records).To(HaveLen(1))
		Expect(rsp.Records[0].Kind).To(Equal(tracing.KindInvoke))
	})

	It("should refuse bad parameters", func() {
		Expect(get("/api/trace?start=soon").Code).To(Equal(http.StatusBadRequest))
		Expect(get("/api/trace?limit=-1").Code).To(Equal(http.StatusBadRequest))
		Expect(get("/api/samples?offset=x").Code).To(Equal(http.StatusBadRequest))
	})

	It("should list samples", func() {
		rec := get("/api/samples?where=level")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{
			"total": 2,
			"records": [
				{"time": 10, "where": "level", "what": "Value", "value": 1},
				{"time": 20, "where": "level", "what": "Value", "value": 2}
			]
		}`))
	})
})
