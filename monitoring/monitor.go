// Package monitoring turns a running simulation into an HTTP server that
// reports its progress and lets an operator pause it and look into it.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/curvesim/sim/event"
	"github.com/sarchlab/curvesim/sim/timing"
	"github.com/sarchlab/curvesim/tracing"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Controllable is the part of a loop that the monitor uses. All methods must
// be safe to call from the server goroutines.
type Controllable interface {
	Now() timing.VTimeInSec
	Pause()
	Continue()
	IsPaused() bool
}

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	loop        Controllable
	counter     *tracing.CountTracer
	portNumber  int
	openBrowser bool

	profileDuration time.Duration

	entitiesLock sync.RWMutex
	entities     []event.EventEntity

	inspectLock      sync.Mutex
	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open its address in a browser once the
// server is up.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithProfileDuration sets how long the CPU is profiled on request.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// RegisterLoop registers the loop that runs the simulation.
func (m *Monitor) RegisterLoop(l Controllable) {
	m.loop = l
}

// RegisterEntity registers an entity whose state can be inspected.
func (m *Monitor) RegisterEntity(e event.EventEntity) {
	m.entitiesLock.Lock()
	defer m.entitiesLock.Unlock()

	m.entities = append(m.entities, e)
}

// RegisterCountTracer registers the tracer that backs the counts endpoint.
func (m *Monitor) RegisterCountTracer(t *tracing.CountTracer) {
	m.counter = t
}

// Router returns the handler that serves the monitoring API.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause)
	r.HandleFunc("/api/continue", m.continueLoop)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/entities", m.listEntities)
	r.HandleFunc("/api/entity/{name}", m.entityDetails)
	r.HandleFunc("/api/field/{json}", m.fieldValue)
	r.HandleFunc("/api/counts", m.listCounts)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts the monitor as a web server and returns its address.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != http.ErrServerClosed {
			dieOnErr(err)
		}
	}()

	if m.openBrowser {
		err = browser.OpenURL(url + "/api/now")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open the browser: %s\n", err)
		}
	}

	return url
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	if !m.loopOr503(w) {
		return
	}

	m.loop.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueLoop(w http.ResponseWriter, _ *http.Request) {
	if !m.loopOr503(w) {
		return
	}

	m.loop.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if !m.loopOr503(w) {
		return
	}

	now := m.loop.Now()
	paused := m.loop.IsPaused()

	writeJSON(w, struct {
		Now    float64 `json:"now"`
		Paused bool    `json:"paused"`
	}{float64(now), paused})
}

func (m *Monitor) loopOr503(w http.ResponseWriter) bool {
	if m.loop != nil {
		return true
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	_, err := w.Write([]byte("No loop registered"))
	dieOnErr(err)

	return false
}

func (m *Monitor) listEntities(w http.ResponseWriter, _ *http.Request) {
	m.entitiesLock.RLock()
	names := make([]string, 0, len(m.entities))
	for _, e := range m.entities {
		names = append(names, e.Name())
	}
	m.entitiesLock.RUnlock()

	sort.Strings(names)

	writeJSON(w, names)
}

// inspect runs fn while the loop is paused between two invocations.
func (m *Monitor) inspect(fn func()) {
	m.inspectLock.Lock()
	defer m.inspectLock.Unlock()

	if m.loop != nil && !m.loop.IsPaused() {
		m.loop.Pause()
		defer m.loop.Continue()
	}

	fn()
}

func (m *Monitor) entityDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	entity := m.findEntityOr404(w, name)
	if entity == nil {
		return
	}

	m.inspect(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(entity)
		serializer.SetMaxDepth(2)
		err := serializer.Serialize(w)
		dieOnErr(err)
	})
}

type fieldReq struct {
	EntityName string `json:"entity_name,omitempty"`
	FieldName  string `json:"field_name,omitempty"`
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	entity := m.findEntityOr404(w, req.EntityName)
	if entity == nil {
		return
	}

	m.inspect(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(entity)
		serializer.SetMaxDepth(1)

		err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: %s", err)
			return
		}

		err = serializer.Serialize(w)
		dieOnErr(err)
	})
}

func (m *Monitor) findEntityOr404(
	w http.ResponseWriter,
	name string,
) event.EventEntity {
	m.entitiesLock.RLock()
	for _, e := range m.entities {
		if e.Name() == name {
			m.entitiesLock.RUnlock()
			return e
		}
	}
	m.entitiesLock.RUnlock()

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Entity not found"))
	dieOnErr(err)

	return nil
}

type countRsp struct {
	Handler string `json:"handler"`
	tracing.HandlerCount
}

func (m *Monitor) listCounts(w http.ResponseWriter, _ *http.Request) {
	rsp := []countRsp{}

	if m.counter != nil {
		for _, h := range m.counter.Handlers() {
			rsp = append(rsp, countRsp{
				Handler:      h,
				HandlerCount: m.counter.Count(h),
			})
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := p.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := p.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
