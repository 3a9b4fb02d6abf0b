// Package daisen serves the records of a finished simulation over HTTP, so
// that traces and samples can be browsed without opening the database.
package daisen

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sarchlab/curvesim/analysis"
	"github.com/sarchlab/curvesim/datarecording"
	"github.com/sarchlab/curvesim/tracing"
)

// DefaultLimit is the number of records returned when no limit is given.
const DefaultLimit = 1000

// traceRow is a row of the trace table.
type traceRow struct {
	Kind     string
	Handler  string
	Target   string
	Hash     string
	Time     float64
	OldTime  float64
	NewTime  float64
	LoopTime float64
}

type traceRsp struct {
	Kind     string   `json:"kind"`
	Handler  string   `json:"handler"`
	Target   string   `json:"target"`
	Hash     string   `json:"hash"`
	Time     *float64 `json:"time"`
	OldTime  *float64 `json:"old_time"`
	NewTime  *float64 `json:"new_time"`
	LoopTime *float64 `json:"loop_time"`
}

type sampleRsp struct {
	Time  float64 `json:"time"`
	Where string  `json:"where"`
	What  string  `json:"what"`
	Value float64 `json:"value"`
}

type pageRsp[T any] struct {
	Total   int `json:"total"`
	Records []T `json:"records"`
}

// Server answers queries on a recording.
type Server struct {
	reader datarecording.DataReader
	server *http.Server
}

// NewServer creates a server that reads from the reader.
func NewServer(reader datarecording.DataReader) *Server {
	reader.MapTable(tracing.TraceTable, traceRow{})
	reader.MapTable(analysis.SampleTable, analysis.Entry{})

	s := &Server{reader: reader}
	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Router returns the handler that serves the API.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/tables", s.listTables)
	r.HandleFunc("/api/trace", s.listTrace)
	r.HandleFunc("/api/samples", s.listSamples)

	return r
}

// ListenAndServe serves the API on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

// Shutdown stops the server. A server shut down before it listens never
// starts.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) listTables(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.reader.ListTables())
}

// whereClause collects equality and time range filters.
type whereClause struct {
	conds []string
	args  []any
}

func (c *whereClause) equal(column, value string) {
	if value == "" {
		return
	}

	c.conds = append(c.conds, `"`+column+`" = ?`)
	c.args = append(c.args, value)
}

func (c *whereClause) compare(column, op, value string) error {
	if value == "" {
		return nil
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", column, err)
	}

	c.conds = append(c.conds, `"`+column+`" `+op+" ?")
	c.args = append(c.args, v)

	return nil
}

func (c *whereClause) params(r *http.Request) (datarecording.QueryParams, error) {
	query := r.URL.Query()

	err := c.compare("Time", ">=", query.Get("start"))
	if err != nil {
		return datarecording.QueryParams{}, err
	}

	err = c.compare("Time", "<=", query.Get("end"))
	if err != nil {
		return datarecording.QueryParams{}, err
	}

	limit, err := intParam(query.Get("limit"), DefaultLimit)
	if err != nil {
		return datarecording.QueryParams{}, err
	}

	offset, err := intParam(query.Get("offset"), 0)
	if err != nil {
		return datarecording.QueryParams{}, err
	}

	return datarecording.QueryParams{
		Where:   strings.Join(c.conds, " AND "),
		Args:    c.args,
		Limit:   limit,
		Offset:  offset,
		OrderBy: "rowid",
	}, nil
}

func intParam(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}

	v, err := strconv.Atoi(value)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid number %q", value)
	}

	return v, nil
}

func (s *Server) listTrace(w http.ResponseWriter, r *http.Request) {
	c := whereClause{}
	c.equal("Kind", r.URL.Query().Get("kind"))
	c.equal("Handler", r.URL.Query().Get("handler"))
	c.equal("Target", r.URL.Query().Get("target"))

	params, err := c.params(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, total, err := s.reader.Query(r.Context(), tracing.TraceTable, params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rsp := pageRsp[traceRsp]{Total: total, Records: []traceRsp{}}
	for _, row := range rows {
		t := row.(*traceRow)
		rsp.Records = append(rsp.Records, traceRsp{
			Kind:     t.Kind,
			Handler:  t.Handler,
			Target:   t.Target,
			Hash:     t.Hash,
			Time:     finite(t.Time),
			OldTime:  finite(t.OldTime),
			NewTime:  finite(t.NewTime),
			LoopTime: finite(t.LoopTime),
		})
	}

	writeJSON(w, rsp)
}

func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	c := whereClause{}
	c.equal("Where", r.URL.Query().Get("where"))
	c.equal("What", r.URL.Query().Get("what"))

	params, err := c.params(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, total, err := s.reader.Query(r.Context(), analysis.SampleTable, params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rsp := pageRsp[sampleRsp]{Total: total, Records: []sampleRsp{}}
	for _, row := range rows {
		e := row.(*analysis.Entry)
		rsp.Records = append(rsp.Records, sampleRsp{
			Time:  e.Time,
			Where: e.Where,
			What:  e.What,
			Value: e.Value,
		})
	}

	writeJSON(w, rsp)
}

// finite returns nil for the infinite times that JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}

	return &v
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
