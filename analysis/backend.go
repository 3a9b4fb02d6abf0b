package analysis

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/sarchlab/curvesim/datarecording"
	"github.com/tebeka/atexit"
)

// SampleTable is the table the RecorderBackend writes into.
const SampleTable = "curve_sample"

// Backend is a PerfLogger that buffers samples until flushed.
type Backend interface {
	PerfLogger
	Flush()
	Close()
}

// CSVBackend is a Backend that writes samples to a CSV file.
type CSVBackend struct {
	dbFile    *os.File
	csvWriter *csv.Writer
}

// NewCSVBackend creates filename.csv and writes the header. The file is
// flushed and closed when the program exits.
func NewCSVBackend(filename string) *CSVBackend {
	p := &CSVBackend{}

	var err error
	p.dbFile, err = os.OpenFile(filename+".csv",
		os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		panic(err)
	}

	p.csvWriter = csv.NewWriter(p.dbFile)

	err = p.csvWriter.Write([]string{"Time", "Where", "What", "Value"})
	if err != nil {
		panic(err)
	}

	atexit.Register(func() {
		p.Close()
	})

	return p
}

// AddDataEntry adds a sample to the CSV file.
func (p *CSVBackend) AddDataEntry(entry Entry) {
	err := p.csvWriter.Write([]string{
		fmt.Sprintf("%.10f", entry.Time),
		entry.Where,
		entry.What,
		fmt.Sprintf("%.10f", entry.Value),
	})
	if err != nil {
		panic(err)
	}
}

// Flush flushes the CSV writer.
func (p *CSVBackend) Flush() {
	p.csvWriter.Flush()

	err := p.csvWriter.Error()
	if err != nil {
		panic(err)
	}
}

// Close flushes the samples and closes the file. Closing twice has no
// effect.
func (p *CSVBackend) Close() {
	if p.dbFile == nil {
		return
	}

	p.Flush()

	err := p.dbFile.Close()
	if err != nil {
		panic(err)
	}

	p.dbFile = nil
}

// RecorderBackend is a Backend that writes samples into a table of a
// DataRecorder.
type RecorderBackend struct {
	recorder datarecording.DataRecorder
}

// NewRecorderBackend creates the sample table in the recorder.
func NewRecorderBackend(
	recorder datarecording.DataRecorder,
) *RecorderBackend {
	recorder.CreateTable(SampleTable, Entry{})

	return &RecorderBackend{recorder: recorder}
}

// AddDataEntry buffers a sample in the recorder.
func (p *RecorderBackend) AddDataEntry(entry Entry) {
	p.recorder.InsertData(SampleTable, entry)
}

// Flush flushes the recorder.
func (p *RecorderBackend) Flush() {
	p.recorder.Flush()
}

// Close flushes the samples. The recorder stays open for its owner.
func (p *RecorderBackend) Close() {
	p.Flush()
}
