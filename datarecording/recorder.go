// Package datarecording stores simulation records in SQLite databases.
// Every table is described by a flat struct; each exported field becomes a
// column.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"sort"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DefaultBatchSize is the number of buffered entries that triggers a flush.
const DefaultBatchSize = 10000

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists. The entry
	// must have the type of the sample the table was created with.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and releases the database.
	Close() error
}

var tableNameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type table struct {
	structType reflect.Type
	columns    []string
	entries    []any
}

// sqliteWriter is the writer that writes data into a SQLite database.
type sqliteWriter struct {
	*sql.DB

	dbName     string
	tables     map[string]*table
	batchSize  int
	entryCount int
}

// New creates a DataRecorder that writes to path.sqlite3. An empty path
// picks a unique name. The file must not exist yet. Buffered entries are
// flushed when the program exits through atexit.
func New(path string) DataRecorder {
	w := &sqliteWriter{
		dbName:    path,
		batchSize: DefaultBatchSize,
		tables:    make(map[string]*table),
	}

	w.init()

	atexit.Register(func() { w.Flush() })

	return w
}

// NewWithDB creates a DataRecorder on an open database.
func NewWithDB(db *sql.DB) DataRecorder {
	return &sqliteWriter{
		DB:        db,
		batchSize: DefaultBatchSize,
		tables:    make(map[string]*table),
	}
}

// UniqueDBName returns a database name that is unlikely to be taken.
func UniqueDBName(prefix string) string {
	return prefix + "_" + xid.New().String()
}

func (w *sqliteWriter) init() {
	if w.dbName == "" {
		w.dbName = UniqueDBName("curvesim_recording")
	}

	filename := w.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	// Transactions are issued as plain statements, so they must all go
	// through the same connection.
	db.SetMaxOpenConns(1)

	err = db.Ping()
	if err != nil {
		panic(err)
	}

	w.DB = db
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// columnsOf returns the column names of a sample entry, which are the names
// of its fields.
func columnsOf(sampleEntry any) ([]string, error) {
	t := reflect.TypeOf(sampleEntry)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entry %T is not a struct", sampleEntry)
	}

	columns := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if !field.IsExported() {
			return nil, fmt.Errorf("field %s of %s is not exported",
				field.Name, t)
		}

		if !isAllowedKind(field.Type.Kind()) {
			return nil, fmt.Errorf("field %s of %s has unsupported type %s",
				field.Name, t, field.Type)
		}

		columns = append(columns, field.Name)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("entry %s has no field", t)
	}

	return columns, nil
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	if !tableNameRegexp.MatchString(tableName) {
		panic(fmt.Sprintf("invalid table name %q", tableName))
	}

	if _, exists := w.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	columns, err := columnsOf(sampleEntry)
	if err != nil {
		panic(err)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = `"` + c + `"`
	}

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + strings.Join(quoted, ", \n\t") + "\n" + `);`
	w.mustExecute(createTableSQL)

	w.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
		columns:    columns,
	}
}

func (w *sqliteWriter) InsertData(tableName string, entry any) {
	t, exists := w.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.structType {
		panic(fmt.Sprintf("entry of type %T does not fit table %s",
			entry, tableName))
	}

	t.entries = append(t.entries, entry)

	w.entryCount++
	if w.entryCount >= w.batchSize {
		w.Flush()
	}
}

func (w *sqliteWriter) ListTables() []string {
	tables := make([]string, 0, len(w.tables))
	for name := range w.tables {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

func (w *sqliteWriter) Flush() {
	if w.entryCount == 0 {
		return
	}

	w.mustExecute("BEGIN TRANSACTION")
	defer w.mustExecute("COMMIT TRANSACTION")

	for _, name := range w.ListTables() {
		t := w.tables[name]
		if len(t.entries) == 0 {
			continue
		}

		w.flushTable(name, t)
	}

	w.entryCount = 0
}

func (w *sqliteWriter) flushTable(name string, t *table) {
	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", len(t.columns)), ", ")
	stmt, err := w.Prepare(
		"INSERT INTO " + name + " VALUES (" + placeholders + ")")
	if err != nil {
		panic(err)
	}
	defer stmt.Close()

	values := make([]any, len(t.columns))
	for _, entry := range t.entries {
		v := reflect.ValueOf(entry)
		for i := range values {
			values[i] = v.Field(i).Interface()
		}

		_, err := stmt.Exec(values...)
		if err != nil {
			panic(err)
		}
	}

	t.entries = nil
}

func (w *sqliteWriter) Close() error {
	w.Flush()
	return w.DB.Close()
}

func (w *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := w.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
