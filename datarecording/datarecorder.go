// Package datarecording stores simulation records in a SQLite database.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"
	"github.com/sirupsen/logrus"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// IndexTag marks a field whose column is indexed, as in
//
//	Address uint64 `recording:"index"`
const IndexTag = "index"

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a table with one column per exported field of the
	// sample entry. Fields tagged `recording:"index"` are indexed.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry of the table's type.
	InsertData(tableName string, entry any)

	// Tables returns the names of the created tables in order.
	Tables() []string

	// Flush writes all the buffered entries in one transaction.
	Flush() error

	// Close flushes and releases the database.
	Close() error
}

// New creates a new DataRecorder that writes into <path>.sqlite3. An empty
// path generates a unique file name. An existing file is never overwritten.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = "dmcache_recording_" + xid.New().String()
	}

	filename := path + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	logrus.WithField("file", filename).Info("recording database created")

	return newWriter(db), nil
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	return newWriter(db)
}

func newWriter(db *sql.DB) *sqliteWriter {
	db.SetMaxOpenConns(1)

	w := &sqliteWriter{
		DB:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() {
		if err := w.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush records: %v\n", err)
		}
	})

	return w
}

type table struct {
	structType reflect.Type
	insert     *sql.Stmt
	entries    []any
}

// sqliteWriter is the writer that writes data into SQLite database
type sqliteWriter struct {
	*sql.DB

	tables     map[string]*table
	batchSize  int
	entryCount int
	closed     bool
}

func columnType(kind reflect.Kind) (string, bool) {
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
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

type column struct {
	name    string
	sqlType string
	indexed bool
}

func columnsOf(entry any) ([]column, error) {
	if reflect.TypeOf(entry).Kind() != reflect.Struct {
		return nil, errors.New("entry must be a struct")
	}

	var columns []column
	for _, f := range structs.Fields(entry) {
		if !f.IsExported() {
			continue
		}

		sqlType, ok := columnType(f.Kind())
		if !ok {
			return nil, fmt.Errorf("field %s has unsupported type %s",
				f.Name(), reflect.TypeOf(f.Value()))
		}

		columns = append(columns, column{
			name:    f.Name(),
			sqlType: sqlType,
			indexed: f.Tag("recording") == IndexTag,
		})
	}

	if len(columns) == 0 {
		return nil, errors.New("entry has no exported fields")
	}

	return columns, nil
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	columns, err := columnsOf(sampleEntry)
	if err != nil {
		log.Panicf("cannot create table %s: %v", tableName, err)
	}

	defs := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = c.name + " " + c.sqlType
		marks[i] = "?"
	}

	t.mustExecute(`CREATE TABLE ` + tableName +
		` (` + "\n\t" + strings.Join(defs, ", \n\t") + "\n" + `);`)

	for _, c := range columns {
		if c.indexed {
			t.mustExecute(fmt.Sprintf("CREATE INDEX %s_%s ON %s (%s);",
				tableName, c.name, tableName, c.name))
		}
	}

	insert, err := t.Prepare("INSERT INTO " + tableName +
		" VALUES (" + strings.Join(marks, ", ") + ")")
	if err != nil {
		log.Panic(err)
	}

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
		insert:     insert,
	}
}

func (t *sqliteWriter) InsertData(tableName string, entry any) {
	table, exists := t.tables[tableName]
	if !exists {
		log.Panicf("table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != table.structType {
		log.Panicf("entry type %s does not match table %s",
			reflect.TypeOf(entry), tableName)
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		if err := t.Flush(); err != nil {
			log.Panic(err)
		}
	}
}

func (t *sqliteWriter) Tables() []string {
	tables := make([]string, 0, len(t.tables))
	for table := range t.tables {
		tables = append(tables, table)
	}

	sort.Strings(tables)

	return tables
}

func (t *sqliteWriter) Flush() error {
	if t.closed || t.entryCount == 0 {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return err
	}

	for _, name := range t.Tables() {
		table := t.tables[name]

		err = t.writeEntries(tx, table)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("writing table %s: %w", name, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return err
	}

	for _, table := range t.tables {
		table.entries = nil
	}

	t.entryCount = 0

	return nil
}

func (t *sqliteWriter) writeEntries(tx *sql.Tx, table *table) error {
	if len(table.entries) == 0 {
		return nil
	}

	stmt := tx.Stmt(table.insert)
	defer stmt.Close()

	for _, entry := range table.entries {
		_, err := stmt.Exec(exportedValues(entry)...)
		if err != nil {
			return err
		}
	}

	return nil
}

func exportedValues(entry any) []any {
	var values []any
	for _, f := range structs.Fields(entry) {
		if f.IsExported() {
			values = append(values, f.Value())
		}
	}

	return values
}

func (t *sqliteWriter) Close() error {
	err := t.Flush()

	for _, table := range t.tables {
		table.insert.Close()
	}

	t.closed = true

	return errors.Join(err, t.DB.Close())
}

func (t *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		log.Panic(err)
	}

	return res
}
