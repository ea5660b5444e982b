package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sarchlab/dmcache/datarecording"
	"github.com/sarchlab/dmcache/mem/trace"
	"github.com/sarchlab/dmcache/tracing"
)

// traceRecording records the tasks of the cache, its state changes and the
// memory transfers of one run into <path>.sqlite3.
type traceRecording struct {
	path     string
	recorder datarecording.DataRecorder
	tracer   *tracing.DBTracer
}

func startTraceRecording(s *simulation, path string) (*traceRecording, error) {
	recorder, err := datarecording.New(path)
	if err != nil {
		return nil, err
	}

	rec := &traceRecording{
		path:     path,
		recorder: recorder,
		tracer:   tracing.NewDBTracer(s.engine, recorder),
	}

	tracing.CollectTrace(s.cache, rec.tracer)
	s.cache.AcceptHook(trace.NewStateDBTracer(recorder))
	s.memory.AcceptHook(trace.NewDBTracer(recorder))

	return rec, nil
}

// finish writes the buffered records and closes the database.
func (rec *traceRecording) finish() error {
	return errors.Join(rec.tracer.Terminate(), rec.recorder.Close())
}

type traceSummary struct {
	table  string
	column string
	label  string
}

var traceSummaries = []traceSummary{
	{"trace", "What", "tasks"},
	{"trace_milestones", "What", "milestones"},
	{trace.TableName, "What", "transfers"},
	{trace.StateTableName, "To", "transitions to"},
}

// printTraceSummary reads a recorded trace back and prints the number of
// rows by kind.
func printTraceSummary(ctx context.Context, w io.Writer, path string) error {
	reader, err := datarecording.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	tables, err := reader.Tables(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, heading("Trace"))
	fmt.Fprintf(w, "  database       %s.sqlite3\n", path)
	fmt.Fprintf(w, "  tables         %s\n", strings.Join(tables, ", "))

	for _, s := range traceSummaries {
		counts, err := reader.Summarize(ctx, s.table, s.column)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "  %-14s %s\n", s.label, formatCounts(counts))
	}

	return nil
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return faint("none")
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %d", k, counts[k])
	}

	return strings.Join(parts, ", ")
}
