// Package trace records the line transfers served by a block memory and the
// state changes of a cache controller.
package trace

import (
	"log"

	"github.com/sarchlab/dmcache/datarecording"
	"github.com/sarchlab/dmcache/mem/blockmem"
	"github.com/sarchlab/dmcache/mem/cache/directmapped"
	"github.com/sarchlab/dmcache/sim/hooking"
	"github.com/sarchlab/dmcache/sim/id"
	"github.com/sarchlab/dmcache/sim/naming"
)

// TableName is the table the DB tracer writes transfers into.
const TableName = "memory_transfers"

// StateTableName is the table the state DB tracer writes transitions into.
const StateTableName = "cache_transitions"

// TransferEntry is a line transfer as stored in the database. Times are
// cycles.
type TransferEntry struct {
	ID         string
	Location   string
	What       string
	Address    uint64 `recording:"index"`
	ByteSize   uint64
	AcceptedAt uint64
	DataAckAt  uint64
	DataAt     uint64
}

func locationOf(ctx hooking.HookCtx) string {
	if named, ok := ctx.Domain.(naming.Named); ok {
		return named.Name()
	}

	return ""
}

func makeEntry(ctx hooking.HookCtx) (TransferEntry, bool) {
	if ctx.Pos != blockmem.HookPosTransferDone {
		return TransferEntry{}, false
	}

	t := ctx.Item.(blockmem.Transfer)

	what := "read"
	if t.Write {
		what = "write"
	}

	return TransferEntry{
		ID:         id.Generate(),
		Location:   locationOf(ctx),
		What:       what,
		Address:    t.Address,
		ByteSize:   uint64(len(t.Data)),
		AcceptedAt: t.AcceptedAt,
		DataAckAt:  t.DataAckAt,
		DataAt:     t.DataAt,
	}, true
}

// A tracer is a hook that writes every completed transfer to a logger.
type tracer struct {
	logger *log.Logger
}

// NewTracer creates a hook that logs transfers, one per line.
func NewTracer(logger *log.Logger) hooking.Hook {
	return &tracer{logger: logger}
}

func (t *tracer) Func(ctx hooking.HookCtx) {
	e, ok := makeEntry(ctx)
	if !ok {
		return
	}

	t.logger.Printf("%s, %s, 0x%x, %d, %d, %d, %d\n",
		e.What, e.Location, e.Address, e.ByteSize,
		e.AcceptedAt, e.DataAckAt, e.DataAt)
}

// A dbTracer is a hook that records completed transfers with a data
// recorder.
type dbTracer struct {
	dataRecorder datarecording.DataRecorder
}

// NewDBTracer creates a hook that records transfers into TableName.
func NewDBTracer(dataRecorder datarecording.DataRecorder) hooking.Hook {
	dataRecorder.CreateTable(TableName, TransferEntry{})

	return &dbTracer{dataRecorder: dataRecorder}
}

func (t *dbTracer) Func(ctx hooking.HookCtx) {
	e, ok := makeEntry(ctx)
	if !ok {
		return
	}

	t.dataRecorder.InsertData(TableName, e)
}

// TransitionEntry is a controller state change as stored in the database.
// Cycle is the last cycle spent in From.
type TransitionEntry struct {
	Location string
	Cycle    uint64 `recording:"index"`
	From     string
	To       string `recording:"index"`
}

type stateDBTracer struct {
	dataRecorder datarecording.DataRecorder
}

// NewStateDBTracer creates a cache hook that records every state change into
// StateTableName.
func NewStateDBTracer(dataRecorder datarecording.DataRecorder) hooking.Hook {
	dataRecorder.CreateTable(StateTableName, TransitionEntry{})

	return &stateDBTracer{dataRecorder: dataRecorder}
}

func (t *stateDBTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != directmapped.HookPosStateChange {
		return
	}

	tr := ctx.Item.(directmapped.Transition)

	t.dataRecorder.InsertData(StateTableName, TransitionEntry{
		Location: locationOf(ctx),
		Cycle:    tr.Cycle,
		From:     tr.From.String(),
		To:       tr.To.String(),
	})
}
