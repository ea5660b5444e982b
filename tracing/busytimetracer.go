package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/dmcache/sim/timing"
)

type interval struct {
	start, end timing.VTimeInSec
}

// BusyTimeTracer traces the time that a domain is processing a kind of task.
// If the task processing time overlaps, this tracer only consider one instance
// of the overlapped time.
type BusyTimeTracer struct {
	timeTeller timing.TimeTeller
	filter     TaskFilter

	lock          sync.Mutex
	inflightTasks map[string]timing.VTimeInSec
	completed     []interval
}

// NewBusyTimeTracer creates a new BusyTimeTracer
func NewBusyTimeTracer(
	timeTeller timing.TimeTeller,
	filter TaskFilter,
) *BusyTimeTracer {
	return &BusyTimeTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]timing.VTimeInSec),
	}
}

// BusyTime returns the total time covered by at least one completed task.
func (t *BusyTimeTracer) BusyTime() timing.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.merge()

	busy := timing.VTimeInSec(0)
	for _, i := range t.completed {
		busy += i.end - i.start
	}

	return busy
}

// TerminateAllTasks will mark all the in-flight tasks as completed at now.
func (t *BusyTimeTracer) TerminateAllTasks(now timing.VTimeInSec) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for id, start := range t.inflightTasks {
		t.completed = append(t.completed, interval{start: start, end: now})
		delete(t.inflightTasks, id)
	}
}

// StartTask records the task start time
func (t *BusyTimeTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[task.ID] = task.StartTime
	t.lock.Unlock()
}

// StepTask does nothing
func (t *BusyTimeTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the end of the task
func (t *BusyTimeTracer) EndTask(task Task) {
	task.EndTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	delete(t.inflightTasks, task.ID)
	t.completed = append(t.completed, interval{start: start, end: task.EndTime})
}

// merge collapses the completed intervals into disjoint ones.
func (t *BusyTimeTracer) merge() {
	if len(t.completed) < 2 {
		return
	}

	sort.Slice(t.completed, func(i, j int) bool {
		return t.completed[i].start < t.completed[j].start
	})

	merged := t.completed[:1]
	for _, i := range t.completed[1:] {
		last := &merged[len(merged)-1]
		if i.start <= last.end {
			if i.end > last.end {
				last.end = i.end
			}

			continue
		}

		merged = append(merged, i)
	}

	t.completed = merged
}
