package tracing

import (
	"sync"

	"github.com/sarchlab/dmcache/datarecording"
	"github.com/sarchlab/dmcache/sim/id"
	"github.com/sarchlab/dmcache/sim/timing"
	"github.com/tebeka/atexit"
)

type taskTableEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string `recording:"index"`
	Location  string
	StartTime float64
	EndTime   float64
}

// Milestone is a step reached by a traced task.
type Milestone struct {
	ID       string
	TaskID   string `recording:"index"`
	What     string
	Location string
	Time     float64
}

// DBTracer is a tracer that can store tasks into a database.
type DBTracer struct {
	lock       sync.Mutex
	timeTeller timing.TimeTeller
	backend    datarecording.DataRecorder

	startTime, endTime timing.VTimeInSec

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer that writes completed tasks into the
// "trace" table and their steps into the "trace_milestones" table.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable("trace", taskTableEntry{})
	dataRecorder.CreateTable("trace_milestones", Milestone{})

	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      dataRecorder,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() {
		_ = t.Terminate()
	})

	return t
}

// SetTimeRange limits tracing to tasks that overlap [startTime, endTime]. A
// zero bound is open.
func (t *DBTracer) SetTimeRange(startTime, endTime timing.VTimeInSec) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	startingTaskMustBeValid(task)

	task.StartTime = t.timeTeller.CurrentTime()
	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

func startingTaskMustBeValid(task Task) {
	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	if task.What == "" {
		panic("task what must be set")
	}

	if task.Location == "" {
		panic("task location must be set")
	}
}

// StepTask records a milestone of a traced task.
func (t *DBTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		t.backend.InsertData("trace_milestones", Milestone{
			ID:       id.Generate(),
			TaskID:   task.ID,
			What:     step.What,
			Location: originalTask.Location,
			Time:     float64(t.timeTeller.CurrentTime()),
		})
	}
}

// EndTask marks the end of a task and writes it to the database.
func (t *DBTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	originalTask.EndTime = t.timeTeller.CurrentTime()
	if t.startTime > 0 && originalTask.EndTime < t.startTime {
		return
	}

	t.backend.InsertData("trace", taskTableEntry{
		ID:        originalTask.ID,
		ParentID:  originalTask.ParentID,
		Kind:      originalTask.Kind,
		What:      originalTask.What,
		Location:  originalTask.Location,
		StartTime: float64(originalTask.StartTime),
		EndTime:   float64(originalTask.EndTime),
	})
}

// Terminate drops unfinished tasks and flushes the database.
func (t *DBTracer) Terminate() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.tracingTasks = make(map[string]Task)

	return t.backend.Flush()
}
