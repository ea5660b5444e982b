package timing

import "container/heap"

// eventQueue orders events by time. At the same time, primary events come
// before secondary events, and events of the same class keep the order in
// which they were scheduled. The engine guards the queue with its own lock.
type eventQueue struct {
	entries queueEntries
	nextSeq uint64
}

type queueEntry struct {
	evt       Event
	secondary bool
	seq       uint64
}

func newEventQueue() *eventQueue {
	return &eventQueue{}
}

func (q *eventQueue) push(evt Event) {
	heap.Push(&q.entries, queueEntry{
		evt:       evt,
		secondary: evt.IsSecondary(),
		seq:       q.nextSeq,
	})
	q.nextSeq++
}

func (q *eventQueue) pop() Event {
	return heap.Pop(&q.entries).(queueEntry).evt
}

func (q *eventQueue) len() int {
	return len(q.entries)
}

type queueEntries []queueEntry

func (h queueEntries) Len() int {
	return len(h)
}

func (h queueEntries) Less(i, j int) bool {
	a, b := h[i], h[j]

	if a.evt.Time() != b.evt.Time() {
		return a.evt.Time() < b.evt.Time()
	}

	if a.secondary != b.secondary {
		return !a.secondary
	}

	return a.seq < b.seq
}

func (h queueEntries) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *queueEntries) Push(x any) {
	*h = append(*h, x.(queueEntry))
}

func (h *queueEntries) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]

	return e
}
