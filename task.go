package wyvern

import (
	"sync"
	"sync/atomic"
)

// scheduledTask is a task waiting in the queue.
type scheduledTask struct {
	// due is the scheduler tick the task runs on.
	due uint64

	actor *Actor
	task  Runnable
	meta  *SystemMeta

	cancelled atomic.Bool

	// index is the heap index.
	index int
}

// taskQueue is a min-heap of tasks keyed by due tick.
type taskQueue struct {
	mu   sync.Mutex
	heap []*scheduledTask
}

func newTaskQueue() *taskQueue {
	return &taskQueue{heap: make([]*scheduledTask, 0, 64)}
}

// compactHeap drops cancelled tasks and restores the heap property.
func (q *taskQueue) compactHeap() {
	write := 0
	for read := 0; read < len(q.heap); read++ {
		if !q.heap[read].cancelled.Load() {
			q.heap[write] = q.heap[read]
			q.heap[write].index = write
			write++
		}
	}
	for i := write; i < len(q.heap); i++ {
		q.heap[i] = nil
	}
	q.heap = q.heap[:write]

	for i := len(q.heap)/2 - 1; i >= 0; i-- {
		q.down(i, len(q.heap))
	}
}

// Push adds a task to the queue.
func (q *taskQueue) Push(task *scheduledTask) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) > 100 && len(q.heap)%100 == 0 {
		q.compactHeap()
	}
	task.index = len(q.heap)
	q.heap = append(q.heap, task)
	q.up(task.index)
}

// PopDue removes and returns every live task due at or before tick, in due
// order.
func (q *taskQueue) PopDue(tick uint64) []*scheduledTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*scheduledTask
	cancelled := 0
	for len(q.heap) > 0 && q.heap[0].due <= tick {
		task := q.pop()
		if task.cancelled.Load() {
			cancelled++
			continue
		}
		due = append(due, task)
	}
	if cancelled > 50 && len(q.heap) > 0 {
		q.compactHeap()
	}
	return due
}

// Clear drops every queued task.
func (q *taskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.heap {
		t.cancelled.Store(true)
	}
	clear(q.heap)
	q.heap = q.heap[:0]
}

func (q *taskQueue) pop() *scheduledTask {
	n := len(q.heap) - 1
	q.swap(0, n)
	q.down(0, n)
	task := q.heap[n]
	q.heap[n] = nil
	q.heap = q.heap[:n]
	task.index = -1
	return task
}

func (q *taskQueue) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if q.heap[i].due >= q.heap[parent].due {
			break
		}
		q.swap(i, parent)
		i = parent
	}
}

func (q *taskQueue) down(i, n int) {
	for {
		left := 2*i + 1
		if left >= n || left < 0 {
			break
		}
		j := left
		if right := left + 1; right < n && q.heap[right].due < q.heap[left].due {
			j = right
		}
		if q.heap[j].due >= q.heap[i].due {
			break
		}
		q.swap(i, j)
		i = j
	}
}

func (q *taskQueue) swap(i, j int) {
	q.heap[i], q.heap[j] = q.heap[j], q.heap[i]
	q.heap[i].index = i
	q.heap[j].index = j
}

// TaskHandle cancels a scheduled task.
type TaskHandle struct {
	task *scheduledTask
}

// Cancel cancels the task if it has not run yet.
func (h *TaskHandle) Cancel() {
	if h != nil && h.task != nil {
		h.task.cancelled.Store(true)
	}
}

// Schedule runs task for a after delayTicks ticks. A delay of zero or less
// runs it on the next tick. The task is skipped if the actor no longer passes
// the task's With/Without filters, and it is cancelled when the actor closes.
func Schedule(a *Actor, task Runnable, delayTicks int) *TaskHandle {
	if a == nil || a.closed.Load() || a.manager == nil || task == nil {
		return nil
	}
	m := a.manager

	meta, err := m.taskMeta(task)
	if err != nil {
		m.log.Error("wyvern: schedule task", "actor", a.id, "err", err)
		return nil
	}

	scheduled := &scheduledTask{
		due:   m.TickNumber() + uint64(max(delayTicks, 0)),
		actor: a,
		task:  task,
		meta:  meta,
	}
	a.addTask(scheduled)
	m.taskQueue.Push(scheduled)
	return &TaskHandle{task: scheduled}
}

// Dispatch runs task for a on the next tick.
func Dispatch(a *Actor, task Runnable) *TaskHandle {
	return Schedule(a, task, 0)
}

// RepeatingTaskHandle cancels a repeating task.
type RepeatingTaskHandle struct {
	cancelled atomic.Bool
}

// Cancel prevents further runs.
func (h *RepeatingTaskHandle) Cancel() {
	if h != nil {
		h.cancelled.Store(true)
	}
}

// repeatingTask reschedules itself after every run.
type repeatingTask struct {
	inner     Runnable
	every     int
	remaining int // -1 repeats until cancelled
	handle    *RepeatingTaskHandle
}

func (r *repeatingTask) Run(c *Context) {
	if r.handle.cancelled.Load() {
		return
	}
	r.inner.Run(c)

	if r.handle.cancelled.Load() {
		return
	}
	if r.remaining > 0 {
		r.remaining--
	}
	if r.remaining == 0 {
		return
	}
	Schedule(c.Actor, r, r.every)
}

// ScheduleRepeating runs task for a every n ticks. times limits the number of
// runs; -1 repeats until the handle is cancelled or the actor closes.
func ScheduleRepeating(a *Actor, task Runnable, every, times int) *RepeatingTaskHandle {
	if times == 0 || task == nil {
		return nil
	}
	handle := &RepeatingTaskHandle{}
	r := &repeatingTask{
		inner:     task,
		every:     max(every, 1),
		remaining: times,
		handle:    handle,
	}
	if Schedule(a, r, r.every) == nil {
		return nil
	}
	return handle
}
