// internal/queue/queue.go
package queue

import (
	"sync"

	"github.com/FairForge/intelvault/internal/catalog"
)

// Task is the unit of work carried by a TaskQueue: either a bare artifact
// identifier (pre-resolution) or a resolved catalog object. Consumers branch
// on which form they received.
type Task struct {
	ID     string
	Object *catalog.Object
}

// TaskFor wraps a resolved object.
func TaskFor(obj *catalog.Object) Task {
	return Task{Object: obj}
}

// TaskForID wraps a bare identifier.
func TaskForID(id string) Task {
	return Task{ID: id}
}

// Identifier returns the artifact identifier regardless of task form.
func (t Task) Identifier() string {
	if t.Object != nil {
		return t.Object.Identifier()
	}
	return t.ID
}

// TaskQueue is an unbounded FIFO work queue with completion tracking. Every
// task handed out by Claim must be balanced by exactly one Done call; Join
// blocks until the put/done counter reaches zero.
type TaskQueue struct {
	name    string
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []Task
	pending int // puts minus dones
}

// New creates a named task queue.
func New(name string) *TaskQueue {
	q := &TaskQueue{name: name}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Name returns the queue name used in heartbeat output and metrics labels.
func (q *TaskQueue) Name() string {
	return q.name
}

// Put appends a task. It never blocks the producer.
func (q *TaskQueue) Put(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	q.pending++
}

// Claim atomically takes the next task. The second return value is false when
// no work remains; workers terminate on it. Emptiness check and removal happen
// under one lock acquisition, so two racing workers can never both observe a
// single remaining task.
func (q *TaskQueue) Claim() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return Task{}, false
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, true
}

// Done marks one previously claimed task as completed and wakes Join waiters
// once the counter reaches zero.
func (q *TaskQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending > 0 {
		q.pending--
	}
	if q.pending == 0 {
		q.cond.Broadcast()
	}
}

// Join blocks the caller until every put task has been marked done.
func (q *TaskQueue) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.pending > 0 {
		q.cond.Wait()
	}
}

// Drain claims and completes everything still queued, returning how many
// tasks were discarded. Used on fatal aborts so Join does not deadlock on
// items no worker will ever process.
func (q *TaskQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.tasks)
	q.tasks = nil
	q.pending -= n
	if q.pending <= 0 {
		q.pending = 0
		q.cond.Broadcast()
	}
	return n
}

// Len reports how many tasks are queued but not yet claimed.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Pending reports puts minus dones, i.e. queued plus in-flight tasks.
func (q *TaskQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Set bundles the three pipeline queues. Queues are created once per
// pipeline invocation and not reused across invocations.
type Set struct {
	Info     *TaskQueue
	Samples  *TaskQueue
	Behavior *TaskQueue
}

// NewSet creates the three queues of a pipeline invocation.
func NewSet() *Set {
	return &Set{
		Info:     New("info"),
		Samples:  New("samples"),
		Behavior: New("behavior"),
	}
}
