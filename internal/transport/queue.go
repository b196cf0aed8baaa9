package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kstaniek/go-socketcan/internal/can"
)

// Queue is a transmit mailbox with a fixed number of slots drained by a single
// worker goroutine (fan-in), plus a bounded receive ring fed by the backend RX
// loop. It implements both transport contracts:
//
//	q := NewQueue(ctx, slots, rxBuf, sendFn, hooks)
//	nb := q.NonBlocking() // can.NbCan
//	bl := q.Blocking()    // can.Can
//	q.Deliver(frame)      // from the device reader
//	q.Close()
//
// The worker always sends the highest priority pending frame; frames with
// equal identifiers leave in submission order. A frame being sent occupies its
// slot until send returns and is never replaced.
type Queue struct {
	mu       sync.Mutex
	pending  []*entry
	inflight *entry
	slots    int
	seq      uint64
	closed   bool
	changed  chan struct{} // closed and replaced on every state change

	rx      []can.Frame
	rxHead  int
	rxLen   int
	overrun bool

	kick   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	send   func(can.Frame) error
	hooks  Hooks
}

// Hooks customize Queue behavior. All hooks run outside the queue lock.
type Hooks struct {
	// OnError is called when send returns a non-nil error (frame not sent).
	OnError func(error)
	// OnAfter is called only after a successful send.
	OnAfter func(can.Frame)
	// OnEvict is called with a pending frame that was replaced by a higher
	// priority one.
	OnEvict func(can.Frame)
	// OnFull is called by SendFrame when no slot is free and nothing can be
	// replaced; its returned error is returned from SendFrame. If nil,
	// SendFrame returns can.ErrWouldBlock.
	OnFull func() error
	// OnOverrun is called when the receive ring is full and a frame is lost.
	OnOverrun func()
}

var (
	// ErrQueueClosed is returned by every operation after Close.
	ErrQueueClosed = errors.New("transport: queue closed")
	// ErrRxOverrun is wrapped by the QueueError reported after frames were
	// lost on the receive side.
	ErrRxOverrun = errors.New("transport: receive ring overrun")
)

// QueueError is a transport fault carrying its generic classification.
type QueueError struct {
	Op      string
	ErrKind can.ErrorKind
	Err     error
}

func (e *QueueError) Error() string       { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }
func (e *QueueError) Unwrap() error       { return e.Err }
func (e *QueueError) Kind() can.ErrorKind { return e.ErrKind }

var _ can.Error = (*QueueError)(nil)

type entry struct {
	f    can.Frame
	id   can.ID
	seq  uint64
	done chan error // set for blocking submissions; such entries are never evicted
}

// before reports whether e wins arbitration against o, breaking ties by age.
func (e *entry) before(o *entry) bool {
	if c := e.id.Compare(o.id); c != 0 {
		return c < 0
	}
	return e.seq < o.seq
}

// NewQueue starts the worker. slots and rxBuf are clamped to at least 1.
func NewQueue(parent context.Context, slots, rxBuf int, send func(can.Frame) error, hooks Hooks) *Queue {
	ctx, cancel := context.WithCancel(parent)
	q := &Queue{
		slots:   max(slots, 1),
		changed: make(chan struct{}),
		rx:      make([]can.Frame, max(rxBuf, 1)),
		kick:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		send:    send,
		hooks:   hooks,
	}
	q.wg.Add(1)
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for {
		if q.ctx.Err() != nil {
			return
		}
		e := q.next()
		if e == nil {
			select {
			case <-q.kick:
				continue
			case <-q.ctx.Done():
				return
			}
		}
		err := q.send(e.f)
		q.finish(e, err)
	}
}

// next moves the highest priority pending frame in flight.
func (q *Queue) next() *entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	best := 0
	for i, e := range q.pending[1:] {
		if e.before(q.pending[best]) {
			best = i + 1
		}
	}
	e := q.pending[best]
	q.pending = append(q.pending[:best], q.pending[best+1:]...)
	q.inflight = e
	return e
}

func (q *Queue) finish(e *entry, err error) {
	q.mu.Lock()
	q.inflight = nil
	q.broadcastLocked()
	q.mu.Unlock()
	if err != nil {
		if q.hooks.OnError != nil {
			q.hooks.OnError(err)
		}
	} else if q.hooks.OnAfter != nil {
		q.hooks.OnAfter(e.f)
	}
	if e.done != nil {
		e.done <- err
	}
}

func (q *Queue) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *Queue) wake() {
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

func (q *Queue) usedLocked() int {
	n := len(q.pending)
	if q.inflight != nil {
		n++
	}
	return n
}

// submit queues f. Non-blocking submissions may replace the lowest priority
// replaceable pending frame; blocking ones only take a free slot. On
// can.ErrWouldBlock the returned channel is closed at the next state change.
func (q *Queue) submit(f can.Frame, blocking bool) (e *entry, evicted can.Frame, wait <-chan struct{}, err error) {
	if f == nil {
		return nil, nil, nil, fmt.Errorf("transmit nil frame: %w", can.ErrEmptyFrame)
	}
	if can.IsErrorFrame(f) {
		return nil, nil, nil, fmt.Errorf("transmit error frame: %w", can.ErrWrongFrameType)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, nil, nil, ErrQueueClosed
	}
	e = &entry{f: f, id: f.ID(), seq: q.seq}
	if blocking {
		e.done = make(chan error, 1)
	}
	if q.usedLocked() < q.slots {
		q.seq++
		q.pending = append(q.pending, e)
		q.broadcastLocked()
		q.wake()
		return e, nil, nil, nil
	}
	if !blocking {
		victim := -1
		for i, p := range q.pending {
			if p.done != nil {
				continue
			}
			if victim < 0 || q.pending[victim].before(p) {
				victim = i
			}
		}
		if victim >= 0 && e.id.Less(q.pending[victim].id) {
			q.seq++
			evicted = q.pending[victim].f
			q.pending[victim] = e
			q.broadcastLocked()
			q.wake()
			return e, evicted, nil, nil
		}
	}
	return nil, nil, q.changed, can.ErrWouldBlock
}

// withdraw removes e if the worker has not picked it up yet.
func (q *Queue) withdraw(e *entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, p := range q.pending {
		if p == e {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			q.broadcastLocked()
			return true
		}
	}
	return false
}

// SendFrame is the fire-and-forget form of a non-blocking transmit used by
// frame sinks. Replaced frames are only reported through OnEvict.
func (q *Queue) SendFrame(f can.Frame) error {
	_, evicted, _, err := q.submit(f, false)
	if errors.Is(err, can.ErrWouldBlock) && q.hooks.OnFull != nil {
		return q.hooks.OnFull()
	}
	if evicted != nil && q.hooks.OnEvict != nil {
		q.hooks.OnEvict(evicted)
	}
	return err
}

// Deliver appends a received frame to the receive ring. When the ring is full
// the frame is dropped and the next Receive reports an overrun.
func (q *Queue) Deliver(f can.Frame) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	lost := false
	if q.rxLen == len(q.rx) {
		q.overrun = true
		lost = true
	} else {
		q.rx[(q.rxHead+q.rxLen)%len(q.rx)] = f
		q.rxLen++
	}
	q.broadcastLocked()
	q.mu.Unlock()
	if lost && q.hooks.OnOverrun != nil {
		q.hooks.OnOverrun()
	}
}

func (q *Queue) receive() (can.Frame, <-chan struct{}, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.overrun {
		q.overrun = false
		return nil, nil, &QueueError{Op: "receive", ErrKind: can.Overrun, Err: ErrRxOverrun}
	}
	if q.rxLen == 0 {
		if q.closed {
			return nil, nil, ErrQueueClosed
		}
		return nil, q.changed, can.ErrWouldBlock
	}
	f := q.rx[q.rxHead]
	q.rx[q.rxHead] = nil
	q.rxHead = (q.rxHead + 1) % len(q.rx)
	q.rxLen--
	return f, nil, nil
}

// Pending returns the number of occupied transmit slots, including the frame
// being sent.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.usedLocked()
}

// Close stops the worker and waits for the frame in flight. Frames still
// pending are discarded; blocked transmitters get ErrQueueClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := q.pending
	q.pending = nil
	q.broadcastLocked()
	q.mu.Unlock()
	q.cancel()
	q.wg.Wait()
	for _, e := range dropped {
		if e.done != nil {
			e.done <- ErrQueueClosed
		}
	}
}

// NonBlocking returns the can.NbCan view of q.
func (q *Queue) NonBlocking() can.NbCan { return nbQueue{q} }

// Blocking returns the can.Can view of q.
func (q *Queue) Blocking() can.Can { return blockingQueue{q} }

type nbQueue struct{ q *Queue }

func (n nbQueue) Transmit(f can.Frame) (can.Frame, error) {
	_, evicted, _, err := n.q.submit(f, false)
	if evicted != nil && n.q.hooks.OnEvict != nil {
		n.q.hooks.OnEvict(evicted)
	}
	return evicted, err
}

func (n nbQueue) Receive() (can.Frame, error) {
	f, _, err := n.q.receive()
	return f, err
}

type blockingQueue struct{ q *Queue }

// Transmit waits for a free slot and then for the frame to be sent. If ctx
// ends before the worker picked the frame up it is withdrawn.
func (b blockingQueue) Transmit(ctx context.Context, f can.Frame) error {
	for {
		e, _, wait, err := b.q.submit(f, true)
		switch {
		case err == nil:
			select {
			case err := <-e.done:
				return err
			case <-ctx.Done():
				if b.q.withdraw(e) {
					return ctx.Err()
				}
				return <-e.done
			}
		case errors.Is(err, can.ErrWouldBlock):
			select {
			case <-wait:
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			return err
		}
	}
}

func (b blockingQueue) Receive(ctx context.Context) (can.Frame, error) {
	for {
		f, wait, err := b.q.receive()
		if !errors.Is(err, can.ErrWouldBlock) {
			return f, err
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
