package observe

import (
	"context"
	"sync"

	"rowwatch/pkg/rowdiff"
)

// Reader is the read contract the coordinator consumes: fetch the observed
// query's full result set against a transactionally consistent point-in-time
// view. Implementations may block while acquiring the read snapshot.
type Reader interface {
	ReadRows(ctx context.Context) ([]rowdiff.Row, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context) ([]rowdiff.Row, error)

// ReadRows implements Reader.
func (f ReaderFunc) ReadRows(ctx context.Context) ([]rowdiff.Row, error) { return f(ctx) }

// Event is one delivery to the consumer: the fresh snapshot, its diff against
// the previous snapshot, and the sequence number of the commit that triggered
// the fetch (0 for the initial fetch on subscription).
type Event struct {
	Seq  uint64
	Rows []rowdiff.Row
	Diff rowdiff.DiffResult
}

// Observation is a running change-driven fetch loop. It emits one Event
// immediately on creation (the Initial snapshot), then one per relevant
// committed transaction, in commit order, with at most one fetch in flight.
// Notifications arriving during a fetch coalesce to a single follow-up fetch
// reflecting the latest commit only.
//
// A fetch error terminates the stream: the events channel closes and Err
// reports the cause. Retrying is deliberately a consumer concern.
type Observation struct {
	reader Reader
	sub    *Subscription
	cancel context.CancelFunc

	events chan Event
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Observe subscribes to hub commits overlapping region and starts the fetch
// loop. Cancelling ctx or calling Cancel stops the observation: no further
// events are emitted and an in-flight fetch completing afterwards is
// discarded.
func Observe(ctx context.Context, hub *Hub, region Region, reader Reader) *Observation {
	ctx, cancel := context.WithCancel(ctx)
	o := &Observation{
		reader: reader,
		sub:    hub.Subscribe(region),
		cancel: cancel,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
	go o.run(ctx)
	return o
}

// Events returns the delivery channel. It closes when the observation ends,
// whether by cancellation or by a terminal fetch error.
func (o *Observation) Events() <-chan Event { return o.events }

// Done is closed once the observation has fully stopped.
func (o *Observation) Done() <-chan struct{} { return o.done }

// Cancel stops the observation and releases the hub subscription. Safe to
// call more than once.
func (o *Observation) Cancel() { o.cancel() }

// Err returns the terminal fetch error, or nil after cancellation. Only
// meaningful once Done is closed.
func (o *Observation) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func (o *Observation) run(ctx context.Context) {
	defer close(o.done)
	defer close(o.events)
	defer o.sub.Close()

	scanner := rowdiff.NewScanner(nil)

	// Initial fetch against current state, before any notification.
	scanner, ok := o.fetchAndEmit(ctx, scanner, 0)
	if !ok {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-o.sub.C():
			scanner, ok = o.fetchAndEmit(ctx, scanner, c.Seq)
			if !ok {
				return
			}
		}
	}
}

// fetchAndEmit runs one fetch/diff/emit step. It returns the successor
// scanner and false when the observation must stop.
func (o *Observation) fetchAndEmit(ctx context.Context, scanner rowdiff.Scanner, seq uint64) (rowdiff.Scanner, bool) {
	rows, err := o.reader.ReadRows(ctx)
	if ctx.Err() != nil {
		// Cancelled while fetching: discard the result without emitting.
		return scanner, false
	}
	if err != nil {
		o.fail(err)
		return scanner, false
	}

	next, res := scanner.Diffed(rows)
	select {
	case o.events <- Event{Seq: seq, Rows: rows, Diff: res}:
		return next, true
	case <-ctx.Done():
		return scanner, false
	}
}

func (o *Observation) fail(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

// Records decodes an event's rows into lazily materialized typed records.
// Decoding happens on first Materialize of each record, not here.
func Records[T any](e Event, dec rowdiff.Decoder[T]) []*rowdiff.Record[T] {
	recs := make([]*rowdiff.Record[T], len(e.Rows))
	for i, row := range e.Rows {
		recs[i] = rowdiff.NewRecord(row, dec)
	}
	return recs
}
