package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"rowwatch/pkg/observe"
)

// txKey keys the active transaction inside a context.Context.
type txKey struct{}

// Querier unifies query execution over a database connection and a
// transaction, so code runs unchanged inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
	_ Querier = (*manualTx)(nil)
)

// writeRequest is one queued write operation.
type writeRequest struct {
	fn       func(context.Context) error
	resultCh chan error
	ctx      context.Context
}

// RetryConfig controls SQLITE_BUSY retries.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// TxRunner executes callbacks inside transactions: commit on nil, rollback on
// error. Write transactions are serialized (SQLite allows one writer anyway)
// and, when a Hub is attached, publish one commit notification per durable
// COMMIT — never for rollbacks, never before COMMIT returns. Notification
// order equals commit order because sequence assignment and publication
// happen under the same writer serialization.
type TxRunner struct {
	DB          *sql.DB
	TxLockMode  TxLockMode
	RetryConfig *RetryConfig

	hub *observe.Hub

	writeMu sync.Mutex
	seq     uint64 // guarded by writeMu

	writeQueue     chan writeRequest
	writeQueueDone chan struct{}
	enableQueue    bool
}

// NewTxRunner creates a TxRunner with default options.
func NewTxRunner(db *sql.DB) *TxRunner {
	return NewTxRunnerWithOptions(db, DefaultDBOptions())
}

// NewTxRunnerWithOptions creates a TxRunner with explicit options.
func NewTxRunnerWithOptions(db *sql.DB, opts DBOptions) *TxRunner {
	runner := &TxRunner{
		DB:         db,
		TxLockMode: opts.TxLockMode,
		RetryConfig: &RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Multiplier:   2.0,
		},
		enableQueue: opts.EnableWriteQueue,
	}
	if opts.EnableWriteQueue {
		runner.writeQueue = make(chan writeRequest, opts.WriteQueueSize)
		runner.writeQueueDone = make(chan struct{})
		go runner.runWriteQueue()
	}
	return runner
}

// WithHub attaches the commit notification hub and returns the runner for
// chaining. Must be called before the first WithinWriteTx.
func (r *TxRunner) WithHub(h *observe.Hub) *TxRunner {
	r.hub = h
	return r
}

// Close shuts down the write queue if one is running.
func (r *TxRunner) Close() error {
	if r.enableQueue && r.writeQueue != nil {
		close(r.writeQueue)
		<-r.writeQueueDone
	}
	return nil
}

// WithinTx runs fn inside a transaction using the runner's lock mode. The
// transaction is available inside fn via GetQuerier. No commit notification
// is published; use WithinWriteTx for observed writes.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.executeWithRetry(ctx, r.TxLockMode, fn)
}

// WithinReadTx runs fn inside a DEFERRED transaction. Under WAL this pins a
// consistent snapshot for the duration of fn: concurrent commits are not
// visible, which is what observation fetches require.
func (r *TxRunner) WithinReadTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.executeWithRetry(ctx, TxLockDeferred, fn)
}

// WithinWriteTx runs fn inside an IMMEDIATE transaction, serialized against
// other writes, and on successful commit publishes a notification carrying
// writes (the touched tables/columns) to the attached hub. Multiple
// statements inside fn coalesce into the single notification of their
// enclosing transaction.
func (r *TxRunner) WithinWriteTx(ctx context.Context, writes observe.Region, fn func(ctx context.Context) error) error {
	job := func(jobCtx context.Context) error {
		return r.runWrite(jobCtx, writes, fn)
	}
	if r.enableQueue {
		return r.enqueueWrite(ctx, job)
	}
	return job(ctx)
}

// runWrite executes one write transaction and publishes its commit.
func (r *TxRunner) runWrite(ctx context.Context, writes observe.Region, fn func(ctx context.Context) error) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.executeWithRetry(ctx, TxLockImmediate, fn); err != nil {
		return err
	}
	r.seq++
	if r.hub != nil {
		r.hub.Publish(observe.Commit{Seq: r.seq, Writes: writes})
	}
	return nil
}

// SqlTx extracts the active *sql.Tx from the context, if any. Manual
// IMMEDIATE/EXCLUSIVE transactions have no *sql.Tx and report false.
func SqlTx(ctx context.Context) (*sql.Tx, bool) {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx, true
	}
	return nil, false
}

// GetTxQuerier extracts any active transaction from the context as a Querier.
func GetTxQuerier(ctx context.Context) (Querier, bool) {
	if querier, ok := ctx.Value(txKey{}).(Querier); ok {
		return querier, true
	}
	return nil, false
}

// GetQuerier returns the active transaction from the context, or the plain
// database connection when no transaction is active.
func (r *TxRunner) GetQuerier(ctx context.Context) Querier {
	if querier, ok := GetTxQuerier(ctx); ok {
		return querier
	}
	return r.DB
}

// runWriteQueue drains the write queue in a dedicated goroutine.
func (r *TxRunner) runWriteQueue() {
	defer close(r.writeQueueDone)
	for req := range r.writeQueue {
		select {
		case <-req.ctx.Done():
			req.resultCh <- req.ctx.Err()
		default:
			req.resultCh <- req.fn(req.ctx)
		}
		close(req.resultCh)
	}
}

func (r *TxRunner) enqueueWrite(ctx context.Context, fn func(context.Context) error) error {
	req := writeRequest{fn: fn, resultCh: make(chan error, 1), ctx: ctx}
	select {
	case r.writeQueue <- req:
		select {
		case err := <-req.resultCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// executeWithRetry runs one transaction attempt, retrying on SQLITE_BUSY with
// exponential backoff.
func (r *TxRunner) executeWithRetry(ctx context.Context, mode TxLockMode, fn func(context.Context) error) error {
	delay := r.RetryConfig.InitialDelay

	for attempt := 1; attempt <= r.RetryConfig.MaxAttempts; attempt++ {
		err := r.executeTx(ctx, mode, fn)
		if err == nil || attempt == r.RetryConfig.MaxAttempts {
			return err
		}
		if !isSQLiteBusyError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * r.RetryConfig.Multiplier)
			if delay > r.RetryConfig.MaxDelay {
				delay = r.RetryConfig.MaxDelay
			}
		}
	}
	return fmt.Errorf("max retry attempts exceeded")
}

// executeTx runs a single transaction attempt.
func (r *TxRunner) executeTx(ctx context.Context, mode TxLockMode, fn func(context.Context) error) error {
	if _, existingTx := GetTxQuerier(ctx); existingTx {
		return fmt.Errorf("nested transactions are not supported by SQLite")
	}

	// IMMEDIATE/EXCLUSIVE need a manual BEGIN; database/sql only does DEFERRED.
	if mode != TxLockDeferred {
		return r.executeTxWithLockMode(ctx, mode, fn)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	ctx = context.WithValue(ctx, txKey{}, tx)
	if err := fn(ctx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// executeTxWithLockMode runs a transaction with an explicit BEGIN mode. All
// statements must go through a single connection so the manual BEGIN/COMMIT
// and the statements share one transaction.
func (r *TxRunner) executeTxWithLockMode(ctx context.Context, mode TxLockMode, fn func(context.Context) error) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("BEGIN %s", mode)); err != nil {
		return err
	}

	wrapper := &manualTx{conn: conn}
	ctx = context.WithValue(ctx, txKey{}, wrapper)

	if err := fn(ctx); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	_, err = conn.ExecContext(ctx, "COMMIT")
	return err
}

// manualTx routes statements over the dedicated connection that holds a
// manually begun IMMEDIATE/EXCLUSIVE transaction.
type manualTx struct {
	conn *sql.Conn
}

func (m *manualTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return m.conn.ExecContext(ctx, query, args...)
}

func (m *manualTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return m.conn.QueryContext(ctx, query, args...)
}

func (m *manualTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return m.conn.QueryRowContext(ctx, query, args...)
}

func (m *manualTx) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return m.conn.PrepareContext(ctx, query)
}

func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database table is locked")
}
