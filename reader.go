package arrowodbc

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/arrow/go/v13/arrow"
	"go.uber.org/zap"

	"github.com/arrowodbc/arrow-odbc-go/driver"
	"github.com/arrowodbc/arrow-odbc-go/internal/mapping"
	"github.com/arrowodbc/arrow-odbc-go/internal/transit"
)

type readerState int

const (
	readerActive readerState = iota
	readerNoResultSet
	readerExhausted
	readerReleased
)

// BatchReader executes one query and yields its result set as a sequence
// of Arrow records. Readers are single-owner: all methods must be called
// from one goroutine, and Release must be called exactly once.
type BatchReader struct {
	drv     driver.Connection
	rows    driver.Rows
	descs   []mapping.Descriptor
	schema  *arrow.Schema
	buf     *transit.Buffer
	opts    readerOptions
	state   readerState
	maxDiag int

	fetcher *concurrentFetcher
}

// NewBatchReader executes query on the connection and binds transit
// buffers for its first result set. The connection is consumed either way:
// on failure it is closed before the error returns.
func NewBatchReader(ctx context.Context, conn *Connection, query string, params []Parameter, opts ...ReaderOption) (*BatchReader, error) {
	drv, err := conn.take()
	if err != nil {
		return nil, err
	}

	options := defaultReaderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	maxDiag := drv.Capabilities().MaxDiagnostics

	rows, err := drv.Query(ctx, query, parameterArgs(params)...)
	if err != nil {
		_ = drv.Close()

		return nil, boundDiagnostics(fmt.Errorf("execute query: %w", err), maxDiag)
	}

	r := &BatchReader{drv: drv, rows: rows, opts: options, maxDiag: maxDiag}

	if err := r.bindResultSet(); err != nil {
		_ = rows.Close()
		_ = drv.Close()

		return nil, r.diag(err)
	}

	return r, nil
}

// diag applies the session's diagnostic record bound to errors leaving
// the reader.
func (r *BatchReader) diag(err error) error { return boundDiagnostics(err, r.maxDiag) }

// bindResultSet sizes the transit buffer for the current result set. A
// result set with no columns leaves the reader bound to nothing: batches
// are over before they begin, but the handle stays usable for MoreResults
// and Release.
func (r *BatchReader) bindResultSet() error {
	descs, err := r.rows.Columns()
	if err != nil {
		return fmt.Errorf("describe result set: %w", err)
	}

	if len(descs) == 0 {
		r.descs = nil
		r.schema = arrow.NewSchema(nil, nil)
		r.buf = nil
		r.state = readerNoResultSet

		return nil
	}

	if wide := r.drv.Capabilities().WideEncoding; wide {
		for i := range descs {
			descs[i].Wide = true
		}
	}

	schema := mapping.Schema(descs)

	if r.opts.schema != nil {
		if len(r.opts.schema.Fields()) != len(descs) {
			return fmt.Errorf(
				"schema override has %d fields but the result set has %d columns: %w",
				len(r.opts.schema.Fields()), len(descs), ErrInvariantViolation)
		}

		schema = r.opts.schema
	}

	buf, err := transit.NewBuffer(schema, descs, transit.Options{
		BatchSize:        r.opts.batchSize,
		MaxBytesPerBatch: r.opts.maxBytesPerBatch,
		MaxTextSize:      r.opts.maxTextSize,
		MaxBinarySize:    r.opts.maxBinarySize,
		Fallible:         r.opts.fallible,
	})
	if err != nil {
		return fmt.Errorf("bind transit buffers: %w", err)
	}

	r.descs = descs
	r.schema = schema
	r.buf = buf
	r.state = readerActive

	log().Debug("result set bound",
		zap.Int("columns", len(descs)),
		zap.Int("batch_capacity", buf.Capacity()))

	return nil
}

// Schema reports the Arrow schema of the current result set. Empty when
// the statement produced no result set.
func (r *BatchReader) Schema() *arrow.Schema {
	r.mustUsable()

	return r.schema
}

// NextBatch fetches up to one batch worth of rows and returns them as a
// record the caller owns. A nil record means the result set is exhausted;
// further calls keep returning nil without error.
func (r *BatchReader) NextBatch(ctx context.Context) (arrow.Record, error) {
	r.mustUsable()

	switch r.state {
	case readerNoResultSet, readerExhausted:
		return nil, nil
	}

	if r.fetcher != nil {
		res, ok := <-r.fetcher.out
		if !ok {
			r.state = readerExhausted

			return nil, nil
		}

		if res.err != nil {
			return nil, r.diag(res.err)
		}

		return res.rec, nil
	}

	rec, more, err := fetchBatch(ctx, r.rows, r.buf, r.opts, r.schema)
	if err != nil {
		return nil, r.diag(err)
	}

	if !more {
		r.state = readerExhausted
	}

	return rec, nil
}

// fetchBatch drains rows into the transit buffer until the buffer is full
// or the cursor ends, then converts the staged rows into one record. A nil
// record with more == false reports a cleanly exhausted cursor.
func fetchBatch(ctx context.Context, rows driver.Rows, buf *transit.Buffer, opts readerOptions, schema *arrow.Schema) (arrow.Record, bool, error) {
	more := true

	for !buf.Full() {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, false, fmt.Errorf("fetch row: %w", err)
			}

			more = false

			break
		}

		if err := rows.Scan(buf.Acceptors()...); err != nil {
			return nil, false, fmt.Errorf("scan row: %w", err)
		}

		if err := buf.CommitRow(); err != nil {
			return nil, false, err
		}
	}

	if buf.Rows() == 0 {
		return nil, more, nil
	}

	rec, err := buf.Drain(opts.mem, schema)
	if err != nil {
		return nil, false, err
	}

	return rec, more, nil
}

// MoreResults advances the reader to the next result set of the executed
// statement, rebinding transit buffers to its shape. It reports whether
// another result set exists. Any concurrent fetching stops first.
func (r *BatchReader) MoreResults(ctx context.Context) (bool, error) {
	r.mustUsable()

	r.stopFetcher()

	if r.buf != nil {
		r.buf.Release()
		r.buf = nil
	}

	// Nothing is bound until the rebind below succeeds.
	r.state = readerNoResultSet

	if !r.rows.NextResultSet() {
		if err := r.rows.Err(); err != nil {
			return false, r.diag(fmt.Errorf("advance result set: %w", err))
		}

		r.descs = nil
		r.schema = arrow.NewSchema(nil, nil)
		r.state = readerNoResultSet

		return false, nil
	}

	if err := r.bindResultSet(); err != nil {
		return false, r.diag(err)
	}

	return true, nil
}

type fetchResult struct {
	rec arrow.Record
	err error
}

type concurrentFetcher struct {
	out    chan fetchResult
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// IntoConcurrent moves fetching onto a background goroutine. The goroutine
// stays exactly one batch ahead: it blocks handing over a finished batch
// until NextBatch claims it, so order is preserved and at most two batches
// exist at a time. A no-op on an exhausted reader.
func (r *BatchReader) IntoConcurrent(ctx context.Context) error {
	r.mustUsable()

	if r.fetcher != nil || r.state != readerActive {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)

	f := &concurrentFetcher{
		out:    make(chan fetchResult),
		cancel: cancel,
	}

	rows, buf, opts, schema := r.rows, r.buf, r.opts, r.schema

	f.wg.Add(1)

	go func() {
		defer f.wg.Done()
		defer close(f.out)

		for {
			rec, more, err := fetchBatch(ctx, rows, buf, opts, schema)

			if rec == nil && err == nil {
				return
			}

			select {
			case f.out <- fetchResult{rec: rec, err: err}:
			case <-ctx.Done():
				if rec != nil {
					rec.Release()
				}

				return
			}

			if err != nil || !more {
				return
			}
		}
	}()

	r.fetcher = f

	log().Debug("reader switched to concurrent fetching")

	return nil
}

// stopFetcher tears down the background fetcher, dropping any batch it is
// holding, and waits for it to exit.
func (r *BatchReader) stopFetcher() {
	if r.fetcher == nil {
		return
	}

	r.fetcher.cancel()

	for res := range r.fetcher.out {
		if res.rec != nil {
			res.rec.Release()
		}
	}

	r.fetcher.wg.Wait()
	r.fetcher = nil
}

// Release tears down the reader: background fetching first, then the
// cursor, the transit buffer and the session. Exactly one call; the
// reader must not be used afterwards.
func (r *BatchReader) Release() error {
	r.mustUsable()

	r.state = readerReleased

	r.stopFetcher()

	var first error

	if r.rows != nil {
		if err := r.rows.Close(); err != nil {
			first = fmt.Errorf("close cursor: %w", err)
		}
	}

	if r.buf != nil {
		r.buf.Release()
		r.buf = nil
	}

	if err := r.drv.Close(); err != nil && first == nil {
		first = fmt.Errorf("close session: %w", err)
	}

	return r.diag(first)
}

func (r *BatchReader) mustUsable() {
	if r.state == readerReleased {
		panic("use of released batch reader")
	}
}
