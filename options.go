package arrowodbc

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/memory"
)

const (
	// DefaultBatchSize is the row capacity of one fetched batch unless
	// overridden.
	DefaultBatchSize = 65535

	// DefaultChunkSize is the row count of one transmitted insert chunk
	// unless overridden.
	DefaultChunkSize = 1000
)

type readerOptions struct {
	batchSize        int
	maxBytesPerBatch uint64
	maxTextSize      int
	maxBinarySize    int
	fallible         bool
	schema           *arrow.Schema
	mem              memory.Allocator
}

func defaultReaderOptions() readerOptions {
	return readerOptions{
		batchSize: DefaultBatchSize,
		mem:       memory.DefaultAllocator,
	}
}

// ReaderOption adjusts batch reader construction.
type ReaderOption func(*readerOptions)

// WithBatchSize bounds the row count of one fetched batch.
func WithBatchSize(rows int) ReaderOption {
	return func(o *readerOptions) { o.batchSize = rows }
}

// WithMaxBytesPerBatch caps the transit storage of one batch in bytes. The
// effective row capacity shrinks below the batch size until the cap holds.
func WithMaxBytesPerBatch(bytes uint64) ReaderOption {
	return func(o *readerOptions) { o.maxBytesPerBatch = bytes }
}

// WithMaxTextSize bounds text slots. Values wider than the bound are cut
// at a character boundary instead of failing the batch.
func WithMaxTextSize(bytes int) ReaderOption {
	return func(o *readerOptions) { o.maxTextSize = bytes }
}

// WithMaxBinarySize bounds binary slots. Values wider than the bound are
// cut instead of failing the batch.
func WithMaxBinarySize(bytes int) ReaderOption {
	return func(o *readerOptions) { o.maxBinarySize = bytes }
}

// WithFallibleAllocations makes transit slot allocation failures surface
// as errors from construction and fetching instead of aborting.
func WithFallibleAllocations() ReaderOption {
	return func(o *readerOptions) { o.fallible = true }
}

// WithSchema overrides the mapped result schema. The field count must
// match the result set; per-field types replace the mapped ones.
func WithSchema(schema *arrow.Schema) ReaderOption {
	return func(o *readerOptions) { o.schema = schema }
}

// WithArrowAllocator selects the allocator backing the produced records.
func WithArrowAllocator(mem memory.Allocator) ReaderOption {
	return func(o *readerOptions) { o.mem = mem }
}

type writerOptions struct {
	chunkSize int
	fallible  bool
}

func defaultWriterOptions() writerOptions {
	return writerOptions{chunkSize: DefaultChunkSize}
}

// WriterOption adjusts batch writer construction.
type WriterOption func(*writerOptions)

// WithChunkSize bounds the row count transmitted per insert statement.
func WithChunkSize(rows int) WriterOption {
	return func(o *writerOptions) { o.chunkSize = rows }
}

// WithFallibleWriterAllocations makes staging slot allocation failures
// surface as errors instead of aborting.
func WithFallibleWriterAllocations() WriterOption {
	return func(o *writerOptions) { o.fallible = true }
}
