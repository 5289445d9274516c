// Package main builds libarrowodbc, the C ABI of the bridge. Build it
// with -buildmode=c-shared.
//
// Every handle crossing the boundary is an opaque uintptr minted through
// runtime/cgo. Fallible functions return an error handle, 0 meaning
// success; the caller reads the message with arrow_odbc_error_message and
// returns the handle with arrow_odbc_error_free. Batches and schemas cross
// the boundary through the Arrow C data interface.
package main

/*
#include <stdint.h>
#include <stdlib.h>
#include <stddef.h>

struct ArrowSchema;
struct ArrowArray;
*/
import "C"

import (
	"context"
	"fmt"
	"runtime/cgo"
	"time"
	"unsafe"

	"github.com/apache/arrow/go/v13/arrow/cdata"

	// Registered database/sql drivers selectable through the connection
	// descriptor.
	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	arrowodbc "github.com/arrowodbc/arrow-odbc-go"
)

func main() {}

type ffiError struct {
	message *C.char
}

func errorHandle(err error) C.uintptr_t {
	if err == nil {
		return 0
	}

	return C.uintptr_t(cgo.NewHandle(&ffiError{message: C.CString(err.Error())}))
}

//export arrow_odbc_error_message
func arrow_odbc_error_message(err C.uintptr_t) *C.char {
	return cgo.Handle(err).Value().(*ffiError).message
}

//export arrow_odbc_error_free
func arrow_odbc_error_free(err C.uintptr_t) {
	h := cgo.Handle(err)
	C.free(unsafe.Pointer(h.Value().(*ffiError).message))
	h.Delete()
}

//export arrow_odbc_log_to_stderr
func arrow_odbc_log_to_stderr(verbosity C.int32_t) {
	arrowodbc.LogToStderr(int(verbosity))
}

//export arrow_odbc_enable_connection_pooling
func arrow_odbc_enable_connection_pooling() {
	arrowodbc.EnableConnectionPooling()
}

//export arrow_odbc_connection_make
func arrow_odbc_connection_make(
	descriptor, user, password *C.char,
	loginTimeoutSec, packetSize C.int32_t,
	connectionOut *C.uintptr_t,
) C.uintptr_t {
	var opts []arrowodbc.ConnectOption

	if user != nil {
		opts = append(opts, arrowodbc.WithUser(C.GoString(user)))
	}

	if password != nil {
		opts = append(opts, arrowodbc.WithPassword(C.GoString(password)))
	}

	if loginTimeoutSec > 0 {
		opts = append(opts, arrowodbc.WithLoginTimeout(time.Duration(loginTimeoutSec)*time.Second))
	}

	if packetSize > 0 {
		opts = append(opts, arrowodbc.WithPacketSize(int(packetSize)))
	}

	conn, err := arrowodbc.Connect(context.Background(), C.GoString(descriptor), opts...)
	if err != nil {
		return errorHandle(err)
	}

	*connectionOut = C.uintptr_t(cgo.NewHandle(conn))

	return 0
}

//export arrow_odbc_connection_free
func arrow_odbc_connection_free(connection C.uintptr_t) C.uintptr_t {
	h := cgo.Handle(connection)
	err := h.Value().(*arrowodbc.Connection).Release()
	h.Delete()

	return errorHandle(err)
}

//export arrow_odbc_parameter_string_make
func arrow_odbc_parameter_string_make(data *C.char, length C.size_t) C.uintptr_t {
	if data == nil {
		return C.uintptr_t(cgo.NewHandle(arrowodbc.NullParameter()))
	}

	value := C.GoStringN(data, C.int(length))

	return C.uintptr_t(cgo.NewHandle(arrowodbc.TextParameter(value)))
}

//export arrow_odbc_parameter_free
func arrow_odbc_parameter_free(parameter C.uintptr_t) {
	cgo.Handle(parameter).Delete()
}

// readerHandle ties a reader to the context its query runs under. The
// context must stay live until the reader is freed: canceling it closes
// the underlying cursor, so a query timeout doubles as a bound on the
// whole fetch window.
type readerHandle struct {
	reader *arrowodbc.BatchReader
	ctx    context.Context
	cancel context.CancelFunc
}

//export arrow_odbc_reader_make
func arrow_odbc_reader_make(
	connection C.uintptr_t,
	query *C.char,
	parameters *C.uintptr_t,
	parameterCount C.size_t,
	batchSize, maxBytesPerBatch, maxTextSize, maxBinarySize C.size_t,
	queryTimeoutSec C.int32_t,
	fallibleAllocations C.uint8_t,
	readerOut *C.uintptr_t,
) C.uintptr_t {
	ch := cgo.Handle(connection)
	conn := ch.Value().(*arrowodbc.Connection)

	// Ownership of the connection moves into the reader here, success or
	// not, matching the lifecycle of the connection handle on the other
	// side of the boundary.
	ch.Delete()

	var params []arrowodbc.Parameter

	if parameters != nil && parameterCount > 0 {
		handles := unsafe.Slice(parameters, int(parameterCount))
		// Parameter handles are consumed by construction whether it
		// succeeds or not; only parameters never passed to a query need
		// arrow_odbc_parameter_free.
		for _, ph := range handles {
			h := cgo.Handle(ph)
			params = append(params, h.Value().(arrowodbc.Parameter))
			h.Delete()
		}
	}

	opts := []arrowodbc.ReaderOption{arrowodbc.WithBatchSize(int(batchSize))}

	if maxBytesPerBatch > 0 {
		opts = append(opts, arrowodbc.WithMaxBytesPerBatch(uint64(maxBytesPerBatch)))
	}

	if maxTextSize > 0 {
		opts = append(opts, arrowodbc.WithMaxTextSize(int(maxTextSize)))
	}

	if maxBinarySize > 0 {
		opts = append(opts, arrowodbc.WithMaxBinarySize(int(maxBinarySize)))
	}

	if fallibleAllocations != 0 {
		opts = append(opts, arrowodbc.WithFallibleAllocations())
	}

	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if queryTimeoutSec > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(queryTimeoutSec)*time.Second)
	}

	reader, err := arrowodbc.NewBatchReader(ctx, conn, C.GoString(query), params, opts...)
	if err != nil {
		cancel()

		return errorHandle(err)
	}

	*readerOut = C.uintptr_t(cgo.NewHandle(&readerHandle{reader: reader, ctx: ctx, cancel: cancel}))

	return 0
}

//export arrow_odbc_reader_schema
func arrow_odbc_reader_schema(reader C.uintptr_t, schemaOut *C.struct_ArrowSchema) C.uintptr_t {
	rh := cgo.Handle(reader).Value().(*readerHandle)

	cdata.ExportArrowSchema(rh.reader.Schema(), (*cdata.CArrowSchema)(unsafe.Pointer(schemaOut)))

	return 0
}

//export arrow_odbc_reader_next
func arrow_odbc_reader_next(
	reader C.uintptr_t,
	arrayOut *C.struct_ArrowArray,
	schemaOut *C.struct_ArrowSchema,
	hasNextOut *C.uint8_t,
) C.uintptr_t {
	rh := cgo.Handle(reader).Value().(*readerHandle)

	rec, err := rh.reader.NextBatch(rh.ctx)
	if err != nil {
		return errorHandle(err)
	}

	if rec == nil {
		*hasNextOut = 0

		return 0
	}

	cdata.ExportArrowRecordBatch(rec,
		(*cdata.CArrowArray)(unsafe.Pointer(arrayOut)),
		(*cdata.CArrowSchema)(unsafe.Pointer(schemaOut)))
	rec.Release()

	*hasNextOut = 1

	return 0
}

//export arrow_odbc_reader_more_results
func arrow_odbc_reader_more_results(reader C.uintptr_t, hasMoreOut *C.uint8_t) C.uintptr_t {
	rh := cgo.Handle(reader).Value().(*readerHandle)

	more, err := rh.reader.MoreResults(rh.ctx)
	if err != nil {
		return errorHandle(err)
	}

	if more {
		*hasMoreOut = 1
	} else {
		*hasMoreOut = 0
	}

	return 0
}

//export arrow_odbc_reader_into_concurrent
func arrow_odbc_reader_into_concurrent(reader C.uintptr_t) C.uintptr_t {
	rh := cgo.Handle(reader).Value().(*readerHandle)

	return errorHandle(rh.reader.IntoConcurrent(rh.ctx))
}

//export arrow_odbc_reader_free
func arrow_odbc_reader_free(reader C.uintptr_t) C.uintptr_t {
	h := cgo.Handle(reader)
	rh := h.Value().(*readerHandle)
	err := rh.reader.Release()
	rh.cancel()
	h.Delete()

	return errorHandle(err)
}

//export arrow_odbc_writer_make
func arrow_odbc_writer_make(
	connection C.uintptr_t,
	table *C.char,
	chunkSize C.size_t,
	schema *C.struct_ArrowSchema,
	writerOut *C.uintptr_t,
) C.uintptr_t {
	ch := cgo.Handle(connection)
	conn := ch.Value().(*arrowodbc.Connection)
	ch.Delete()

	imported, err := cdata.ImportCArrowSchema((*cdata.CArrowSchema)(unsafe.Pointer(schema)))
	if err != nil {
		_ = conn.Release()

		return errorHandle(fmt.Errorf("import insertion schema: %w", err))
	}

	writer, err := arrowodbc.NewBatchWriter(context.Background(), conn, C.GoString(table), imported,
		arrowodbc.WithChunkSize(int(chunkSize)))
	if err != nil {
		return errorHandle(err)
	}

	*writerOut = C.uintptr_t(cgo.NewHandle(writer))

	return 0
}

//export arrow_odbc_writer_write_batch
func arrow_odbc_writer_write_batch(
	writer C.uintptr_t,
	array *C.struct_ArrowArray,
	schema *C.struct_ArrowSchema,
) C.uintptr_t {
	w := cgo.Handle(writer).Value().(*arrowodbc.BatchWriter)

	rec, err := cdata.ImportCRecordBatch(
		(*cdata.CArrowArray)(unsafe.Pointer(array)),
		(*cdata.CArrowSchema)(unsafe.Pointer(schema)))
	if err != nil {
		return errorHandle(fmt.Errorf("import batch: %w", err))
	}

	err = w.WriteBatch(context.Background(), rec)
	rec.Release()

	return errorHandle(err)
}

//export arrow_odbc_writer_flush
func arrow_odbc_writer_flush(writer C.uintptr_t) C.uintptr_t {
	w := cgo.Handle(writer).Value().(*arrowodbc.BatchWriter)

	return errorHandle(w.Flush(context.Background()))
}

//export arrow_odbc_writer_free
func arrow_odbc_writer_free(writer C.uintptr_t) C.uintptr_t {
	h := cgo.Handle(writer)
	err := h.Value().(*arrowodbc.BatchWriter).Release()
	h.Delete()

	return errorHandle(err)
}
