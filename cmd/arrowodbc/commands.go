package main

import (
	"fmt"
	"os"
	"time"

	"github.com/apache/arrow/go/v13/arrow/ipc"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/spf13/cobra"

	// Registered database/sql drivers selectable through the connection
	// descriptor.
	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	arrowodbc "github.com/arrowodbc/arrow-odbc-go"
)

type rootFlags struct {
	descriptor   string
	user         string
	password     string
	loginTimeout time.Duration
	verbosity    int
	pooling      bool
}

func newRootCommand() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:          "arrowodbc",
		Short:        "Move data between SQL databases and Arrow IPC files",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			arrowodbc.LogToStderr(flags.verbosity)

			if flags.pooling {
				arrowodbc.EnableConnectionPooling()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.descriptor, "connection", "c", "",
		"connection descriptor, e.g. Driver=pgx;DSN=postgres://localhost/db")
	cmd.PersistentFlags().StringVar(&flags.user, "user", "", "override the descriptor's UID")
	cmd.PersistentFlags().StringVar(&flags.password, "password", "", "override the descriptor's PWD")
	cmd.PersistentFlags().DurationVar(&flags.loginTimeout, "login-timeout", 0, "bound on connection establishment")
	cmd.PersistentFlags().IntVarP(&flags.verbosity, "verbosity", "v", 0, "log verbosity, 0 (errors) to 4 (debug)")
	cmd.PersistentFlags().BoolVar(&flags.pooling, "pooling", false, "enable driver-side connection pooling")

	_ = cmd.MarkPersistentFlagRequired("connection")

	cmd.AddCommand(newQueryCommand(&flags))
	cmd.AddCommand(newInsertCommand(&flags))

	return cmd
}

func connect(cmd *cobra.Command, flags *rootFlags) (*arrowodbc.Connection, error) {
	var opts []arrowodbc.ConnectOption

	if flags.user != "" {
		opts = append(opts, arrowodbc.WithUser(flags.user))
	}

	if flags.password != "" {
		opts = append(opts, arrowodbc.WithPassword(flags.password))
	}

	if flags.loginTimeout > 0 {
		opts = append(opts, arrowodbc.WithLoginTimeout(flags.loginTimeout))
	}

	return arrowodbc.Connect(cmd.Context(), flags.descriptor, opts...)
}

func newQueryCommand(flags *rootFlags) *cobra.Command {
	var (
		output      string
		batchSize   int
		maxTextSize int
		concurrent  bool
	)

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Execute a query and write its result set to an Arrow IPC file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd, flags)
			if err != nil {
				return err
			}

			readerOpts := []arrowodbc.ReaderOption{arrowodbc.WithBatchSize(batchSize)}
			if maxTextSize > 0 {
				readerOpts = append(readerOpts, arrowodbc.WithMaxTextSize(maxTextSize))
			}

			reader, err := arrowodbc.NewBatchReader(cmd.Context(), conn, args[0], nil, readerOpts...)
			if err != nil {
				return err
			}

			defer func() { _ = reader.Release() }()

			if concurrent {
				if err := reader.IntoConcurrent(cmd.Context()); err != nil {
					return err
				}
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}

			defer f.Close()

			w := ipc.NewWriter(f, ipc.WithSchema(reader.Schema()), ipc.WithAllocator(memory.DefaultAllocator))

			var rows int64

			for {
				rec, err := reader.NextBatch(cmd.Context())
				if err != nil {
					return err
				}

				if rec == nil {
					break
				}

				err = w.Write(rec)
				rows += rec.NumRows()
				rec.Release()

				if err != nil {
					return fmt.Errorf("write IPC batch: %w", err)
				}
			}

			if err := w.Close(); err != nil {
				return fmt.Errorf("finish IPC file: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", rows, output)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "result.arrow", "destination Arrow IPC file")
	cmd.Flags().IntVar(&batchSize, "batch-size", arrowodbc.DefaultBatchSize, "rows per fetched batch")
	cmd.Flags().IntVar(&maxTextSize, "max-text-size", 0, "bound on text column slots in bytes")
	cmd.Flags().BoolVar(&concurrent, "concurrent", false, "fetch one batch ahead on a background goroutine")

	return cmd
}

func newInsertCommand(flags *rootFlags) *cobra.Command {
	var (
		input     string
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "insert <table>",
		Short: "Bulk-insert the batches of an Arrow IPC file into a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(input)
			if err != nil {
				return err
			}

			defer f.Close()

			r, err := ipc.NewReader(f, ipc.WithAllocator(memory.DefaultAllocator))
			if err != nil {
				return fmt.Errorf("open IPC reader: %w", err)
			}

			defer r.Release()

			conn, err := connect(cmd, flags)
			if err != nil {
				return err
			}

			writer, err := arrowodbc.NewBatchWriter(cmd.Context(), conn, args[0], r.Schema(),
				arrowodbc.WithChunkSize(chunkSize))
			if err != nil {
				return err
			}

			defer func() { _ = writer.Release() }()

			var rows int64

			for r.Next() {
				rec := r.Record()

				if err := writer.WriteBatch(cmd.Context(), rec); err != nil {
					return err
				}

				rows += rec.NumRows()
			}

			if err := r.Err(); err != nil {
				return fmt.Errorf("read IPC stream: %w", err)
			}

			if err := writer.Flush(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d rows into %s\n", rows, args[0])

			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "source Arrow IPC file")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", arrowodbc.DefaultChunkSize, "rows per transmitted insert chunk")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}
