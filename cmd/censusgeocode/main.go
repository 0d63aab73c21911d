// Command censusgeocode geocodes one address, or a CSV batch of addresses,
// with the US Census Geocoder.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/sdsvn/gocensus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "1.0.0"

func main() {
	// A missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "censusgeocode: %v\n", err)
		return 2
	}

	if cfg.Version {
		fmt.Fprintf(stdout, "censusgeocode v%s\n", version)
		return 0
	}

	logger := newLogger(cfg.Verbose, stderr)
	defer logger.Sync()

	client := gocensus.NewClient(
		gocensus.WithBaseURL(cfg.BaseURL),
		gocensus.WithBenchmark(cfg.Benchmark),
		gocensus.WithVintage(cfg.Vintage),
		gocensus.WithLogger(logger),
		gocensus.WithHTTPClient(gocensus.NewLoggingHTTPClient(logger, cfg.Timeout)),
	)
	opts := gocensus.QueryOptions{ReturnType: cfg.ReturnType, Timeout: cfg.Timeout}
	ctx := context.Background()

	switch {
	case cfg.Address != "":
		return lookup(ctx, client, cfg.Address, opts, stdout, stderr)
	case cfg.CSV != "":
		return batch(ctx, client, cfg, opts, stdin, stdout, stderr)
	default:
		fmt.Fprintln(stderr, "Address or csv file required")
		return 2
	}
}

func lookup(ctx context.Context, client *gocensus.Client, address string, opts gocensus.QueryOptions, stdout, stderr io.Writer) int {
	result, err := client.OneLineAddress(ctx, address, opts)
	if err != nil {
		fmt.Fprintf(stderr, "censusgeocode: %v\n", err)
		return 1
	}

	match, err := result.First()
	if errors.Is(err, gocensus.ErrNotFound) {
		fmt.Fprintln(stderr, "Address not found")
		return 1
	}

	fmt.Fprintf(stdout, "%s,%s\n",
		strconv.FormatFloat(match.Coordinates.X.Float64(), 'f', -1, 64),
		strconv.FormatFloat(match.Coordinates.Y.Float64(), 'f', -1, 64),
	)
	return 0
}

func batch(ctx context.Context, client *gocensus.Client, cfg *config, opts gocensus.QueryOptions, stdin io.Reader, stdout, stderr io.Writer) int {
	in, err := batchInput(cfg.CSV, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "censusgeocode: %v\n", err)
		return 1
	}

	records, err := client.AddressBatch(ctx, in, opts)
	if err != nil {
		fmt.Fprintf(stderr, "censusgeocode: %v\n", err)
		return 1
	}

	if err := writeRecords(stdout, cfg.Format, cfg.ReturnType, records); err != nil {
		fmt.Fprintf(stderr, "censusgeocode: %v\n", err)
		return 1
	}
	return 0
}

// batchInput resolves the --csv argument. Standard input is consumed in
// full before submission.
func batchInput(path string, stdin io.Reader) (gocensus.BatchInput, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return gocensus.FromReader(bytes.NewReader(data)), nil
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err := readWorkbook(path)
		if err != nil {
			return nil, err
		}
		return gocensus.FromRows(rows), nil
	}

	return gocensus.FromFile(path), nil
}

func writeRecords(w io.Writer, format string, rt gocensus.ReturnType, records []gocensus.BatchRecord) error {
	header, err := gocensus.BatchHeader(rt)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		values, err := r.Values(rt)
		if err != nil {
			return err
		}
		rows = append(rows, values)
	}

	if format == "table" {
		table := tablewriter.NewWriter(w)
		table.SetHeader(header)
		table.SetAutoWrapText(false)
		table.AppendBulk(rows)
		table.Render()
		return nil
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func newLogger(verbose bool, stderr io.Writer) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(stderr),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}
