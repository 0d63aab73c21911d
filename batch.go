package gocensus

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MaxBatchRows is the documented per-batch ceiling of the service. Larger
// batches are still submitted, with a warning.
const MaxBatchRows = 10000

const (
	batchFileField = "addressFile"
	batchFileName  = "batch.csv"
	matchStatus    = "Match"
	coordinateCol  = "coordinate"
)

// batchFields holds the column layout of a batch reply per return type. The
// service sends no header row.
var batchFields = map[ReturnType][]string{
	ReturnLocations: {
		"id", "address", "match", "matchtype", "parsed", coordinateCol, "tigerlineid", "side",
	},
	ReturnGeographies: {
		"id", "address", "match", "matchtype", "parsed", coordinateCol,
		"tigerlineid", "side", "statefp", "countyfp", "tract", "block",
	},
}

// BatchFields returns the column names of a batch reply for rt, in wire order.
func BatchFields(rt ReturnType) ([]string, error) {
	fields, ok := batchFields[rt]
	if !ok {
		return nil, configErrorf("unknown return type %q", rt)
	}
	return append([]string(nil), fields...), nil
}

// BatchHeader returns the column names of a decoded batch record for rt:
// the wire columns without the combined coordinate, followed by lat and lon.
func BatchHeader(rt ReturnType) ([]string, error) {
	fields, err := BatchFields(rt)
	if err != nil {
		return nil, err
	}

	header := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if f != coordinateCol {
			header = append(header, f)
		}
	}
	return append(header, "lat", "lon"), nil
}

// AddressRow is one address submitted in a batch. An empty ID is replaced by
// a generated one before submission.
type AddressRow struct {
	ID     string
	Street string
	City   string
	State  string
	Zip    string
}

// BatchRecord is one decoded row of a batch reply.
//
// Lat and Lon are both nil unless the service returned a parseable
// coordinate pair. StateFP, CountyFP, Tract and Block are only filled for
// the geographies return type.
type BatchRecord struct {
	ID          string
	Address     string
	Match       bool
	MatchType   string
	Parsed      string
	Lat         *float64
	Lon         *float64
	TigerLineID string
	Side        string
	StateFP     string
	CountyFP    string
	Tract       string
	Block       string
}

// Values returns the record's columns in BatchHeader(rt) order.
func (r BatchRecord) Values(rt ReturnType) ([]string, error) {
	header, err := BatchHeader(rt)
	if err != nil {
		return nil, err
	}

	values := make([]string, len(header))
	for i, name := range header {
		values[i] = r.field(name)
	}
	return values, nil
}

func (r BatchRecord) field(name string) string {
	switch name {
	case "id":
		return r.ID
	case "address":
		return r.Address
	case "match":
		return strconv.FormatBool(r.Match)
	case "matchtype":
		return r.MatchType
	case "parsed":
		return r.Parsed
	case "tigerlineid":
		return r.TigerLineID
	case "side":
		return r.Side
	case "statefp":
		return r.StateFP
	case "countyfp":
		return r.CountyFP
	case "tract":
		return r.Tract
	case "block":
		return r.Block
	case "lat":
		return formatOptional(r.Lat)
	case "lon":
		return formatOptional(r.Lon)
	}
	return ""
}

func (r *BatchRecord) set(name, value string) {
	switch name {
	case "id":
		r.ID = value
	case "address":
		r.Address = value
	case "match":
		r.Match = value == matchStatus
	case "matchtype":
		r.MatchType = value
	case "parsed":
		r.Parsed = value
	case coordinateCol:
		r.Lon, r.Lat = parseBatchCoordinate(value)
	case "tigerlineid":
		r.TigerLineID = value
	case "side":
		r.Side = value
	case "statefp":
		r.StateFP = value
	case "countyfp":
		r.CountyFP = value
	case "tract":
		r.Tract = value
	case "block":
		r.Block = value
	}
}

func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// parseBatchCoordinate splits a "lon,lat" column. Both results are nil when
// the column is empty or either half fails to parse.
func parseBatchCoordinate(s string) (lon, lat *float64) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return nil, nil
	}

	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, nil
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, nil
	}
	return &x, &y
}

// BatchInput is the source of a batch submission. It is created with
// FromReader, FromFile or FromRows.
type BatchInput interface {
	// open returns the CSV payload and a release func that must be called
	// once the payload has been consumed.
	open(c *Client) (io.Reader, func() error, error)
}

type readerInput struct {
	r io.Reader
}

type fileInput struct {
	path string
}

type rowsInput struct {
	rows []AddressRow
}

// FromReader submits an already formatted headerless CSV of
// id,street,city,state,zip rows. The reader is not closed.
func FromReader(r io.Reader) BatchInput {
	return readerInput{r: r}
}

// FromFile submits the headerless CSV at path. The file is opened and
// closed by AddressBatch.
func FromFile(path string) BatchInput {
	return fileInput{path: path}
}

// FromRows submits rows, assigning ids to those without one.
func FromRows(rows []AddressRow) BatchInput {
	return rowsInput{rows: rows}
}

func noop() error { return nil }

func (in readerInput) open(*Client) (io.Reader, func() error, error) {
	if in.r == nil {
		return nil, noop, configErrorf("batch reader cannot be nil")
	}
	return in.r, noop, nil
}

func (in fileInput) open(*Client) (io.Reader, func() error, error) {
	f, err := os.Open(in.path)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open batch file: %w", err)
	}
	return f, f.Close, nil
}

func (in rowsInput) open(c *Client) (io.Reader, func() error, error) {
	if len(in.rows) > MaxBatchRows {
		c.logger.Warn("batch exceeds the service row limit",
			zap.Int("rows", len(in.rows)),
			zap.Int("limit", MaxBatchRows),
		)
	}

	rows, err := AssignIDs(in.rows)
	if err != nil {
		return nil, noop, err
	}

	var buf bytes.Buffer
	if err := EncodeRows(&buf, rows); err != nil {
		return nil, noop, err
	}
	return &buf, noop, nil
}

// AssignIDs returns a copy of rows in which every row has a unique ID. A row
// without one gets its 1-based position, or the next free integer when that
// position is already taken by an explicit id. Duplicate explicit ids are a
// configuration error.
func AssignIDs(rows []AddressRow) ([]AddressRow, error) {
	used := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			continue
		}
		if _, dup := used[row.ID]; dup {
			return nil, configErrorf("duplicate batch id %q at row %d", row.ID, i+1)
		}
		used[row.ID] = struct{}{}
	}

	out := make([]AddressRow, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			n := i + 1
			for {
				if _, taken := used[strconv.Itoa(n)]; !taken {
					break
				}
				n++
			}
			row.ID = strconv.Itoa(n)
			used[row.ID] = struct{}{}
		}
		out[i] = row
	}
	return out, nil
}

// EncodeRows writes rows as the headerless id,street,city,state,zip CSV the
// batch endpoint expects.
func EncodeRows(w io.Writer, rows []AddressRow) error {
	writer := csv.NewWriter(w)
	for _, row := range rows {
		if err := writer.Write([]string{row.ID, row.Street, row.City, row.State, row.Zip}); err != nil {
			return fmt.Errorf("failed to encode batch row %s: %w", row.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ParseBatchResult decodes a batch reply for return type rt. Rows shorter
// than the column layout (unmatched addresses) leave the missing columns
// empty; extra columns are dropped.
func ParseBatchResult(r io.Reader, rt ReturnType) ([]BatchRecord, error) {
	fields, err := BatchFields(rt)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records := []BatchRecord{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformedErrorf("decode batch reply: %v", err)
		}

		var record BatchRecord
		for i, name := range fields {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			record.set(name, value)
		}
		records = append(records, record)
	}

	return records, nil
}

// AddressBatch submits a batch of addresses in one POST and returns one
// record per row of the reply. The return type is validated before
// anything is read or sent.
//
// Example usage:
//
//	rows := []AddressRow{
//	    {Street: "4600 Silver Hill Rd", City: "Suitland", State: "MD", Zip: "20746"},
//	    {Street: "1600 Pennsylvania Ave NW", City: "Washington", State: "DC"},
//	}
//	records, err := client.AddressBatch(ctx, FromRows(rows), QueryOptions{ReturnType: ReturnLocations})
func (c *Client) AddressBatch(ctx context.Context, in BatchInput, opts QueryOptions) ([]BatchRecord, error) {
	rt := opts.ReturnType.orDefault()
	if _, err := BatchFields(rt); err != nil {
		return nil, err
	}

	endpoint, err := c.Endpoint(rt, SearchAddressBatch)
	if err != nil {
		return nil, err
	}

	if in == nil {
		return nil, configErrorf("batch input cannot be nil")
	}

	payload, release, err := in.open(c)
	defer release()
	if err != nil {
		return nil, fmt.Errorf("address batch failed: %w", err)
	}

	body, contentType, err := c.multipartBody(payload)
	if err != nil {
		return nil, fmt.Errorf("address batch failed: %w", err)
	}

	ctx, span := c.startSpan(ctx, SearchAddressBatch, rt)
	defer span.End()
	span.SetAttributes(attribute.Int("census.batch.bytes", body.Len()))
	if rows, ok := in.(rowsInput); ok {
		span.SetAttributes(attribute.Int("census.batch.rows", len(rows.rows)))
	}

	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	c.logger.Debug("census geocoder batch request",
		zap.String("return_type", string(rt)),
		zap.String("url", endpoint),
		zap.Int("bytes", body.Len()),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	reply, err := c.do(req, span)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("address batch failed: %w", err)
	}

	records, err := ParseBatchResult(bytes.NewReader(reply), rt)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("address batch failed: %w", err)
	}
	return records, nil
}

// multipartBody wraps payload as the addressFile field next to the benchmark
// and vintage fields.
func (c *Client) multipartBody(payload io.Reader) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("benchmark", c.benchmark); err != nil {
		return nil, "", fmt.Errorf("failed to write benchmark field: %w", err)
	}
	if err := mw.WriteField("vintage", c.vintage); err != nil {
		return nil, "", fmt.Errorf("failed to write vintage field: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, batchFileField, batchFileName))
	h.Set("Content-Type", "text/plain")

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create address file part: %w", err)
	}
	if _, err := io.Copy(part, payload); err != nil {
		return nil, "", fmt.Errorf("failed to read batch input: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
