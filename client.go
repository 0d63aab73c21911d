package gocensus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the base URL for the Census Geocoder API.
	DefaultBaseURL = "https://geocoding.geo.census.gov/geocoder"

	// DefaultBenchmark is the locator dataset used when none is configured.
	DefaultBenchmark = "Public_AR_Current"

	// DefaultVintage is the geography snapshot used when none is configured.
	DefaultVintage = "Current_Current"

	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	tracerName = "github.com/sdsvn/gocensus"
	userAgent  = "gocensus/1.0"
)

// Client is the Census Geocoder API client.
//
// The benchmark and vintage may be changed between calls with SetBenchmark
// and SetVintage. A Client does no internal locking: callers sharing one
// across goroutines must not change them while a call is in flight.
type Client struct {
	baseURL    string
	httpClient *http.Client
	benchmark  string
	vintage    string
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewClient creates a new Census Geocoder client with optional configuration.
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		benchmark: DefaultBenchmark,
		vintage:   DefaultVintage,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithBenchmark sets the benchmark sent with every request.
// See https://geocoding.geo.census.gov/geocoder/benchmarks
func WithBenchmark(benchmark string) ClientOption {
	return func(c *Client) {
		if benchmark != "" {
			c.benchmark = benchmark
		}
	}
}

// WithVintage sets the vintage sent with every request.
// See https://geocoding.geo.census.gov/geocoder/vintages?form
func WithVintage(vintage string) ClientOption {
	return func(c *Client) {
		if vintage != "" {
			c.vintage = vintage
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for request
// spans. The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// Benchmark returns the benchmark sent with every request.
func (c *Client) Benchmark() string {
	return c.benchmark
}

// SetBenchmark changes the benchmark used by subsequent requests.
func (c *Client) SetBenchmark(benchmark string) {
	c.benchmark = benchmark
}

// Vintage returns the vintage sent with every request.
func (c *Client) Vintage() string {
	return c.vintage
}

// SetVintage changes the vintage used by subsequent requests.
func (c *Client) SetVintage(vintage string) {
	c.vintage = vintage
}

// Endpoint returns the fully qualified URL for a return type and search type.
func (c *Client) Endpoint(rt ReturnType, st SearchType) (string, error) {
	if !rt.Valid() {
		return "", configErrorf("unknown return type %q", rt)
	}
	if !st.Valid() {
		return "", configErrorf("unknown search type %q", st)
	}
	return fmt.Sprintf("%s/%s/%s", c.baseURL, rt, st), nil
}

// Coordinates looks up the geographies containing a (longitude, latitude)
// point. The return type is always geographies.
func (c *Client) Coordinates(ctx context.Context, x, y float64, opts QueryOptions) (*GeographyResult, error) {
	opts.ReturnType = ReturnGeographies

	fields := url.Values{}
	fields.Set("x", strconv.FormatFloat(x, 'f', -1, 64))
	fields.Set("y", strconv.FormatFloat(y, 'f', -1, 64))

	result, err := c.fetch(ctx, SearchCoordinates, fields, opts)
	if err != nil {
		return nil, fmt.Errorf("coordinates lookup failed: %w", err)
	}

	if result.Geography == nil {
		return nil, malformedErrorf("coordinates reply carried address matches")
	}
	return result.Geography, nil
}

// Address geocodes a structured address.
func (c *Client) Address(ctx context.Context, addr Address, opts QueryOptions) (*AddressResult, error) {
	if addr.Street == "" {
		return nil, configErrorf("street cannot be empty")
	}

	result, err := c.fetch(ctx, SearchAddress, addressParams(addr), opts)
	if err != nil {
		return nil, fmt.Errorf("address lookup failed: %w", err)
	}

	if result.Address == nil {
		return nil, malformedErrorf("address reply carried no address matches")
	}
	return result.Address, nil
}

// OneLineAddress geocodes an address passed as one string,
// e.g. "4600 Silver Hill Rd, Suitland, MD 20746".
func (c *Client) OneLineAddress(ctx context.Context, address string, opts QueryOptions) (*AddressResult, error) {
	if address == "" {
		return nil, configErrorf("address cannot be empty")
	}

	fields := url.Values{}
	fields.Set("address", address)

	result, err := c.fetch(ctx, SearchOneLineAddress, fields, opts)
	if err != nil {
		return nil, fmt.Errorf("one-line address lookup failed: %w", err)
	}

	if result.Address == nil {
		return nil, malformedErrorf("address reply carried no address matches")
	}
	return result.Address, nil
}

// addressParams converts an Address to query parameters, skipping empty fields.
func addressParams(addr Address) url.Values {
	params := url.Values{}

	params.Set("street", addr.Street)

	if addr.City != "" {
		params.Set("city", addr.City)
	}

	if addr.State != "" {
		params.Set("state", addr.State)
	}

	if addr.Zip != "" {
		params.Set("zip", addr.Zip)
	}

	return params
}

// buildQueryParams adds the client-level and per-call parameters shared by
// the single-item searches.
func (c *Client) buildQueryParams(fields url.Values, opts QueryOptions) url.Values {
	params := url.Values{}
	for k, v := range fields {
		params[k] = v
	}

	params.Set("benchmark", c.benchmark)
	params.Set("vintage", c.vintage)
	params.Set("format", "json")

	if opts.Layers != "" {
		params.Set("layers", opts.Layers)
	}

	return params
}

// fetch performs one GET for a single-item search and classifies the reply.
func (c *Client) fetch(ctx context.Context, st SearchType, fields url.Values, opts QueryOptions) (*Result, error) {
	rt := opts.ReturnType.orDefault()
	endpoint, err := c.Endpoint(rt, st)
	if err != nil {
		return nil, err
	}

	apiURL := fmt.Sprintf("%s?%s", endpoint, c.buildQueryParams(fields, opts).Encode())

	ctx, span := c.startSpan(ctx, st, rt)
	defer span.End()

	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	c.logger.Debug("census geocoder request",
		zap.String("search_type", string(st)),
		zap.String("return_type", string(rt)),
		zap.String("url", apiURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, span)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	result, err := ParseResponse(body)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return result, nil
}

// do sends req and returns the full body of a 2xx reply.
func (c *Client) do(req *http.Request, span trace.Span) ([]byte, error) {
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: req.Method, URL: req.URL.Redacted(), Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: req.Method, URL: req.URL.Redacted(), StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Op:         req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	return body, nil
}

type envelope struct {
	Result *struct {
		Input          Input           `json:"input"`
		AddressMatches *[]AddressMatch `json:"addressMatches"`
		Geographies    *Geographies    `json:"geographies"`
	} `json:"result"`
}

// ParseResponse decodes a Census Geocoder JSON reply and classifies it as an
// address-match result or a geography result. A body with neither
// result.addressMatches nor result.geographies, or one that cannot be
// decoded, yields ErrMalformedResponse.
func ParseResponse(body []byte) (*Result, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, malformedErrorf("decode response: %v", err)
	}

	if env.Result == nil {
		return nil, malformedErrorf("response has no result object")
	}

	if env.Result.AddressMatches != nil {
		matches := *env.Result.AddressMatches
		if matches == nil {
			matches = []AddressMatch{}
		}
		return &Result{Address: &AddressResult{Input: env.Result.Input, Matches: matches}}, nil
	}

	if env.Result.Geographies != nil {
		geos := *env.Result.Geographies
		if geos == nil {
			geos = Geographies{}
		}
		return &Result{Geography: &GeographyResult{Input: env.Result.Input, Geographies: geos}}, nil
	}

	return nil, malformedErrorf("result has neither addressMatches nor geographies")
}

func (c *Client) startSpan(ctx context.Context, st SearchType, rt ReturnType) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "gocensus."+string(st),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("census.search_type", string(st)),
			attribute.String("census.return_type", string(rt)),
			attribute.String("census.benchmark", c.benchmark),
			attribute.String("census.vintage", c.vintage),
		),
	)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
