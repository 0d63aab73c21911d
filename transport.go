package gocensus

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingRoundTripper logs every request it proxies. Bodies are not logged:
// batch uploads and replies can run to many megabytes.
type LoggingRoundTripper struct {
	Proxied http.RoundTripper
	Logger  *zap.Logger
}

func (lrt LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	proxied := lrt.Proxied
	if proxied == nil {
		proxied = http.DefaultTransport
	}

	start := time.Now()
	res, err := proxied.RoundTrip(req)
	if err != nil {
		lrt.Logger.Warn("census geocoder request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return res, err
	}

	lrt.Logger.Info("census geocoder response",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.String("status", res.Status),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// NewLoggingHTTPClient returns an HTTP client that logs each round trip to
// logger.
func NewLoggingHTTPClient(logger *zap.Logger, timeout time.Duration) *http.Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: LoggingRoundTripper{Proxied: http.DefaultTransport, Logger: logger},
		Timeout:   timeout,
	}
}
