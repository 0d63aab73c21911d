package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sdsvn/gocensus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "CENSUSGEOCODE"

type config struct {
	Address    string
	CSV        string
	Timeout    time.Duration
	ReturnType gocensus.ReturnType
	Benchmark  string
	Vintage    string
	BaseURL    string
	Format     string
	Verbose    bool
	Version    bool
}

// loadConfig parses flags and overlays CENSUSGEOCODE_* environment
// variables. Explicit flags win over the environment.
func loadConfig(args []string, stderr io.Writer) (*config, error) {
	fs := pflag.NewFlagSet("censusgeocode", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: censusgeocode [flags] [address]\n\n")
		fs.PrintDefaults()
	}

	fs.String("csv", "", "comma-delimited file of addresses, no header, columns id,street,city,state,zip (- reads stdin, .xlsx is read as a workbook)")
	fs.Int("timeout", 12, "request timeout in seconds")
	fs.String("returntype", string(gocensus.ReturnLocations), "locations or geographies")
	fs.String("benchmark", gocensus.DefaultBenchmark, "locator benchmark")
	fs.String("vintage", gocensus.DefaultVintage, "geography vintage")
	fs.String("format", "csv", "batch output format: csv or table")
	fs.String("base-url", gocensus.DefaultBaseURL, "geocoder base URL")
	fs.Bool("verbose", false, "log requests to stderr")
	fs.BoolP("version", "v", false, "print version and exit")
	_ = fs.MarkHidden("base-url")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	cfg := &config{
		CSV:        v.GetString("csv"),
		Timeout:    time.Duration(v.GetInt("timeout")) * time.Second,
		ReturnType: gocensus.ReturnType(v.GetString("returntype")),
		Benchmark:  v.GetString("benchmark"),
		Vintage:    v.GetString("vintage"),
		BaseURL:    v.GetString("base-url"),
		Format:     v.GetString("format"),
		Verbose:    v.GetBool("verbose"),
		Version:    v.GetBool("version"),
	}

	if fs.NArg() > 0 {
		cfg.Address = strings.Join(fs.Args(), " ")
	}

	if !cfg.ReturnType.Valid() {
		return nil, fmt.Errorf("unknown return type %q", cfg.ReturnType)
	}
	if cfg.Format != "csv" && cfg.Format != "table" {
		return nil, fmt.Errorf("unknown format %q", cfg.Format)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}

	return cfg, nil
}
