package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdsvn/gocensus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const matchReply = `{"result": {"input": {}, "addressMatches": [{
	"matchedAddress": "4600 SILVER HILL RD, SUITLAND, MD, 20746",
	"coordinates": {"x": -76.92744, "y": 38.845985}
}]}}`

const batchReply = `"1","4600 Silver Hill Rd, Suitland, MD, 20746","Match","Exact","4600 SILVER HILL RD, SUITLAND, MD, 20746","-76.92744,38.845985","613199520","L"
"2","1 Nowhere Ln, Atlantis, ZZ, 00000","No_Match"
`

type seen struct {
	path      string
	benchmark string
	upload    [][]string
}

func newServer(t *testing.T) (*httptest.Server, *seen) {
	t.Helper()
	var s seen
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.path = r.URL.Path
		switch {
		case strings.HasSuffix(r.URL.Path, "/onelineaddress"):
			s.benchmark = r.URL.Query().Get("benchmark")
			if r.URL.Query().Get("address") == "nowhere" {
				fmt.Fprint(w, `{"result": {"input": {}, "addressMatches": []}}`)
				return
			}
			fmt.Fprint(w, matchReply)
		case strings.HasSuffix(r.URL.Path, "/addressbatch"):
			s.benchmark = r.FormValue("benchmark")
			file, _, err := r.FormFile("addressFile")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer file.Close()
			s.upload, _ = csv.NewReader(file).ReadAll()
			fmt.Fprint(w, batchReply)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, &s
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Address(t *testing.T) {
	server, s := newServer(t)

	code, stdout, stderr := runCLI(t, "", "--base-url", server.URL, "4600 Silver Hill Rd, Suitland, MD 20746")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "-76.92744,38.845985\n", stdout)
	assert.Equal(t, "/locations/onelineaddress", s.path)
}

func TestRun_AddressNotFound(t *testing.T) {
	server, _ := newServer(t)

	code, stdout, stderr := runCLI(t, "", "--base-url", server.URL, "nowhere")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Equal(t, "Address not found\n", stderr)
}

func TestRun_BatchStdin(t *testing.T) {
	server, s := newServer(t)

	input := "1,4600 Silver Hill Rd,Suitland,MD,20746\n2,1 Nowhere Ln,Atlantis,ZZ,00000\n"
	code, stdout, stderr := runCLI(t, input, "--base-url", server.URL, "--csv", "-")
	require.Equal(t, 0, code, stderr)

	assert.Equal(t, "/locations/addressbatch", s.path)
	require.Len(t, s.upload, 2)

	rows, err := csv.NewReader(strings.NewReader(stdout)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "address", "match", "matchtype", "parsed", "tigerlineid", "side", "lat", "lon"}, rows[0])
	assert.Equal(t, "true", rows[1][2])
	assert.Equal(t, "38.845985", rows[1][7])
	assert.Equal(t, "-76.92744", rows[1][8])
	assert.Equal(t, []string{"2", "1 Nowhere Ln, Atlantis, ZZ, 00000", "false", "", "", "", "", "", ""}, rows[2])
}

func TestRun_BatchTable(t *testing.T) {
	server, _ := newServer(t)

	code, stdout, stderr := runCLI(t, "1,a,b,c,d\n", "--base-url", server.URL, "--csv", "-", "--format", "table")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "TIGERLINEID")
	assert.Contains(t, stdout, "613199520")
}

func TestRun_BatchWorkbook(t *testing.T) {
	server, s := newServer(t)

	path := filepath.Join(t.TempDir(), "addresses.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"", "4600 Silver Hill Rd", "Suitland", "MD", "20746"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"", "1 Nowhere Ln", "Atlantis", "ZZ", "00000"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	code, _, stderr := runCLI(t, "", "--base-url", server.URL, "--csv", path)
	require.Equal(t, 0, code, stderr)

	require.Len(t, s.upload, 2, "blank row skipped")
	assert.Equal(t, []string{"1", "4600 Silver Hill Rd", "Suitland", "MD", "20746"}, s.upload[0])
	assert.Equal(t, "2", s.upload[1][0])
}

func TestRun_BatchMissingFile(t *testing.T) {
	code, _, stderr := runCLI(t, "", "--csv", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "failed to open batch file")
}

func TestRun_NoInput(t *testing.T) {
	code, _, stderr := runCLI(t, "")
	assert.Equal(t, 2, code)
	assert.Equal(t, "Address or csv file required\n", stderr)
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "", "--version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "censusgeocode v"+version+"\n", stdout)
}

func TestRun_Help(t *testing.T) {
	code, _, stderr := runCLI(t, "", "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stderr, "usage: censusgeocode")
}

func TestRun_BadReturnType(t *testing.T) {
	code, _, stderr := runCLI(t, "", "--returntype", "bogus", "somewhere")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown return type")
}

func TestRun_Verbose(t *testing.T) {
	server, _ := newServer(t)

	code, _, stderr := runCLI(t, "", "--base-url", server.URL, "--verbose", "somewhere")
	require.Equal(t, 0, code)
	assert.Contains(t, stderr, "census geocoder response")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, cfg.Timeout)
	assert.Equal(t, gocensus.ReturnLocations, cfg.ReturnType)
	assert.Equal(t, gocensus.DefaultBenchmark, cfg.Benchmark)
	assert.Equal(t, gocensus.DefaultVintage, cfg.Vintage)
	assert.Equal(t, gocensus.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "csv", cfg.Format)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("CENSUSGEOCODE_BENCHMARK", "Public_AR_Census2020")
	t.Setenv("CENSUSGEOCODE_TIMEOUT", "30")
	t.Setenv("CENSUSGEOCODE_RETURNTYPE", "geographies")
	t.Setenv("CENSUSGEOCODE_VINTAGE", "Census2020_Current")

	cfg, err := loadConfig([]string{"--vintage", "Current_Current"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "Public_AR_Census2020", cfg.Benchmark)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, gocensus.ReturnGeographies, cfg.ReturnType)
	assert.Equal(t, "Current_Current", cfg.Vintage, "explicit flag wins over environment")
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadConfig([]string{"--timeout", "0"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = loadConfig([]string{"--format", "json"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRun_EnvironmentBenchmark(t *testing.T) {
	server, s := newServer(t)
	t.Setenv("CENSUSGEOCODE_BENCHMARK", "Public_AR_Census2020")

	code, _, stderr := runCLI(t, "", "--base-url", server.URL, "somewhere")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "Public_AR_Census2020", s.benchmark)
}
