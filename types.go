package gocensus

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ReturnType selects the richness of a Census Geocoder response.
type ReturnType string

const (
	// ReturnGeographies returns the match plus administrative geography layers.
	ReturnGeographies ReturnType = "geographies"

	// ReturnLocations returns the match only.
	ReturnLocations ReturnType = "locations"
)

// Valid reports whether rt is a return type the service understands.
func (rt ReturnType) Valid() bool {
	return rt == ReturnGeographies || rt == ReturnLocations
}

// orDefault maps the zero ReturnType to ReturnGeographies.
func (rt ReturnType) orDefault() ReturnType {
	if rt == "" {
		return ReturnGeographies
	}
	return rt
}

// SearchType selects the input mode of a request.
type SearchType string

const (
	SearchCoordinates    SearchType = "coordinates"
	SearchAddress        SearchType = "address"
	SearchOneLineAddress SearchType = "onelineaddress"
	SearchAddressBatch   SearchType = "addressbatch"
)

// Valid reports whether st is a search type the service understands.
func (st SearchType) Valid() bool {
	switch st {
	case SearchCoordinates, SearchAddress, SearchOneLineAddress, SearchAddressBatch:
		return true
	}
	return false
}

// FlexFloat handles flexible JSON unmarshaling for coordinate values.
// The Census Geocoder returns coordinates as JSON numbers in match results
// but echoes caller input as strings ("-74"). FlexFloat accepts both.
//
// Supported input formats:
//   - Number: -77.0351
//   - String number: "-77.0351" or "+038.8986"
//   - Empty string: "" (returns 0)
type FlexFloat float64

// UnmarshalJSON implements custom unmarshaling to handle both string and number values.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}

	*f = FlexFloat(n)
	return nil
}

// Float64 returns the underlying float64 value.
func (f FlexFloat) Float64() float64 {
	return float64(f)
}

// Coordinate is a (longitude, latitude) pair.
type Coordinate struct {
	Lon float64
	Lat float64
}

// Coordinates is the point of an address match. X is longitude, Y is latitude.
type Coordinates struct {
	X FlexFloat `json:"x"`
	Y FlexFloat `json:"y"`
}

// Benchmark describes the address locator dataset used by the service.
type Benchmark struct {
	ID          string `json:"id"`
	Name        string `json:"benchmarkName"`
	Description string `json:"benchmarkDescription"`
	IsDefault   bool   `json:"isDefault"`
}

// Vintage describes the geography boundary snapshot used by the service.
type Vintage struct {
	ID          string `json:"id"`
	Name        string `json:"vintageName"`
	Description string `json:"vintageDescription"`
	IsDefault   bool   `json:"isDefault"`
}

// Input is the request echo the service returns alongside every result.
// Address is set for address searches, Location for coordinate searches.
type Input struct {
	Benchmark Benchmark         `json:"benchmark"`
	Vintage   Vintage           `json:"vintage"`
	Address   map[string]string `json:"address,omitempty"`
	Location  *Coordinates      `json:"location,omitempty"`
}

// GeographyRecord is one feature of a geography layer, such as a single
// county or census tract. Attributes holds the layer's fields as returned
// (GEOID, BASENAME, NAME, CENTLAT, ...).
//
// Centroid and InternalPoint are computed from CENTLON/CENTLAT and
// INTPTLON/INTPTLAT. Each is nil when either half is missing or cannot be
// parsed as a number.
type GeographyRecord struct {
	Attributes    map[string]interface{}
	Centroid      *Coordinate
	InternalPoint *Coordinate
}

// UnmarshalJSON decodes the raw attribute object and computes the
// coordinate pairs. Unparseable coordinates never fail decoding.
func (g *GeographyRecord) UnmarshalJSON(data []byte) error {
	var attrs map[string]interface{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return err
	}

	g.Attributes = attrs
	g.Centroid = coordinatePair(attrs["CENTLON"], attrs["CENTLAT"])
	g.InternalPoint = coordinatePair(attrs["INTPTLON"], attrs["INTPTLAT"])
	return nil
}

// String returns the attribute under key formatted as a string, or "" when
// it is absent or null.
func (g GeographyRecord) String(key string) string {
	switch v := g.Attributes[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// GEOID returns the record's GEOID attribute.
func (g GeographyRecord) GEOID() string {
	return g.String("GEOID")
}

// Name returns the record's NAME attribute.
func (g GeographyRecord) Name() string {
	return g.String("NAME")
}

func coordinatePair(lon, lat interface{}) *Coordinate {
	x, ok := attrFloat(lon)
	if !ok {
		return nil
	}
	y, ok := attrFloat(lat)
	if !ok {
		return nil
	}
	return &Coordinate{Lon: x, Lat: y}
}

func attrFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Geographies maps a layer name ("Counties", "Census Tracts", ...) to the
// features of that layer in service order.
type Geographies map[string][]GeographyRecord

// First returns the first feature of layer, if any.
func (g Geographies) First(layer string) (GeographyRecord, bool) {
	records := g[layer]
	if len(records) == 0 {
		return GeographyRecord{}, false
	}
	return records[0], true
}

// TigerLine identifies the TIGER/Line edge an address was matched on.
type TigerLine struct {
	TigerLineID string `json:"tigerLineId"`
	Side        string `json:"side"`
}

// AddressComponents is the parsed form of a matched address.
type AddressComponents struct {
	FromAddress     string `json:"fromAddress"`
	ToAddress       string `json:"toAddress"`
	PreQualifier    string `json:"preQualifier"`
	PreDirection    string `json:"preDirection"`
	PreType         string `json:"preType"`
	StreetName      string `json:"streetName"`
	SuffixType      string `json:"suffixType"`
	SuffixDirection string `json:"suffixDirection"`
	SuffixQualifier string `json:"suffixQualifier"`
	City            string `json:"city"`
	State           string `json:"state"`
	Zip             string `json:"zip"`
}

// AddressMatch is one candidate match for an address search. Geographies
// is only populated for the geographies return type.
type AddressMatch struct {
	MatchedAddress    string            `json:"matchedAddress"`
	Coordinates       Coordinates       `json:"coordinates"`
	TigerLine         TigerLine         `json:"tigerLine"`
	AddressComponents AddressComponents `json:"addressComponents"`
	Geographies       Geographies       `json:"geographies,omitempty"`
}

// AddressResult is the reply to an address or one-line address search.
type AddressResult struct {
	Input   Input
	Matches []AddressMatch
}

// First returns the best candidate, or ErrNotFound when there is none.
func (r *AddressResult) First() (AddressMatch, error) {
	if r == nil || len(r.Matches) == 0 {
		return AddressMatch{}, ErrNotFound
	}
	return r.Matches[0], nil
}

// GeographyResult is the reply to a coordinate search.
type GeographyResult struct {
	Input       Input
	Geographies Geographies
}

// Result is a classified service reply. Exactly one of Address and
// Geography is non-nil.
type Result struct {
	Address   *AddressResult
	Geography *GeographyResult
}

// Address is a structured single-line address for the address search.
// Only Street is required by the service.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// QueryOptions are the per-call settings shared by every search.
//
// Example usage:
//
//	opts := QueryOptions{
//	    ReturnType: ReturnLocations,
//	    Timeout:    12 * time.Second,
//	}
//	result, err := client.OneLineAddress(ctx, "4600 Silver Hill Rd, Suitland, MD 20746", opts)
type QueryOptions struct {
	// ReturnType selects locations or geographies. Default: geographies.
	// Ignored by Coordinates, which always asks for geographies.
	ReturnType ReturnType

	// Layers restricts the geography layers returned, e.g. "all" or
	// "Counties,Census Tracts". Leave empty for the service default.
	// Not sent with batch requests.
	Layers string

	// Timeout bounds the whole call. Zero leaves only the HTTP client's
	// own timeout and the caller's context in effect.
	Timeout time.Duration
}

// ClientOption allows configuration of the Client.
type ClientOption func(*Client)
