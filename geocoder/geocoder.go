// Package geocoder exposes the Census Geocoder as a geo.Geocoder from
// github.com/codingsince1985/geo-golang, so it can stand in for any of that
// library's providers.
package geocoder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codingsince1985/geo-golang"
	"github.com/sdsvn/gocensus"
)

const (
	countryName = "United States"
	countryCode = "US"
)

// Layer names searched, in order, for the city of a reverse lookup.
var placeLayers = []string{"Incorporated Places", "Census Designated Places"}

type census struct {
	client  *gocensus.Client
	timeout time.Duration
}

var _ geo.Geocoder = (*census)(nil)

// New returns a geo.Geocoder backed by client. Each call is bounded by
// timeout; zero leaves only the client's HTTP timeout.
func New(client *gocensus.Client, timeout time.Duration) geo.Geocoder {
	return &census{client: client, timeout: timeout}
}

// Geocode returns the location of the best match for address, or nil when
// the service found none.
func (c *census) Geocode(address string) (*geo.Location, error) {
	result, err := c.client.OneLineAddress(context.Background(), address, gocensus.QueryOptions{
		ReturnType: gocensus.ReturnLocations,
		Timeout:    c.timeout,
	})
	if err != nil {
		return nil, err
	}

	match, err := result.First()
	if errors.Is(err, gocensus.ErrNotFound) {
		return nil, nil
	}

	return &geo.Location{
		Lat: match.Coordinates.Y.Float64(),
		Lng: match.Coordinates.X.Float64(),
	}, nil
}

// ReverseGeocode returns the administrative geography containing a point.
// The Census Geocoder does not resolve street addresses for coordinates, so
// only the state, county, city and ZIP code tabulation area are filled.
func (c *census) ReverseGeocode(lat, lng float64) (*geo.Address, error) {
	result, err := c.client.Coordinates(context.Background(), lng, lat, gocensus.QueryOptions{Timeout: c.timeout})
	if err != nil {
		return nil, err
	}

	if len(result.Geographies) == 0 {
		return nil, nil
	}

	return addressFromGeographies(result.Geographies), nil
}

func addressFromGeographies(geos gocensus.Geographies) *geo.Address {
	addr := &geo.Address{
		Country:     countryName,
		CountryCode: countryCode,
	}

	if state, ok := geos.First("States"); ok {
		addr.State = state.Name()
	}

	if county, ok := geos.First("Counties"); ok {
		addr.County = county.Name()
	}

	for _, layer := range placeLayers {
		if place, ok := geos.First(layer); ok {
			addr.City = place.String("BASENAME")
			break
		}
	}

	for layer := range geos {
		if !strings.Contains(strings.ToLower(layer), "zip code tabulation areas") {
			continue
		}
		if zcta, ok := geos.First(layer); ok {
			addr.Postcode = zcta.String("ZCTA5")
			if addr.Postcode == "" {
				addr.Postcode = zcta.String("BASENAME")
			}
			break
		}
	}

	addr.FormattedAddress = formatAddress(addr)
	return addr
}

func formatAddress(addr *geo.Address) string {
	var parts []string
	for _, p := range []string{addr.City, addr.County} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	region := strings.TrimSpace(fmt.Sprintf("%s %s", addr.State, addr.Postcode))
	if region != "" {
		parts = append(parts, region)
	}
	parts = append(parts, addr.Country)
	return strings.Join(parts, ", ")
}
