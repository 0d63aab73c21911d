// Package gocensus provides a Go client for the US Census Geocoder API.
//
// The Census Geocoder matches US addresses to coordinates and to the census
// geographies (states, counties, tracts, blocks, ...) that contain them. See
// https://geocoding.geo.census.gov/geocoder/Geocoding_Services_API.pdf
//
// # Quick Start
//
// Create a new client and geocode a one-line address:
//
//	client := gocensus.NewClient()
//	result, err := client.OneLineAddress(context.Background(),
//	    "4600 Silver Hill Rd, Suitland, MD 20746",
//	    gocensus.QueryOptions{ReturnType: gocensus.ReturnLocations})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	match, err := result.First()
//	if errors.Is(err, gocensus.ErrNotFound) {
//	    log.Fatal("address not found")
//	}
//	fmt.Printf("%v,%v\n", match.Coordinates.X, match.Coordinates.Y)
//
// # Reverse Lookup
//
// Find the geographies containing a point:
//
//	geo, err := client.Coordinates(ctx, -74, 43, gocensus.QueryOptions{})
//	county, _ := geo.Geographies.First("Counties")
//	fmt.Println(county.String("BASENAME"), county.Centroid)
//
// # Configuration
//
// Every request carries a benchmark and a vintage:
//
//	client := gocensus.NewClient(
//	    gocensus.WithBenchmark("Public_AR_Census2020"),
//	    gocensus.WithVintage("Census2020_Current"),
//	    gocensus.WithLogger(logger),
//	)
//
// # Batch Operations
//
// Geocode many addresses in a single upload:
//
//	rows := []gocensus.AddressRow{
//	    {Street: "1600 Pennsylvania Ave NW", City: "Washington", State: "DC", Zip: "20500"},
//	}
//	records, err := client.AddressBatch(ctx, gocensus.FromRows(rows), gocensus.QueryOptions{})
//
// A batch can also be read from a file with FromFile or from any io.Reader
// with FromReader.
package gocensus
