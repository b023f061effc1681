// Package main provides a tool to export archived glider tracks to KML
// format. KML (Keyhole Markup Language) files can be viewed in Google
// Earth, Google Maps, and other mapping applications.
package main

import (
	"context"
	"encoding/xml"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"condor_feed/internal/storage"
)

// KML structures for XML marshalling.
// These follow the KML 2.2 specification: https://developers.google.com/kml/documentation/kmlreference

// KML is the root element of a KML document.
type KML struct {
	XMLName   xml.Name `xml:"kml"`
	Namespace string   `xml:"xmlns,attr"`
	Document  Document `xml:"Document"`
}

// Document contains the document metadata and features.
type Document struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description,omitempty"`
	Styles      []Style     `xml:"Style,omitempty"`
	Placemarks  []Placemark `xml:"Placemark"`
}

// Style defines the visual appearance of features.
type Style struct {
	ID        string    `xml:"id,attr"`
	LineStyle LineStyle `xml:"LineStyle"`
}

// LineStyle defines how track lines are displayed.
type LineStyle struct {
	Color string  `xml:"color"`
	Width float64 `xml:"width"`
}

// Placemark represents one glider's track.
type Placemark struct {
	Name         string        `xml:"name"`
	Description  string        `xml:"description,omitempty"`
	StyleURL     string        `xml:"styleUrl,omitempty"`
	LineString   LineString    `xml:"LineString"`
	ExtendedData *ExtendedData `xml:"ExtendedData,omitempty"`
}

// LineString is the track geometry.
type LineString struct {
	AltitudeMode string `xml:"altitudeMode"`
	Coordinates  string `xml:"coordinates"` // whitespace-separated lon,lat,alt triples
}

// ExtendedData holds custom data associated with a placemark.
type ExtendedData struct {
	Data []Data `xml:"Data"`
}

// Data represents a single piece of extended data.
type Data struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

func main() {
	// ClickHouse connection flags.
	chHost := flag.String("ch-host", "localhost", "ClickHouse host")
	chPort := flag.Int("ch-port", 9000, "ClickHouse native port")
	chUser := flag.String("ch-user", "default", "ClickHouse user")
	chPassword := flag.String("ch-password", "", "ClickHouse password")
	chDB := flag.String("ch-db", "condor", "ClickHouse database")

	serverName := flag.String("server", "", "Only export fixes from this race server")
	since := flag.Duration("since", 24*time.Hour, "Export fixes newer than this")
	limit := flag.Int("limit", 500000, "Maximum fixes to read")
	output := flag.String("output", "", "Output KML file (default: stdout)")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	ctx := context.Background()

	ch, err := storage.OpenClickHouse(ctx, storage.ClickHouseConfig{
		Host:     *chHost,
		Port:     *chPort,
		Database: *chDB,
		User:     *chUser,
		Password: *chPassword,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ClickHouse: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	fixes, err := ch.QueryFixes(ctx, storage.FixQueryParams{
		ServerName: *serverName,
		Since:      time.Now().Add(-*since),
		Limit:      *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying fixes: %v\n", err)
		os.Exit(1)
	}

	if len(fixes) == 0 {
		fmt.Fprintf(os.Stderr, "No fixes found matching criteria\n")
		os.Exit(0)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Exporting %d fixes to KML\n", len(fixes))
	}

	kml := generateKML(fixes)

	xmlData, err := xml.MarshalIndent(kml, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating KML: %v\n", err)
		os.Exit(1)
	}
	xmlOutput := xml.Header + string(xmlData)

	if *output != "" {
		if err := os.WriteFile(*output, []byte(xmlOutput), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Wrote %s\n", *output)
		}
	} else {
		fmt.Println(xmlOutput)
	}
}

// generateKML groups fixes by cookie and emits one track placemark per
// glider, oldest fix first.
func generateKML(fixes []storage.PositionFix) KML {
	byCookie := make(map[uint32][]storage.PositionFix)
	for _, f := range fixes {
		byCookie[f.Cookie] = append(byCookie[f.Cookie], f)
	}

	cookies := make([]uint32, 0, len(byCookie))
	for cookie := range byCookie {
		cookies = append(cookies, cookie)
	}
	sort.Slice(cookies, func(i, j int) bool { return cookies[i] < cookies[j] })

	placemarks := make([]Placemark, 0, len(cookies))
	for _, cookie := range cookies {
		track := byCookie[cookie]
		sort.Slice(track, func(i, j int) bool { return track[i].Timestamp.Before(track[j].Timestamp) })

		coords := ""
		for _, f := range track {
			coords += fmt.Sprintf("%.6f,%.6f,%.1f ", f.Longitude, f.Latitude, f.AltitudeM)
		}

		last := track[len(track)-1]
		name := last.CN
		if name == "" {
			name = fmt.Sprintf("%08x", cookie)
		}

		placemarks = append(placemarks, Placemark{
			Name: name,
			Description: fmt.Sprintf("Fixes: %d\nFirst: %s\nLast: %s",
				len(track),
				track[0].Timestamp.Format("2006-01-02 15:04:05 UTC"),
				last.Timestamp.Format("2006-01-02 15:04:05 UTC")),
			StyleURL: "#trackStyle",
			LineString: LineString{
				AltitudeMode: "absolute",
				Coordinates:  coords,
			},
			ExtendedData: &ExtendedData{
				Data: []Data{
					{Name: "registration", Value: last.Registration},
					{Name: "aircraft", Value: last.Aircraft},
					{Name: "server", Value: last.ServerName},
				},
			},
		})
	}

	return KML{
		Namespace: "http://www.opengis.net/kml/2.2",
		Document: Document{
			Name:        "Glider Tracks",
			Description: fmt.Sprintf("Flight tracks from the position archive. Generated %s.", time.Now().Format("2006-01-02 15:04:05")),
			Styles: []Style{
				{
					ID: "trackStyle",
					LineStyle: LineStyle{
						Color: "ff0000ff",
						Width: 2,
					},
				},
			},
			Placemarks: placemarks,
		},
	}
}
