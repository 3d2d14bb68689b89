// Package enrich backs the supplemental GEOIP and UA matchfields with real
// lookups: a MaxMind GeoIP2 country database and a user-agent parser. Both
// are optional — a LogWatcher started without a GeoIP database path simply
// never resolves GEOIP predicates, consistent with the IP-matchfield
// mismatch convention (inert, not an error).
package enrich

import (
	"fmt"

	"github.com/oschwald/maxminddb-golang"
)

// GeoIP resolves an IP string to its ISO country code using a MaxMind
// GeoLite2/GeoIP2 Country database.
type GeoIP struct {
	reader *maxminddb.Reader
}

// OpenGeoIP opens a MaxMind database file. The caller should Close it on
// shutdown.
func OpenGeoIP(path string) (*GeoIP, error) {
	r, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("enrich: open geoip database: %w", err)
	}
	return &GeoIP{reader: r}, nil
}

// Close releases the underlying database file.
func (g *GeoIP) Close() error {
	if g == nil || g.reader == nil {
		return nil
	}
	return g.reader.Close()
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Country implements predicate.GeoResolver.
func (g *GeoIP) Country(ip string) (string, bool) {
	if g == nil || g.reader == nil {
		return "", false
	}
	addr, err := parseIP(ip)
	if err != nil {
		return "", false
	}
	var rec countryRecord
	if err := g.reader.Lookup(addr, &rec); err != nil {
		return "", false
	}
	if rec.Country.ISOCode == "" {
		return "", false
	}
	return rec.Country.ISOCode, true
}
