package geo

import (
	"net"
	"os"
	"strconv"
	"strings"

	geoip2 "github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// Lookup resolves IP addresses against a MaxMind-compatible mmdb map.
// When the map is missing at startup the lookup degrades to "always
// absent" so the pipeline still runs.
type Lookup struct {
	reader *geoip2.Reader
}

// Open opens the geolocation map at path. A missing or empty path yields
// a degraded lookup, not an error.
func Open(path string) (*Lookup, error) {
	if path == "" {
		log.Warn().Msg("No geolocation map configured, lookups will resolve to absent")
		return &Lookup{}, nil
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().
				Str("mmdb_path", path).
				Msg("Geolocation map not found, lookups will resolve to absent")
			return &Lookup{}, nil
		}
		return nil, err
	}

	return &Lookup{reader: reader}, nil
}

// Geolocation resolves ip to a tab-joined "latitude\tlongitude" pair.
// The second return is false when the address is malformed, unknown to
// the map, or the lookup is degraded.
func (l *Lookup) Geolocation(ip string) (string, bool) {
	if l.reader == nil {
		return "", false
	}

	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", false
	}

	record, err := l.reader.City(parsed)
	if err != nil {
		return "", false
	}
	if record.Location.Latitude == 0 && record.Location.Longitude == 0 && record.Country.IsoCode == "" {
		return "", false
	}

	return formatCoordinate(record.Location.Latitude) + "\t" + formatCoordinate(record.Location.Longitude), true
}

// CountryCode resolves ip to its ISO country code
func (l *Lookup) CountryCode(ip string) (string, bool) {
	if l.reader == nil {
		return "", false
	}

	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", false
	}

	record, err := l.reader.Country(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return "", false
	}

	return record.Country.IsoCode, true
}

// Close closes the underlying map reader, if any
func (l *Lookup) Close() error {
	if l.reader == nil {
		return nil
	}
	return l.reader.Close()
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
