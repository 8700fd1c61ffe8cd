// Package atlas is the static name-to-coordinate lookup table: short
// region codes mapped to geographic coordinates. It is read-only and
// queried by the coordinate projector.
package atlas

import (
	"github.com/clutterstack/flymap/internal/util"
	"github.com/clutterstack/flymap/pkg/core"
)

// regions maps deployment region codes to their coordinates.
var regions = map[string]core.LatLng{
	"ams": {Lat: 52.3676, Lng: 4.9041},    // Amsterdam
	"arn": {Lat: 59.6519, Lng: 17.9186},   // Stockholm
	"atl": {Lat: 33.6407, Lng: -84.4277},  // Atlanta
	"bog": {Lat: 4.7110, Lng: -74.0721},   // Bogotá
	"bom": {Lat: 19.0896, Lng: 72.8656},   // Mumbai
	"bos": {Lat: 42.3656, Lng: -71.0096},  // Boston
	"cdg": {Lat: 49.0097, Lng: 2.5479},    // Paris
	"den": {Lat: 39.8561, Lng: -104.6737}, // Denver
	"dfw": {Lat: 32.8998, Lng: -97.0403},  // Dallas
	"ewr": {Lat: 40.6895, Lng: -74.1745},  // Secaucus
	"eze": {Lat: -34.8222, Lng: -58.5358}, // Buenos Aires
	"fra": {Lat: 50.0379, Lng: 8.5622},    // Frankfurt
	"gdl": {Lat: 20.5218, Lng: -103.3111}, // Guadalajara
	"gig": {Lat: -22.8100, Lng: -43.2505}, // Rio de Janeiro
	"gru": {Lat: -23.4356, Lng: -46.4731}, // São Paulo
	"hkg": {Lat: 22.3080, Lng: 113.9185},  // Hong Kong
	"iad": {Lat: 38.9531, Lng: -77.4565},  // Ashburn
	"jnb": {Lat: -26.1392, Lng: 28.2460},  // Johannesburg
	"lax": {Lat: 33.9416, Lng: -118.4085}, // Los Angeles
	"lhr": {Lat: 51.4700, Lng: -0.4543},   // London
	"mad": {Lat: 40.4983, Lng: -3.5676},   // Madrid
	"mia": {Lat: 25.7959, Lng: -80.2870},  // Miami
	"nrt": {Lat: 35.7720, Lng: 140.3929},  // Tokyo
	"ord": {Lat: 41.9742, Lng: -87.9073},  // Chicago
	"otp": {Lat: 44.5711, Lng: 26.0858},   // Bucharest
	"phx": {Lat: 33.4343, Lng: -112.0116}, // Phoenix
	"qro": {Lat: 20.6173, Lng: -100.1857}, // Querétaro
	"scl": {Lat: -33.3930, Lng: -70.7858}, // Santiago
	"sea": {Lat: 47.4502, Lng: -122.3088}, // Seattle
	"sin": {Lat: 1.3644, Lng: 103.9915},   // Singapore
	"sjc": {Lat: 37.3639, Lng: -121.9289}, // San Jose
	"syd": {Lat: -33.9399, Lng: 151.1753}, // Sydney
	"waw": {Lat: 52.1672, Lng: 20.9679},   // Warsaw
	"yul": {Lat: 45.4706, Lng: -73.7408},  // Montreal
	"yyz": {Lat: 43.6777, Lng: -79.6248},  // Toronto
}

// Lookup resolves a region code to its coordinate. Keys are
// case-insensitive.
func Lookup(key string) (core.LatLng, bool) {
	p, ok := regions[util.NormalizeKey(key)]
	return p, ok
}

// Keys returns all known region codes. Intended for diagnostics; order is
// unspecified.
func Keys() []string {
	out := make([]string, 0, len(regions))
	for k := range regions {
		out = append(out, k)
	}
	return out
}
