// Package point converts decoded APRS packets into time-series points.
package point

import (
	"time"

	"github.com/xtxerr/aprs2influxdb/internal/aprs"
)

// Measurement is the measurement name of every point.
const Measurement = "APRS"

// FieldKeys are the packet fields copied into every point, in order. A
// packet missing any of them produces no point.
var FieldKeys = []string{
	aprs.FieldSource,
	aprs.FieldDestination,
	aprs.FieldPath,
	aprs.FieldVia,
	aprs.FieldType,
	aprs.FieldValuesReal,
	aprs.FieldProjectName,
	aprs.FieldUnitLabels,
}

// TagKeys are the fields also written as tags.
var TagKeys = []string{
	aprs.FieldSource,
	aprs.FieldDestination,
	aprs.FieldVia,
	aprs.FieldType,
}

// Point is one storable observation.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]string
	Time        time.Time
}

// Build converts p into a point stamped with now in UTC. It returns false
// when any of FieldKeys is missing.
func Build(p aprs.Packet, now time.Time) (Point, bool) {
	fields := make(map[string]string, len(FieldKeys))
	for _, key := range FieldKeys {
		v, ok := p[key]
		if !ok {
			return Point{}, false
		}
		fields[key] = Render(v)
	}

	tags := make(map[string]string, len(TagKeys))
	for _, key := range TagKeys {
		tags[key] = fields[key]
	}

	return Point{
		Measurement: Measurement,
		Tags:        tags,
		Fields:      fields,
		Time:        now.UTC(),
	}, true
}

// Missing returns the FieldKeys absent from p.
func Missing(p aprs.Packet) []string {
	var missing []string
	for _, key := range FieldKeys {
		if _, ok := p[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
