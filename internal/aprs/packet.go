// Package aprs decodes APRS-IS packets in TNC2 text format and keeps
// per-station telemetry definitions.
//
// A decoded packet is a Packet: a map from field name to value. Which
// fields are present depends on the packet type; consumers check presence
// rather than relying on zero values.
package aprs

import "strings"

// PacketType is the decoded APRS data type.
type PacketType int

const (
	TypeUnknown PacketType = iota
	TypePosition
	TypeMessage
	TypeTelemetryData
	TypeStatus
	TypeObject
	TypeItem
	TypeMicE
	TypeWeather
	TypeCapabilities
	TypeThirdParty
	TypeQuery
	TypeUserDefined
)

// String returns the symbolic name used in tags and fields.
func (t PacketType) String() string {
	switch t {
	case TypePosition:
		return "POSITION"
	case TypeMessage:
		return "MESSAGE"
	case TypeTelemetryData:
		return "TELEMETRY_DATA"
	case TypeStatus:
		return "STATUS"
	case TypeObject:
		return "OBJECT"
	case TypeItem:
		return "ITEM"
	case TypeMicE:
		return "MIC_E"
	case TypeWeather:
		return "WEATHER"
	case TypeCapabilities:
		return "CAPABILITIES"
	case TypeThirdParty:
		return "THIRD_PARTY"
	case TypeQuery:
		return "QUERY"
	case TypeUserDefined:
		return "USER_DEFINED"
	default:
		return "UNKNOWN"
	}
}

// Field names.
const (
	FieldRaw         = "raw"
	FieldSource      = "source"
	FieldDestination = "destination"
	FieldPath        = "path"
	FieldVia         = "via"
	FieldType        = "type"
	FieldBody        = "body"

	FieldAddressee   = "addressee"
	FieldMessageText = "message_text"
	FieldMessageID   = "message_id"

	FieldSequence    = "sequence"
	FieldValuesRaw   = "values_raw"
	FieldBits        = "bits"
	FieldValuesReal  = "values_real"
	FieldUnitLabels  = "unit_labels"
	FieldParmNames   = "parm_names"
	FieldProjectName = "project_name"

	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldSymbolTable = "symbol_table"
	FieldSymbol      = "symbol"
	FieldComment     = "comment"
	FieldStatus      = "status"
	FieldName        = "name"
	FieldAlive       = "alive"
)

// Packet is a decoded APRS packet.
type Packet map[string]any

// Type returns the packet type, or TypeUnknown when unset.
func (p Packet) Type() PacketType {
	t, _ := p[FieldType].(PacketType)
	return t
}

// Source returns the originating station.
func (p Packet) Source() string {
	return p.String(FieldSource)
}

// String returns a string field, or "" when absent or not a string.
func (p Packet) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Has reports whether key is present.
func (p Packet) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Callsign normalizes a station identifier for lookups: upper case,
// surrounding blanks removed.
func Callsign(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
