package aprs

import (
	"strconv"
	"strings"

	"github.com/xtxerr/aprs2influxdb/internal/errors"
)

// Parser decodes raw APRS-IS lines. The zero value is ready to use.
type Parser struct{}

// Parse decodes one line.
func (Parser) Parse(raw string) (Packet, error) {
	return Parse(raw)
}

// Parse decodes one TNC2 line: SRC>DST[,PATH...]:BODY.
func Parse(raw string) (Packet, error) {
	line := strings.TrimRight(raw, "\r\n")
	if line == "" {
		return nil, errors.NewDecode("empty packet")
	}
	if line[0] == '#' {
		return nil, errors.NewDecode("server comment")
	}

	header, body, ok := strings.Cut(line, ":")
	if !ok {
		return nil, errors.NewDecode("missing ':' after header")
	}
	src, route, ok := strings.Cut(header, ">")
	if !ok {
		return nil, errors.NewDecode("missing '>' in header")
	}
	if src == "" || strings.ContainsAny(src, " \t") {
		return nil, errors.NewDecode("invalid source " + strconv.Quote(src))
	}
	hops := strings.Split(route, ",")
	dst := hops[0]
	if dst == "" {
		return nil, errors.NewDecode("empty destination")
	}
	if body == "" {
		return nil, errors.NewDecode("empty body")
	}

	path := make([]string, 0, len(hops)-1)
	for _, h := range hops[1:] {
		if h == "" {
			return nil, errors.NewDecode("empty path element")
		}
		path = append(path, h)
	}

	p := Packet{
		FieldRaw:         line,
		FieldSource:      src,
		FieldDestination: dst,
		FieldPath:        path,
		FieldBody:        body,
	}
	if via, ok := Via(path); ok {
		p[FieldVia] = via
	}

	t, err := decodeBody(p, body)
	if err != nil {
		return nil, err
	}
	p[FieldType] = t
	return p, nil
}

// Via returns the station that relayed the packet: the station following
// a q construct (qAC, qAR, ...), else the last digipeater marked as used
// with '*', else the last path element that is not a q construct.
func Via(path []string) (string, bool) {
	for i, hop := range path {
		if isQConstruct(hop) && i+1 < len(path) {
			return path[i+1], true
		}
	}
	for i := len(path) - 1; i >= 0; i-- {
		if strings.HasSuffix(path[i], "*") {
			return strings.TrimSuffix(path[i], "*"), true
		}
	}
	for i := len(path) - 1; i >= 0; i-- {
		if !isQConstruct(path[i]) {
			return path[i], true
		}
	}
	return "", false
}

func isQConstruct(hop string) bool {
	return len(hop) == 3 && strings.HasPrefix(hop, "qA")
}

func decodeBody(p Packet, body string) (PacketType, error) {
	switch body[0] {
	case '!', '=':
		return decodePosition(p, body[1:]), nil
	case '/', '@':
		if len(body) < 8 {
			return TypeUnknown, errors.NewDecode("short timestamped position")
		}
		return decodePosition(p, body[8:]), nil
	case ':':
		return TypeMessage, decodeMessage(p, body[1:])
	case 'T':
		if strings.HasPrefix(body, "T#") {
			return TypeTelemetryData, decodeTelemetry(p, body[2:])
		}
	case '>':
		p[FieldStatus] = body[1:]
		return TypeStatus, nil
	case ';':
		return TypeObject, decodeObject(p, body[1:])
	case ')':
		return TypeItem, decodeItem(p, body[1:])
	case '`', '\'', 0x1c, 0x1d:
		if len(body) > 9 {
			p[FieldComment] = body[9:]
		}
		return TypeMicE, nil
	case '_':
		p[FieldComment] = body[1:]
		return TypeWeather, nil
	case '<':
		return TypeCapabilities, nil
	case '}':
		return TypeThirdParty, nil
	case '?':
		return TypeQuery, nil
	case '{':
		return TypeUserDefined, nil
	}
	return TypeUnknown, nil
}

// decodePosition extracts coordinates when present. Unreadable positions
// are kept as POSITION without coordinates.
func decodePosition(p Packet, s string) PacketType {
	var symbol byte
	switch {
	case len(s) >= 19 && isDigitOrSpace(s[0]):
		lat, okLat := parseLatitude(s[0:8])
		lon, okLon := parseLongitude(s[9:18])
		if okLat && okLon {
			p[FieldLatitude] = lat
			p[FieldLongitude] = lon
		}
		p[FieldSymbolTable] = string(s[8])
		symbol = s[18]
		p[FieldComment] = s[19:]
	case len(s) >= 13:
		lat, lon, ok := parseCompressed(s[1:9])
		if ok {
			p[FieldLatitude] = lat
			p[FieldLongitude] = lon
		}
		p[FieldSymbolTable] = string(s[0])
		symbol = s[9]
		p[FieldComment] = s[13:]
	default:
		p[FieldComment] = s
		return TypePosition
	}
	p[FieldSymbol] = string(symbol)
	if symbol == '_' {
		return TypeWeather
	}
	return TypePosition
}

func isDigitOrSpace(c byte) bool {
	return c == ' ' || (c >= '0' && c <= '9')
}

func parseLatitude(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "0")
	deg, err1 := strconv.Atoi(s[0:2])
	mins, err2 := strconv.ParseFloat(s[2:7], 64)
	if err1 != nil || err2 != nil || deg > 90 || mins >= 60 {
		return 0, false
	}
	v := float64(deg) + mins/60
	switch s[7] {
	case 'N':
	case 'S':
		v = -v
	default:
		return 0, false
	}
	return v, true
}

func parseLongitude(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "0")
	deg, err1 := strconv.Atoi(s[0:3])
	mins, err2 := strconv.ParseFloat(s[3:8], 64)
	if err1 != nil || err2 != nil || deg > 180 || mins >= 60 {
		return 0, false
	}
	v := float64(deg) + mins/60
	switch s[8] {
	case 'E':
	case 'W':
		v = -v
	default:
		return 0, false
	}
	return v, true
}

func parseCompressed(s string) (float64, float64, bool) {
	y, ok1 := base91(s[0:4])
	x, ok2 := base91(s[4:8])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return 90 - float64(y)/380926, -180 + float64(x)/190463, true
}

func base91(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := int(s[i]) - 33
		if c < 0 || c > 90 {
			return 0, false
		}
		n = n*91 + c
	}
	return n, true
}

// decodeMessage handles ":ADDRESSEE:text{id".
func decodeMessage(p Packet, s string) error {
	if len(s) < 10 || s[9] != ':' {
		return errors.NewDecode("malformed message addressee")
	}
	p[FieldAddressee] = strings.TrimSpace(s[:9])
	text := s[10:]
	if i := strings.LastIndexByte(text, '{'); i >= 0 {
		p[FieldMessageID] = text[i+1:]
		text = text[:i]
	}
	p[FieldMessageText] = text
	return nil
}

// decodeTelemetry handles "seq,a1,a2,a3,a4,a5,bbbbbbbb[comment]".
// Fewer than five analog channels are accepted.
func decodeTelemetry(p Packet, s string) error {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return errors.NewDecode("telemetry without values")
	}
	p[FieldSequence] = strings.TrimSpace(parts[0])

	analog := parts[1:]
	var bits string
	if len(analog) > 5 {
		bits = strings.Join(analog[5:], ",")
		analog = analog[:5]
	}

	values := make([]float64, 0, len(analog))
	for _, a := range analog {
		v, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return errors.NewDecode("telemetry value " + strconv.Quote(a))
		}
		values = append(values, v)
	}
	p[FieldValuesRaw] = values

	if bits != "" {
		n := 0
		for n < len(bits) && n < 8 && (bits[n] == '0' || bits[n] == '1') {
			n++
		}
		if n != 8 {
			return errors.NewDecode("telemetry bits " + strconv.Quote(bits))
		}
		p[FieldBits] = bits[:8]
		if len(bits) > 8 {
			p[FieldComment] = bits[8:]
		}
	}
	return nil
}

func decodeObject(p Packet, s string) error {
	if len(s) < 10 {
		return errors.NewDecode("short object")
	}
	p[FieldName] = strings.TrimRight(s[:9], " ")
	switch s[9] {
	case '*':
		p[FieldAlive] = true
	case '_':
		p[FieldAlive] = false
	default:
		return errors.NewDecode("object state " + strconv.Quote(s[9:10]))
	}
	if len(s) >= 17 {
		decodePosition(p, s[17:])
	}
	return nil
}

func decodeItem(p Packet, s string) error {
	i := strings.IndexAny(s, "!_")
	if i < 3 || i > 9 {
		return errors.NewDecode("malformed item name")
	}
	p[FieldName] = s[:i]
	p[FieldAlive] = s[i] == '!'
	decodePosition(p, s[i+1:])
	return nil
}
