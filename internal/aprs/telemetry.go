package aprs

import (
	"strconv"
	"strings"
	"sync"
)

// Telemetry definition message prefixes. A station publishes them as
// messages addressed to itself.
const (
	prefixParm = "PARM."
	prefixUnit = "UNIT."
	prefixEqns = "EQNS."
	prefixBits = "BITS."
)

// analogChannels is the number of analog telemetry channels.
const analogChannels = 5

// Coefficients scale a raw telemetry value: a*x^2 + b*x + c.
type Coefficients struct {
	A, B, C float64
}

// Apply returns the scaled value.
func (c Coefficients) Apply(x float64) float64 {
	return c.A*x*x + c.B*x + c.C
}

// Identity leaves values unchanged.
var Identity = Coefficients{B: 1}

// Definitions are the telemetry definitions known for one station.
type Definitions struct {
	Names   []string
	Units   []string
	Eqns    []Coefficients
	Bits    string
	Project string

	hasUnits   bool
	hasProject bool
}

// TelemetryEnricher learns telemetry definitions from messages and applies
// them to telemetry data. It is safe for concurrent use.
type TelemetryEnricher struct {
	mu       sync.RWMutex
	stations map[string]*Definitions
}

// NewTelemetryEnricher creates an empty enricher.
func NewTelemetryEnricher() *TelemetryEnricher {
	return &TelemetryEnricher{stations: make(map[string]*Definitions)}
}

// Register records a PARM., UNIT., EQNS. or BITS. message. It returns
// false when p is not a telemetry definition.
func (e *TelemetryEnricher) Register(p Packet) bool {
	if p.Type() != TypeMessage {
		return false
	}
	station := Callsign(p.String(FieldAddressee))
	text := p.String(FieldMessageText)
	if station == "" {
		return false
	}

	var apply func(*Definitions)
	switch {
	case strings.HasPrefix(text, prefixParm):
		names := splitList(text[len(prefixParm):])
		apply = func(d *Definitions) { d.Names = names }
	case strings.HasPrefix(text, prefixUnit):
		units := splitList(text[len(prefixUnit):])
		apply = func(d *Definitions) { d.Units = units; d.hasUnits = true }
	case strings.HasPrefix(text, prefixEqns):
		eqns, ok := parseEqns(text[len(prefixEqns):])
		if !ok {
			return false
		}
		apply = func(d *Definitions) { d.Eqns = eqns }
	case strings.HasPrefix(text, prefixBits):
		bits, project, ok := parseBits(text[len(prefixBits):])
		if !ok {
			return false
		}
		apply = func(d *Definitions) { d.Bits = bits; d.Project = project; d.hasProject = true }
	default:
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.stations[station]
	if !ok {
		d = &Definitions{}
		e.stations[station] = d
	}
	apply(d)
	return true
}

// Enrich adds values_real, unit_labels, parm_names and project_name to a
// TELEMETRY_DATA packet from a station with known definitions. Without
// EQNS the raw values are used unchanged. It returns false when nothing is
// known about the source station.
func (e *TelemetryEnricher) Enrich(p Packet) bool {
	if p.Type() != TypeTelemetryData {
		return false
	}
	raw, ok := p[FieldValuesRaw].([]float64)
	if !ok {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.stations[Callsign(p.Source())]
	if !ok {
		return false
	}

	scaled := make([]float64, len(raw))
	for i, x := range raw {
		c := Identity
		if i < len(d.Eqns) {
			c = d.Eqns[i]
		}
		scaled[i] = c.Apply(x)
	}
	p[FieldValuesReal] = scaled

	if d.hasUnits {
		p[FieldUnitLabels] = firstN(d.Units, len(raw))
	}
	if d.Names != nil {
		p[FieldParmNames] = firstN(d.Names, len(raw))
	}
	if d.hasProject {
		p[FieldProjectName] = d.Project
	}
	return true
}

// Definitions returns a copy of the definitions for station.
func (e *TelemetryEnricher) Definitions(station string) (Definitions, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.stations[Callsign(station)]
	if !ok {
		return Definitions{}, false
	}
	cp := *d
	cp.Names = append([]string(nil), d.Names...)
	cp.Units = append([]string(nil), d.Units...)
	cp.Eqns = append([]Coefficients(nil), d.Eqns...)
	return cp, true
}

// Stations returns the number of stations with definitions.
func (e *TelemetryEnricher) Stations() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.stations)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.TrimSpace(part))
	}
	// Trailing empty labels carry no information.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func parseEqns(s string) ([]Coefficients, bool) {
	parts := strings.Split(s, ",")
	if len(parts) > 3*analogChannels {
		parts = parts[:3*analogChannels]
	}
	nums := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			nums = append(nums, 0)
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, false
		}
		nums = append(nums, v)
	}
	if len(nums)%3 != 0 || len(nums) == 0 {
		return nil, false
	}
	eqns := make([]Coefficients, 0, len(nums)/3)
	for i := 0; i < len(nums); i += 3 {
		eqns = append(eqns, Coefficients{A: nums[i], B: nums[i+1], C: nums[i+2]})
	}
	return eqns, true
}

func parseBits(s string) (string, string, bool) {
	if len(s) < 8 {
		return "", "", false
	}
	for i := 0; i < 8; i++ {
		if s[i] != '0' && s[i] != '1' {
			return "", "", false
		}
	}
	project := ""
	if rest := s[8:]; strings.HasPrefix(rest, ",") {
		project = strings.TrimSpace(rest[1:])
	}
	return s[:8], project, true
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return append([]string(nil), s...)
}
