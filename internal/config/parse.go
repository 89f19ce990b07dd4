package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/aprs2influxdb/internal/errors"
)

// ParseBool reports whether value is one of t, true or 1, ignoring case
// and surrounding whitespace. Anything else is false.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "t", "true", "1":
		return true
	}
	return false
}

// ParseInterval parses SS, MM:SS or HH:MM:SS with optional fractional
// seconds (up to microseconds), e.g. "10:00" or "01:02:03.5".
func ParseInterval(value string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) > 3 {
		return 0, errors.Wrapf(errors.ErrInvalidInterval, "%q has more than three parts", value)
	}

	limits := []int{23, 59, 61}[3-len(parts):]
	units := []time.Duration{time.Hour, time.Minute, time.Second}[3-len(parts):]

	var total time.Duration
	for i, part := range parts {
		if i == len(parts)-1 {
			if whole, frac, ok := strings.Cut(part, "."); ok {
				d, err := parseFraction(value, frac)
				if err != nil {
					return 0, err
				}
				total += d
				part = whole
			}
		}
		n, err := parseComponent(value, part, limits[i])
		if err != nil {
			return 0, err
		}
		total += time.Duration(n) * units[i]
	}
	return total, nil
}

func parseComponent(value, part string, limit int) (int, error) {
	if len(part) == 0 || len(part) > 2 {
		return 0, errors.Wrapf(errors.ErrInvalidInterval, "%q: bad component %q", value, part)
	}
	n, err := strconv.Atoi(part)
	if err != nil || n < 0 || n > limit {
		return 0, errors.Wrapf(errors.ErrInvalidInterval, "%q: bad component %q", value, part)
	}
	return n, nil
}

func parseFraction(value, frac string) (time.Duration, error) {
	if len(frac) == 0 || len(frac) > 6 {
		return 0, errors.Wrapf(errors.ErrInvalidInterval, "%q: bad fraction %q", value, frac)
	}
	n, err := strconv.Atoi(frac)
	if err != nil || n < 0 {
		return 0, errors.Wrapf(errors.ErrInvalidInterval, "%q: bad fraction %q", value, frac)
	}
	for i := len(frac); i < 6; i++ {
		n *= 10
	}
	return time.Duration(n) * time.Microsecond, nil
}

// FormatInterval renders d as HH:MM:SS, the inverse of ParseInterval
// for whole seconds.
func FormatInterval(d time.Duration) string {
	d = d.Round(time.Microsecond)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := d % time.Minute
	sec := strconv.FormatFloat(s.Seconds(), 'f', -1, 64)
	if s < 10*time.Second {
		sec = "0" + sec
	}
	return strconv.Itoa(h) + ":" + pad2(m) + ":" + sec
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// =============================================================================
// Resolver
// =============================================================================

// Resolver resolves configuration values from multiple sources in order
// of precedence. Parse failures are collected rather than returned.
type Resolver struct {
	sources []Source
	errs    *errors.ValidationErrors
}

// NewResolver creates a resolver; earlier sources win.
func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources, errs: errors.NewValidationErrors()}
}

func (r *Resolver) lookup(key string) (string, Source, bool) {
	for _, src := range r.sources {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(key); ok {
			return v, src, true
		}
	}
	return "", nil, false
}

// ResolveString resolves a string value.
func (r *Resolver) ResolveString(key, def string) string {
	if v, _, ok := r.lookup(key); ok {
		return v
	}
	return def
}

// ResolveInt resolves an integer value.
func (r *Resolver) ResolveInt(key string, def int) int {
	v, src, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.errs.Add(errors.NewInvalidValue(key, v, "not an integer (from "+src.Name()+")"))
		return def
	}
	return n
}

// ResolveFloat resolves a floating point value.
func (r *Resolver) ResolveFloat(key string, def float64) float64 {
	v, src, ok := r.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		r.errs.Add(errors.NewInvalidValue(key, v, "not a number (from "+src.Name()+")"))
		return def
	}
	return f
}

// ResolveBool resolves a boolean value with ParseBool.
func (r *Resolver) ResolveBool(key string, def bool) bool {
	if v, _, ok := r.lookup(key); ok {
		return ParseBool(v)
	}
	return def
}

// ResolveInterval resolves a duration with ParseInterval.
func (r *Resolver) ResolveInterval(key string, def time.Duration) time.Duration {
	v, src, ok := r.lookup(key)
	if !ok {
		return def
	}
	d, err := ParseInterval(v)
	if err != nil {
		r.errs.Add(errors.Wrapf(err, "%s (from %s)", key, src.Name()))
		return def
	}
	return d
}

// Err returns the collected parse errors, if any.
func (r *Resolver) Err() error {
	return r.errs.Err()
}
