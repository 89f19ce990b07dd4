package point

import (
	"math"
	"testing"
	"time"

	"github.com/xtxerr/aprs2influxdb/internal/aprs"
)

func completePacket() aprs.Packet {
	return aprs.Packet{
		aprs.FieldSource:      "N0CALL",
		aprs.FieldDestination: "APRS",
		aprs.FieldPath:        []string{"WIDE1-1"},
		aprs.FieldVia:         "WIDE1-1",
		aprs.FieldType:        aprs.TypeTelemetryData,
		aprs.FieldValuesReal:  []float64{1.0, 2.5},
		aprs.FieldProjectName: "P",
		aprs.FieldUnitLabels:  []string{"V", "A"},
	}
}

func TestBuildComplete(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	pt, ok := Build(completePacket(), now)
	if !ok {
		t.Fatal("Build returned false for a complete packet")
	}

	if pt.Measurement != "APRS" {
		t.Errorf("Measurement = %q", pt.Measurement)
	}
	wantTags := map[string]string{
		"source":      "N0CALL",
		"destination": "APRS",
		"via":         "WIDE1-1",
		"type":        "TELEMETRY_DATA",
	}
	if len(pt.Tags) != len(wantTags) {
		t.Errorf("Tags = %v", pt.Tags)
	}
	for k, v := range wantTags {
		if pt.Tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, pt.Tags[k], v)
		}
	}

	wantFields := map[string]string{
		"source":       "N0CALL",
		"destination":  "APRS",
		"path":         "WIDE1-1",
		"via":          "WIDE1-1",
		"type":         "TELEMETRY_DATA",
		"values_real":  "1.0,2.5",
		"project_name": "P",
		"unit_labels":  "V,A",
	}
	if len(pt.Fields) != len(wantFields) {
		t.Errorf("Fields = %v", pt.Fields)
	}
	for k, v := range wantFields {
		if pt.Fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, pt.Fields[k], v)
		}
	}

	if pt.Time.Location() != time.UTC {
		t.Errorf("Time location = %v, want UTC", pt.Time.Location())
	}
	if !pt.Time.Equal(now) {
		t.Errorf("Time = %v, want %v", pt.Time, now)
	}
}

func TestBuildRejectsEveryMissingSubset(t *testing.T) {
	now := time.Now()
	n := len(FieldKeys)

	// Every non-empty subset of required keys removed.
	for mask := 1; mask < 1<<n; mask++ {
		p := completePacket()
		var removed []string
		for i, key := range FieldKeys {
			if mask&(1<<i) != 0 {
				delete(p, key)
				removed = append(removed, key)
			}
		}
		if _, ok := Build(p, now); ok {
			t.Fatalf("Build succeeded with %v removed", removed)
		}
		if got := Missing(p); len(got) != len(removed) {
			t.Fatalf("Missing = %v, want %v", got, removed)
		}
	}
}

func TestBuildIgnoresExtraFields(t *testing.T) {
	p := completePacket()
	p[aprs.FieldRaw] = "N0CALL>APRS,WIDE1-1:T#001,1,2.5"
	p[aprs.FieldParmNames] = []string{"a", "b"}

	pt, ok := Build(p, time.Now())
	if !ok {
		t.Fatal("Build returned false")
	}
	if _, ok := pt.Fields[aprs.FieldRaw]; ok {
		t.Error("raw copied into fields")
	}
	if len(pt.Fields) != len(FieldKeys) {
		t.Errorf("len(Fields) = %d, want %d", len(pt.Fields), len(FieldKeys))
	}
}

func TestBuildEmptyPath(t *testing.T) {
	p := completePacket()
	p[aprs.FieldPath] = []string{}

	pt, ok := Build(p, time.Now())
	if !ok {
		t.Fatal("Build returned false")
	}
	if pt.Fields["path"] != "" {
		t.Errorf("path = %q, want empty", pt.Fields["path"])
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"text", "text"},
		{[]string{"a", "b", "c"}, "a,b,c"},
		{[]string{}, ""},
		{[]float64{1.0, 2.5}, "1.0,2.5"},
		{[]any{1.0, "x", 3}, "1.0,x,3"},
		{aprs.TypeMicE, "MIC_E"},
		{42, "42"},
		{int64(-7), "-7"},
		{true, "True"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Render(tt.in); got != tt.want {
			t.Errorf("Render(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1.0"},
		{2.5, "2.5"},
		{0, "0.0"},
		{-3, "-3.0"},
		{0.1, "0.1"},
		{123456.789, "123456.789"},
		{0.0001, "0.0001"},
		{0.00001, "1e-05"},
		{1e16, "1e+16"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
		{math.NaN(), "nan"},
	}
	for _, tt := range tests {
		if got := FormatFloat(tt.in); got != tt.want {
			t.Errorf("FormatFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
