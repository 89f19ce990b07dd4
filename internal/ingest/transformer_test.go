package ingest

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/aprs2influxdb/internal/aprs"
	"github.com/xtxerr/aprs2influxdb/internal/errors"
	"github.com/xtxerr/aprs2influxdb/internal/logging"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

func fixedClock() time.Time { return fixedNow }

type stubDecoder map[string]aprs.Packet

func (d stubDecoder) Parse(raw string) (aprs.Packet, error) {
	p, ok := d[raw]
	if !ok {
		return nil, errors.NewDecode(fmt.Sprintf("unknown line %q", raw))
	}
	// Enrichers mutate packets in place.
	cp := make(aprs.Packet, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp, nil
}

type recordingEnricher struct {
	registered []aprs.Packet
	enriched   []aprs.Packet
}

func (e *recordingEnricher) Register(p aprs.Packet) bool {
	e.registered = append(e.registered, p)
	return true
}

func (e *recordingEnricher) Enrich(p aprs.Packet) bool {
	e.enriched = append(e.enriched, p)
	return false
}

func telemetryPacket() aprs.Packet {
	return aprs.Packet{
		aprs.FieldType:        aprs.TypeTelemetryData,
		aprs.FieldSource:      "N0CALL-9",
		aprs.FieldDestination: "APRS",
		aprs.FieldPath:        []string{"WIDE1-1"},
		aprs.FieldVia:         "WIDE1-1",
		aprs.FieldValuesReal:  []float64{3.3},
		aprs.FieldUnitLabels:  []string{"V"},
		aprs.FieldProjectName: "demo",
	}
}

func TestTransformCompletePacket(t *testing.T) {
	dec := stubDecoder{"telemetry": telemetryPacket()}
	enr := &recordingEnricher{}
	tr := NewTransformer(dec, enr, fixedClock, nil)

	p, ok := tr.Transform("telemetry")
	if !ok {
		t.Fatal("Transform skipped a complete packet")
	}

	wantTags := map[string]string{
		"type":        "TELEMETRY_DATA",
		"source":      "N0CALL-9",
		"destination": "APRS",
		"via":         "WIDE1-1",
	}
	for k, want := range wantTags {
		if got := p.Tags[k]; got != want {
			t.Errorf("tag %s = %q, want %q", k, got, want)
		}
	}
	wantFields := map[string]string{
		"path":         "WIDE1-1",
		"values_real":  "3.3",
		"unit_labels":  "V",
		"project_name": "demo",
		"type":         "TELEMETRY_DATA",
	}
	for k, want := range wantFields {
		if got := p.Fields[k]; got != want {
			t.Errorf("field %s = %q, want %q", k, got, want)
		}
	}
	if !p.Time.Equal(fixedNow) || p.Time.Location() != time.UTC {
		t.Errorf("time = %v, want %v in UTC", p.Time, fixedNow)
	}
	if len(enr.enriched) != 1 || len(enr.registered) != 0 {
		t.Errorf("enriched %d, registered %d", len(enr.enriched), len(enr.registered))
	}
}

func TestTransformDecodeError(t *testing.T) {
	stats := newStats()
	tr := NewTransformer(stubDecoder{}, &recordingEnricher{}, fixedClock, stats)

	if _, ok := tr.Transform("garbage"); ok {
		t.Fatal("Transform returned a point for an undecodable line")
	}
	if got := stats.DecodeErrors.Load(); got != 1 {
		t.Errorf("DecodeErrors = %d, want 1", got)
	}
	if got := stats.Skipped.Load(); got != 0 {
		t.Errorf("Skipped = %d, want 0", got)
	}
}

func TestTransformIncompletePacket(t *testing.T) {
	position := aprs.Packet{
		aprs.FieldType:        aprs.TypePosition,
		aprs.FieldSource:      "N0CALL",
		aprs.FieldDestination: "APRS",
		aprs.FieldPath:        []string{},
	}
	stats := newStats()
	enr := &recordingEnricher{}
	tr := NewTransformer(stubDecoder{"pos": position}, enr, fixedClock, stats)

	if _, ok := tr.Transform("pos"); ok {
		t.Fatal("Transform returned a point for an incomplete packet")
	}
	if got := stats.Skipped.Load(); got != 1 {
		t.Errorf("Skipped = %d, want 1", got)
	}
	if len(enr.registered)+len(enr.enriched) != 0 {
		t.Error("position packet was passed to the enricher")
	}
}

func TestTransformRegistersMessages(t *testing.T) {
	msg := aprs.Packet{
		aprs.FieldType:        aprs.TypeMessage,
		aprs.FieldSource:      "N0CALL-9",
		aprs.FieldAddressee:   "N0CALL-9",
		aprs.FieldMessageText: "UNIT.V",
	}
	stats := newStats()
	enr := &recordingEnricher{}
	tr := NewTransformer(stubDecoder{"msg": msg}, enr, fixedClock, stats)

	if _, ok := tr.Transform("msg"); ok {
		t.Error("message without telemetry fields produced a point")
	}
	if len(enr.registered) != 1 {
		t.Fatalf("registered = %d, want 1", len(enr.registered))
	}
	if got := stats.Definitions.Load(); got != 1 {
		t.Errorf("Definitions = %d, want 1", got)
	}
}

func TestTransformResolvesTelemetryDefinitions(t *testing.T) {
	stats := newStats()
	tr := NewTransformer(aprs.Parser{}, aprs.NewTelemetryEnricher(), fixedClock, stats)

	lines := []string{
		"N0CALL-9>APRS,WIDE1-1::N0CALL-9 :PARM.Battery",
		"N0CALL-9>APRS,WIDE1-1::N0CALL-9 :UNIT.V",
		"N0CALL-9>APRS,WIDE1-1::N0CALL-9 :BITS.00000000,demo",
	}
	for _, line := range lines {
		if _, ok := tr.Transform(line); ok {
			t.Errorf("definition %q produced a point", line)
		}
	}
	if got := stats.Definitions.Load(); got != 3 {
		t.Fatalf("Definitions = %d, want 3", got)
	}

	p, ok := tr.Transform("N0CALL-9>APRS,WIDE1-1:T#001,3.3")
	if !ok {
		t.Fatal("telemetry after definitions was skipped")
	}
	want := map[string]string{
		"source":       "N0CALL-9",
		"path":         "WIDE1-1",
		"via":          "WIDE1-1",
		"type":         "TELEMETRY_DATA",
		"values_real":  "3.3",
		"unit_labels":  "V",
		"project_name": "demo",
	}
	for k, v := range want {
		if got := p.Fields[k]; got != v {
			t.Errorf("field %s = %q, want %q", k, got, v)
		}
	}

	// Another station's telemetry has no definitions and is skipped.
	if _, ok := tr.Transform("OTHER>APRS,WIDE1-1:T#001,3.3"); ok {
		t.Error("telemetry without definitions produced a point")
	}
}

func TestTransformLogsMissingFields(t *testing.T) {
	var buf bytes.Buffer
	logging.InitWriter(&buf, slog.LevelDebug, false)
	defer logging.Init(slog.LevelInfo, false)

	status := aprs.Packet{
		aprs.FieldType:        aprs.TypeStatus,
		aprs.FieldSource:      "N0CALL",
		aprs.FieldDestination: "APRS",
		aprs.FieldPath:        []string{"WIDE1-1"},
		aprs.FieldVia:         "WIDE1-1",
	}
	tr := NewTransformer(stubDecoder{"status": status}, &recordingEnricher{}, fixedClock, nil)
	if _, ok := tr.Transform("status"); ok {
		t.Fatal("status packet produced a point")
	}

	out := buf.String()
	if !strings.Contains(out, "msg=skipped") {
		t.Fatalf("no skip record: %s", out)
	}
	for _, key := range []string{"values_real", "project_name", "unit_labels"} {
		if !strings.Contains(out, key) {
			t.Errorf("skip record does not name %s: %s", key, out)
		}
	}
	if strings.Contains(out, "missing=\"[source") {
		t.Errorf("present field reported missing: %s", out)
	}
}
