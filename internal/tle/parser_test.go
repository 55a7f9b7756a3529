package tle

import (
	"strings"
	"testing"
	"time"
)

func TestParseThreeLine(t *testing.T) {
	text := issText + cssName + "\n" + cssLine1 + "\n" + cssLine2 + "\n"

	entries, err := Parse(strings.NewReader(text), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	iss := entries[0]
	if iss.NORADID != 25544 || iss.Name != issName {
		t.Errorf("entry 0 = %d %q", iss.NORADID, iss.Name)
	}
	wantEpoch := time.Date(2025, 2, 14, 4, 19, 40, 0, time.UTC)
	if d := iss.Epoch.Sub(wantEpoch); d < -time.Second || d > time.Second {
		t.Errorf("epoch = %v, want ~%v", iss.Epoch, wantEpoch)
	}
	if entries[1].NORADID != 48274 {
		t.Errorf("entry 1 NORAD = %d, want 48274", entries[1].NORADID)
	}
}

func TestParseTwoLineUsesNoradAsName(t *testing.T) {
	entries, err := Parse(strings.NewReader(issLine1+"\r\n"+issLine2+"\r\n"), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Name != "25544" {
		t.Errorf("name = %q, want 25544", entries[0].Name)
	}
}

func TestParseSkipsMalformed(t *testing.T) {
	text := "BROKEN\n1 ABCDEU 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993\n" +
		issLine2 + "\n" +
		"ORPHAN\n" + issLine2 + "\n" +
		issText +
		"TRUNCATED\n" + issLine1 + "\n"

	entries, err := Parse(strings.NewReader(text), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the valid ISS entry, got %d", len(entries))
	}
	if entries[0].Name != issName {
		t.Errorf("name = %q", entries[0].Name)
	}
}

func TestParseEpochCentury(t *testing.T) {
	tests := []struct {
		in   string
		year int
	}{
		{"98001.00000000", 1998},
		{"57001.00000000", 1957},
		{"56001.00000000", 2056},
		{"25001.50000000", 2025},
	}
	for _, tt := range tests {
		got, err := parseEpoch(tt.in)
		if err != nil {
			t.Fatalf("parseEpoch(%q): %v", tt.in, err)
		}
		if got.Year() != tt.year {
			t.Errorf("parseEpoch(%q) year = %d, want %d", tt.in, got.Year(), tt.year)
		}
	}
	if _, err := parseEpoch("25"); err == nil {
		t.Error("expected error for short epoch")
	}
}

func TestSelect(t *testing.T) {
	entries := []TLEEntry{
		{NORADID: 48274, Name: cssName},
		{NORADID: 25544, Name: issName},
	}

	if e, ok := Select(entries, 25544, ""); !ok || e.Name != issName {
		t.Errorf("select by id = %+v, %v", e, ok)
	}
	if e, ok := Select(entries, 0, "iss (zarya)"); !ok || e.NORADID != 25544 {
		t.Errorf("select by name = %+v, %v", e, ok)
	}
	if _, ok := Select(entries, 99999, "HUBBLE"); ok {
		t.Error("expected no match")
	}
}
