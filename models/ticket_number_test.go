package models_test

import (
	"testing"
	"time"

	"github.com/sevene/garayi-carwash-v2-sub001/models"
)

func TestNextTicketNumberFormat(t *testing.T) {
	at := time.Date(2026, time.February, 1, 18, 53, 42, 0, time.Local)

	number, err := models.NextTicketNumber("GCW", at, 0)
	if err != nil {
		t.Fatalf("NextTicketNumber: %v", err)
	}
	if number != "GCW-2602011853001" {
		t.Fatalf("expected GCW-2602011853001, got %s", number)
	}

	number, err = models.NextTicketNumber("GCW", at, 41)
	if err != nil {
		t.Fatalf("NextTicketNumber: %v", err)
	}
	if number != "GCW-2602011853042" {
		t.Fatalf("expected GCW-2602011853042, got %s", number)
	}
}

func TestNextTicketNumberSequenceExhausted(t *testing.T) {
	at := time.Date(2026, time.February, 1, 18, 53, 0, 0, time.Local)

	if _, err := models.NextTicketNumber("GCW", at, 998); err != nil {
		t.Fatalf("sequence 999 should still mint: %v", err)
	}
	if _, err := models.NextTicketNumber("GCW", at, 999); err == nil {
		t.Fatal("expected error past 999 tickets in one minute")
	}
	if _, err := models.NextTicketNumber("GCW", at, -1); err == nil {
		t.Fatal("expected error for negative count")
	}
}

func TestTicketMinutePrefix(t *testing.T) {
	at := time.Date(2026, time.December, 31, 23, 59, 59, 0, time.Local)
	prefix := models.TicketMinutePrefix("WASH2", at)
	if prefix != "WASH2-2612312359" {
		t.Fatalf("expected WASH2-2612312359, got %s", prefix)
	}
}

func TestParseTicketNumberRoundTrip(t *testing.T) {
	at := time.Date(2026, time.February, 1, 18, 53, 0, 0, time.Local)
	number, err := models.NextTicketNumber("GCW", at, 6)
	if err != nil {
		t.Fatalf("NextTicketNumber: %v", err)
	}

	parts, ok := models.ParseTicketNumber(number)
	if !ok {
		t.Fatalf("ParseTicketNumber(%q) did not match", number)
	}
	if parts.Prefix != "GCW" {
		t.Fatalf("prefix: expected GCW, got %s", parts.Prefix)
	}
	if parts.Year != 26 || parts.Month != 2 || parts.Day != 1 {
		t.Fatalf("date: expected 26-02-01, got %02d-%02d-%02d", parts.Year, parts.Month, parts.Day)
	}
	if parts.Hour != 18 || parts.Minute != 53 {
		t.Fatalf("time: expected 18:53, got %02d:%02d", parts.Hour, parts.Minute)
	}
	if parts.Sequence != 7 {
		t.Fatalf("sequence: expected 7, got %d", parts.Sequence)
	}
}

func TestParseTicketNumberRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"GCW-260201185300",    // sequence too short
		"GCW-26020118530012",  // sequence too long
		"gcw-2602011853001",   // lowercase prefix
		"GCW2602011853001",    // missing separator
		"GCW-2613011853001",   // month 13
		"GCW-2602321853001",   // day 32
		"GCW-2602012453001",   // hour 24
		"GCW-2602011860001",   // minute 60
		"GCW-2602011853000",   // sequence 0
		"GCW-26020118530ab",   // non-digit sequence
		"-2602011853001",      // empty prefix
	}
	for _, in := range cases {
		if _, ok := models.ParseTicketNumber(in); ok {
			t.Fatalf("ParseTicketNumber(%q) should not match", in)
		}
	}
}
