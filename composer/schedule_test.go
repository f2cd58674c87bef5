package composer

import (
	"testing"
	"time"
)

func TestToUTCInstant(t *testing.T) {
	t.Run("converts using client offset", func(t *testing.T) {
		// UTC+5:30 reports an offset of -330 minutes. 09:00 local is
		// 03:30 UTC the same day.
		got, err := ToUTCInstant("2024-05-01", "09:00", -330)
		if err != nil {
			t.Fatalf("ToUTCInstant returned error: %v", err)
		}
		want := time.Date(2024, 5, 1, 3, 30, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})

	t.Run("zero offset is identity", func(t *testing.T) {
		got, err := ToUTCInstant("2024-05-01", "09:00", 0)
		if err != nil {
			t.Fatalf("ToUTCInstant returned error: %v", err)
		}
		want := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})

	t.Run("crosses date boundary", func(t *testing.T) {
		// UTC-10 (offset +600): 23:00 local on May 1 is 09:00 UTC on May 2.
		got, err := ToUTCInstant("2024-05-01", "23:00", 600)
		if err != nil {
			t.Fatalf("ToUTCInstant returned error: %v", err)
		}
		want := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		if _, err := ToUTCInstant("05/01/2024", "09:00", 0); err == nil {
			t.Error("Expected error for malformed date")
		}
	})

	t.Run("rejects malformed time", func(t *testing.T) {
		if _, err := ToUTCInstant("2024-05-01", "9am", 0); err == nil {
			t.Error("Expected error for malformed time")
		}
	})
}

func TestScheduleRoundTrip(t *testing.T) {
	// FromUTCInstant inverts ToUTCInstant for any whole-minute offset.
	dates := []string{"2024-01-01", "2024-05-01", "2024-12-31"}
	times := []string{"00:00", "09:45", "23:59"}
	for offset := -720; offset <= 840; offset += 45 {
		for _, d := range dates {
			for _, tm := range times {
				instant, err := ToUTCInstant(d, tm, offset)
				if err != nil {
					t.Fatalf("ToUTCInstant(%s, %s, %d): %v", d, tm, offset, err)
				}
				gotDate, gotTime := FromUTCInstant(instant, offset)
				if gotDate != d || gotTime != tm {
					t.Errorf("Round trip (%s %s offset %d) gave %s %s", d, tm, offset, gotDate, gotTime)
				}
			}
		}
	}
}

func TestNewScheduleSelection(t *testing.T) {
	sel, err := NewScheduleSelection("2024-05-01", "09:00", -330)
	if err != nil {
		t.Fatalf("NewScheduleSelection returned error: %v", err)
	}
	if sel.LocalDate != "2024-05-01" || sel.LocalTime != "09:00" {
		t.Errorf("Local fields not preserved: %+v", sel)
	}
	if got := sel.UTCInstant.Format(time.RFC3339); got != "2024-05-01T03:30:00Z" {
		t.Errorf("Expected UTC instant 2024-05-01T03:30:00Z, got %s", got)
	}
}
