package dates

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	got, err := Parse("2024-03-05")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %s", got)
	}

	got, err = Parse("2024-03-05T10:30:00+05:30")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.Equal(time.Date(2024, 3, 5, 5, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected instant %s", got)
	}

	if _, err := Parse("05/03/2024"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestParseUpper(t *testing.T) {
	got, err := ParseUpper("2024-03-05")
	if err != nil {
		t.Fatalf("ParseUpper: %v", err)
	}
	if got.Day() != 5 || got.Hour() != 23 {
		t.Errorf("expected end of day, got %s", got)
	}
}

func TestDay(t *testing.T) {
	in := time.Date(2024, 3, 5, 22, 15, 0, 0, time.FixedZone("IST", 5*3600+1800))
	if got := Day(in); !got.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected day %s", got)
	}
}
