package backup

import (
	"testing"
	"time"
)

func TestNextCronTimeDailyAtThreeAM(t *testing.T) {
	after := time.Date(2026, time.July, 31, 10, 0, 0, 0, time.UTC)

	next, err := nextCronTime("0 3 * * *", after)
	if err != nil {
		t.Fatalf("nextCronTime: %v", err)
	}

	want := time.Date(2026, time.August, 1, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextCronTimeSameDayWhenStillAhead(t *testing.T) {
	after := time.Date(2026, time.July, 31, 1, 0, 0, 0, time.UTC)

	next, err := nextCronTime("0 3 * * *", after)
	if err != nil {
		t.Fatalf("nextCronTime: %v", err)
	}

	want := time.Date(2026, time.July, 31, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestParseCronRejectsWrongFieldCount(t *testing.T) {
	if _, err := parseCron("0 3 * *"); err == nil {
		t.Fatal("parseCron with 4 fields returned nil error, want a field-count error")
	}
}

func TestParseCronFieldWildcardMatchesEverything(t *testing.T) {
	f, err := parseCronField("*")
	if err != nil {
		t.Fatalf("parseCronField: %v", err)
	}
	if !f.matches(0) || !f.matches(59) {
		t.Fatal("wildcard field did not match arbitrary values")
	}
}

func TestParseCronFieldListMatchesOnlyListedValues(t *testing.T) {
	f, err := parseCronField("1,2,3")
	if err != nil {
		t.Fatalf("parseCronField: %v", err)
	}
	if !f.matches(2) {
		t.Fatal("expected field to match a listed value")
	}
	if f.matches(4) {
		t.Fatal("field matched a value not in its list")
	}
}
