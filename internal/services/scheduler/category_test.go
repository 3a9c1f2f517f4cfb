package scheduler

import (
	"errors"
	"testing"
	"time"
)

func TestClassifyDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		minutes int
		want    DurationCategory
	}{
		{name: "zero is short", minutes: 0, want: DurationShort},
		{name: "59 is short", minutes: 59, want: DurationShort},
		{name: "60 is medium", minutes: 60, want: DurationMedium},
		{name: "eight hours is medium", minutes: 480, want: DurationMedium},
		{name: "eight hours and a minute is long", minutes: 481, want: DurationLong},
		{name: "a week is long", minutes: 7 * 24 * 60, want: DurationLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ClassifyDuration(tt.minutes)
			if err != nil {
				t.Fatalf("ClassifyDuration(%d) unexpected error: %v", tt.minutes, err)
			}
			if got != tt.want {
				t.Errorf("ClassifyDuration(%d) = %s, want %s", tt.minutes, got, tt.want)
			}
		})
	}
}

func TestClassifyDuration_Partition(t *testing.T) {
	t.Parallel()

	for m := 0; m <= 2000; m++ {
		got, err := ClassifyDuration(m)
		if err != nil {
			t.Fatalf("ClassifyDuration(%d) unexpected error: %v", m, err)
		}
		var want DurationCategory
		switch {
		case m < 60:
			want = DurationShort
		case m <= 480:
			want = DurationMedium
		default:
			want = DurationLong
		}
		if got != want {
			t.Fatalf("ClassifyDuration(%d) = %s, want %s", m, got, want)
		}
	}
}

func TestClassifyDuration_Negative(t *testing.T) {
	t.Parallel()

	if _, err := ClassifyDuration(-1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestDetermineOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		minutes int
		want    time.Duration
	}{
		{minutes: 0, want: 10 * time.Minute},
		{minutes: 59, want: 10 * time.Minute},
		{minutes: 60, want: time.Hour},
		{minutes: 480, want: time.Hour},
		{minutes: 481, want: 24 * time.Hour},
	}

	for _, tt := range tests {
		got, err := DetermineOffset(tt.minutes)
		if err != nil {
			t.Fatalf("DetermineOffset(%d) unexpected error: %v", tt.minutes, err)
		}
		if got != tt.want {
			t.Errorf("DetermineOffset(%d) = %v, want %v", tt.minutes, got, tt.want)
		}
	}
}

func TestLookupOffset_UnknownCategory(t *testing.T) {
	t.Parallel()

	if got, ok := LookupOffset(DurationCategory("epic")); ok || got != 0 {
		t.Errorf("Expected unknown category to be reported, got %v ok=%v", got, ok)
	}
}

func TestLookupOffset_EveryCategoryHasOffset(t *testing.T) {
	t.Parallel()

	for _, category := range []DurationCategory{DurationShort, DurationMedium, DurationLong} {
		if got, ok := LookupOffset(category); !ok || got <= 0 {
			t.Errorf("LookupOffset(%s) = %v ok=%v, want a positive offset", category, got, ok)
		}
	}
}

func TestClassifyPrep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		minutes int
		want    PrepCategory
	}{
		{name: "zero", minutes: 0, want: PrepUnderFourHours},
		{name: "just under four hours", minutes: 239, want: PrepUnderFourHours},
		{name: "four hours", minutes: 240, want: PrepOneDay},
		{name: "just under a day", minutes: 1439, want: PrepOneDay},
		{name: "one day", minutes: 1440, want: PrepFewDays},
		{name: "just under a week", minutes: 10079, want: PrepFewDays},
		{name: "one week", minutes: 10080, want: PrepLongTerm},
		{name: "eight days", minutes: 8 * 24 * 60, want: PrepLongTerm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ClassifyPrep(tt.minutes)
			if err != nil {
				t.Fatalf("ClassifyPrep(%d) unexpected error: %v", tt.minutes, err)
			}
			if got != tt.want {
				t.Errorf("ClassifyPrep(%d) = %s, want %s", tt.minutes, got, tt.want)
			}
		})
	}
}

func TestClassifyPrep_Negative(t *testing.T) {
	t.Parallel()

	if _, err := ClassifyPrep(-30); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
