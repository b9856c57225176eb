// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package interval

import (
	"errors"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		days  int
		want  []Span
	}{
		{
			name:  "ten days into fives",
			start: "2024-01-01",
			end:   "2024-01-10",
			days:  5,
			want: []Span{
				{Start: day("2024-01-01"), End: day("2024-01-05")},
				{Start: day("2024-01-06"), End: day("2024-01-10")},
			},
		},
		{
			name:  "truncated final span",
			start: "2024-01-01",
			end:   "2024-01-08",
			days:  5,
			want: []Span{
				{Start: day("2024-01-01"), End: day("2024-01-05")},
				{Start: day("2024-01-06"), End: day("2024-01-08")},
			},
		},
		{
			name:  "single day range",
			start: "2024-03-15",
			end:   "2024-03-15",
			days:  30,
			want: []Span{
				{Start: day("2024-03-15"), End: day("2024-03-15")},
			},
		},
		{
			name:  "interval wider than range",
			start: "2024-01-01",
			end:   "2024-01-03",
			days:  365,
			want: []Span{
				{Start: day("2024-01-01"), End: day("2024-01-03")},
			},
		},
		{
			name:  "one day interval",
			start: "2024-02-28",
			end:   "2024-03-01",
			days:  1,
			want: []Span{
				{Start: day("2024-02-28"), End: day("2024-02-28")},
				{Start: day("2024-02-29"), End: day("2024-02-29")},
				{Start: day("2024-03-01"), End: day("2024-03-01")},
			},
		},
		{
			name:  "month boundary",
			start: "2024-01-20",
			end:   "2024-02-10",
			days:  10,
			want: []Span{
				{Start: day("2024-01-20"), End: day("2024-01-29")},
				{Start: day("2024-01-30"), End: day("2024-02-08")},
				{Start: day("2024-02-09"), End: day("2024-02-10")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Partition(tt.start, tt.end, tt.days)
			if err != nil {
				t.Fatalf("Partition() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Partition() returned %d spans, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if !got[i].Start.Equal(tt.want[i].Start) || !got[i].End.Equal(tt.want[i].End) {
					t.Errorf("span %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// Every day in the range must land in exactly one span, and consecutive
// spans must be adjacent.
func TestPartitionContiguity(t *testing.T) {
	spans, err := Partition("2023-11-07", "2024-03-02", 13)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	if !spans[0].Start.Equal(day("2023-11-07")) {
		t.Errorf("first span starts %v, want 2023-11-07", spans[0].Start)
	}
	if !spans[len(spans)-1].End.Equal(day("2024-03-02")) {
		t.Errorf("last span ends %v, want 2024-03-02", spans[len(spans)-1].End)
	}
	for i := 1; i < len(spans); i++ {
		gap := spans[i].Start.Sub(spans[i-1].End)
		if gap != 24*time.Hour {
			t.Errorf("spans %d and %d are not adjacent: %v then %v", i-1, i, spans[i-1], spans[i])
		}
	}
	for i, s := range spans {
		if s.Days() > 13 {
			t.Errorf("span %d covers %d days, want at most 13", i, s.Days())
		}
		if s.End.Before(s.Start) {
			t.Errorf("span %d ends before it starts: %v", i, s)
		}
	}
}

func TestPartitionErrors(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		days  int
	}{
		{name: "end before start", start: "2024-05-01", end: "2024-04-01", days: 30},
		{name: "zero interval", start: "2024-01-01", end: "2024-02-01", days: 0},
		{name: "negative interval", start: "2024-01-01", end: "2024-02-01", days: -5},
		{name: "malformed start", start: "Jan 1 2024", end: "2024-02-01", days: 30},
		{name: "malformed end", start: "2024-01-01", end: "01/02/2024", days: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Partition(tt.start, tt.end, tt.days)
			if err == nil {
				t.Fatal("Partition() succeeded, want error")
			}
			var re *RangeError
			if !errors.As(err, &re) {
				t.Errorf("Partition() error = %T, want *RangeError", err)
			}
		})
	}
}

func TestSpanKey(t *testing.T) {
	s := Span{Start: day("2024-01-06"), End: day("2024-01-10")}
	if got, want := s.Key(), "2024-01-06,2024-01-10"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
	if got, want := s.String(), "2024-01-06..2024-01-10"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := s.Days(), 5; got != want {
		t.Errorf("Days() = %d, want %d", got, want)
	}
}
