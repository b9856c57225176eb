// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/pdiddy/toolsweep/internal/interval"
	"github.com/pdiddy/toolsweep/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "doi-cache"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func span(t *testing.T, start, end string) interval.Span {
	t.Helper()
	from, err := interval.ParseDate(start)
	if err != nil {
		t.Fatal(err)
	}
	to, err := interval.ParseDate(end)
	if err != nil {
		t.Fatal(err)
	}
	return interval.Span{Start: from, End: to}
}

func TestSearchEntryRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sp := span(t, "2024-01-01", "2024-01-30")

	_, ok, err := s.SearchEntry(ctx, "GATK", sp)
	if err != nil {
		t.Fatalf("SearchEntry() error = %v", err)
	}
	if ok {
		t.Fatal("SearchEntry() reported a hit on an empty cache")
	}

	want := []string{"10.1101/2024.01.02.573821", "10.1101/2024.01.15.575632"}
	if err := s.PutSearchEntry(ctx, "GATK", sp, want); err != nil {
		t.Fatalf("PutSearchEntry() error = %v", err)
	}

	got, ok, err := s.SearchEntry(ctx, "GATK", sp)
	if err != nil {
		t.Fatalf("SearchEntry() error = %v", err)
	}
	if !ok {
		t.Fatal("SearchEntry() missed after put")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchEntry() = %v, want %v", got, want)
	}

	// A different query over the same span is a separate entry.
	_, ok, err = s.SearchEntry(ctx, "IGV", sp)
	if err != nil {
		t.Fatalf("SearchEntry() error = %v", err)
	}
	if ok {
		t.Error("SearchEntry() hit for a query that never ran")
	}
}

func TestSearchEntryWriteOnce(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sp := span(t, "2024-02-01", "2024-02-15")

	first := []string{"10.1101/aaa"}
	if err := s.PutSearchEntry(ctx, "GATK", sp, first); err != nil {
		t.Fatalf("PutSearchEntry() error = %v", err)
	}
	if err := s.PutSearchEntry(ctx, "GATK", sp, []string{"10.1101/bbb"}); err != nil {
		t.Fatalf("second PutSearchEntry() error = %v", err)
	}

	got, _, err := s.SearchEntry(ctx, "GATK", sp)
	if err != nil {
		t.Fatalf("SearchEntry() error = %v", err)
	}
	if !reflect.DeepEqual(got, first) {
		t.Errorf("entry overwritten: got %v, want %v", got, first)
	}
}

// A span that ran and found nothing is still complete: the empty entry
// must count as a cache hit so re-runs skip the query.
func TestEmptySearchEntryIsComplete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sp := span(t, "1971-06-01", "1971-06-30")

	if err := s.PutSearchEntry(ctx, "GATK", sp, nil); err != nil {
		t.Fatalf("PutSearchEntry() error = %v", err)
	}

	got, ok, err := s.SearchEntry(ctx, "GATK", sp)
	if err != nil {
		t.Fatalf("SearchEntry() error = %v", err)
	}
	if !ok {
		t.Fatal("empty entry not treated as complete")
	}
	if len(got) != 0 {
		t.Errorf("SearchEntry() = %v, want empty", got)
	}
}

func TestSearchEntryPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "doi-cache")
	ctx := context.Background()
	sp := span(t, "2024-03-01", "2024-03-31")

	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutSearchEntry(ctx, "IGV", sp, []string{"10.1101/xyz"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, ok, err := s.SearchEntry(ctx, "IGV", sp)
	if err != nil {
		t.Fatalf("SearchEntry() error = %v", err)
	}
	if !ok || len(got) != 1 || got[0] != "10.1101/xyz" {
		t.Errorf("entry did not survive reopen: got %v, ok=%v", got, ok)
	}
}

func TestSpanEntries(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	spans := []interval.Span{
		span(t, "2024-01-01", "2024-01-30"),
		span(t, "2024-01-31", "2024-02-29"),
		span(t, "2024-03-01", "2024-03-30"),
	}
	if err := s.PutSearchEntry(ctx, "GATK", spans[0], []string{"10.1101/a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutSearchEntry(ctx, "GATK", spans[2], []string{"10.1101/b", "10.1101/c"}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.SpanEntries(ctx, "GATK", spans)
	if err != nil {
		t.Fatalf("SpanEntries() error = %v", err)
	}
	if len(entries) != len(spans) {
		t.Fatalf("SpanEntries() returned %d entries, want %d", len(entries), len(spans))
	}

	// Entries come back in span order, with the uncrawled middle span
	// present but not OK.
	for i, e := range entries {
		if e.Span.Key() != spans[i].Key() {
			t.Errorf("entry %d covers %s, want %s", i, e.Span, spans[i])
		}
	}
	if !entries[0].OK || !reflect.DeepEqual(entries[0].DOIs, []string{"10.1101/a"}) {
		t.Errorf("entry 0 = %+v, want OK with one DOI", entries[0])
	}
	if entries[1].OK {
		t.Errorf("entry 1 reported OK for a span that never ran")
	}
	if !entries[2].OK || len(entries[2].DOIs) != 2 {
		t.Errorf("entry 2 = %+v, want OK with two DOIs", entries[2])
	}
}

func TestMarkExtraction(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	doi := "10.1101/2024.05.01.591234"

	_, ok, err := s.ExtractionStatus(ctx, doi)
	if err != nil {
		t.Fatalf("ExtractionStatus() error = %v", err)
	}
	if ok {
		t.Fatal("ExtractionStatus() found a record before any mark")
	}

	if err := s.MarkExtraction(ctx, doi, types.StatusFailed, 3, "schema violations after 3 attempts"); err != nil {
		t.Fatalf("MarkExtraction() error = %v", err)
	}
	status, ok, err := s.ExtractionStatus(ctx, doi)
	if err != nil {
		t.Fatalf("ExtractionStatus() error = %v", err)
	}
	if !ok || status != types.StatusFailed {
		t.Errorf("ExtractionStatus() = %v, ok=%v, want failed", status, ok)
	}

	// A later successful attempt replaces the failure.
	if err := s.MarkExtraction(ctx, doi, types.StatusSucceeded, 1, ""); err != nil {
		t.Fatalf("MarkExtraction() error = %v", err)
	}
	status, _, err = s.ExtractionStatus(ctx, doi)
	if err != nil {
		t.Fatalf("ExtractionStatus() error = %v", err)
	}
	if status != types.StatusSucceeded {
		t.Errorf("ExtractionStatus() = %v, want succeeded", status)
	}
}

func TestExtractionCounts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	counts, err := s.ExtractionCounts(ctx)
	if err != nil {
		t.Fatalf("ExtractionCounts() error = %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("ExtractionCounts() on empty store = %v", counts)
	}

	marks := []struct {
		doi    string
		status types.ExtractionStatus
	}{
		{"10.1101/a", types.StatusSucceeded},
		{"10.1101/b", types.StatusSucceeded},
		{"10.1101/c", types.StatusFailed},
	}
	for _, m := range marks {
		if err := s.MarkExtraction(ctx, m.doi, m.status, 1, ""); err != nil {
			t.Fatal(err)
		}
	}

	counts, err = s.ExtractionCounts(ctx)
	if err != nil {
		t.Fatalf("ExtractionCounts() error = %v", err)
	}
	want := map[types.ExtractionStatus]int{
		types.StatusSucceeded: 2,
		types.StatusFailed:    1,
	}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("ExtractionCounts() = %v, want %v", counts, want)
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	s := testStore(t)
	subdir := filepath.Join("10.1101", "2024.01.02.573821")

	if s.HasArtifact(subdir, "analysis.json") {
		t.Fatal("HasArtifact() true before write")
	}

	data := []byte(`{"gatk_related": true}`)
	if err := s.WriteArtifact(subdir, "analysis.json", data); err != nil {
		t.Fatalf("WriteArtifact() error = %v", err)
	}
	if !s.HasArtifact(subdir, "analysis.json") {
		t.Fatal("HasArtifact() false after write")
	}

	got, err := s.ReadArtifact(subdir, "analysis.json")
	if err != nil {
		t.Fatalf("ReadArtifact() error = %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("ReadArtifact() = %q, want %q", got, data)
	}

	// The temp file must not be left behind.
	entries, err := os.ReadDir(filepath.Join(s.Dir(), subdir))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "analysis.json" {
			t.Errorf("unexpected leftover file %s", e.Name())
		}
	}

	if err := s.RemoveArtifact(subdir, "analysis.json"); err != nil {
		t.Fatalf("RemoveArtifact() error = %v", err)
	}
	if s.HasArtifact(subdir, "analysis.json") {
		t.Error("HasArtifact() true after remove")
	}
	if err := s.RemoveArtifact(subdir, "analysis.json"); err != nil {
		t.Errorf("RemoveArtifact() on missing file: %v", err)
	}
}

func TestArtifactDir(t *testing.T) {
	s := testStore(t)
	subdir := filepath.Join("10.1101", "2024.01.02.573821")

	got := s.ArtifactDir(subdir)
	want := filepath.Join(s.Dir(), subdir)
	if got != want {
		t.Errorf("ArtifactDir() = %q, want %q", got, want)
	}
}

func TestWalkArtifacts(t *testing.T) {
	s := testStore(t)

	dirs := []string{
		filepath.Join("10.1101", "2024.01.02.573821"),
		filepath.Join("10.1101", "2024.03.11.584216"),
		filepath.Join("10.21203", "rs.3.rs-55555_v1"),
	}
	for i, d := range dirs {
		if err := s.WriteArtifact(d, "analysis.json", []byte{byte('a' + i)}); err != nil {
			t.Fatal(err)
		}
		// Decoy files must not be visited.
		if err := s.WriteArtifact(d, "meta.yaml", []byte("doi: x")); err != nil {
			t.Fatal(err)
		}
	}

	var visited []string
	err := s.WalkArtifacts("analysis.json", func(dir string, data []byte) error {
		visited = append(visited, dir)
		if len(data) != 1 {
			t.Errorf("unexpected data %q in %s", data, dir)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkArtifacts() error = %v", err)
	}

	sort.Strings(dirs)
	if !reflect.DeepEqual(visited, dirs) {
		t.Errorf("WalkArtifacts() visited %v, want %v", visited, dirs)
	}
}

func TestRunLog(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, ok, err := s.LastRun(ctx, types.RunCrawl)
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if ok {
		t.Fatal("LastRun() found a run in an empty cache")
	}

	first := types.RunRecord{
		ID:           "run-1",
		Kind:         types.RunCrawl,
		Query:        "GATK",
		StartDate:    "2024-01-01",
		EndDate:      "2024-06-30",
		IntervalDays: 30,
		StartedAt:    time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := s.RecordRun(ctx, first); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if err := s.FinishRun(ctx, "run-1", 6, 1); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	second := first
	second.ID = "run-2"
	second.Query = "IGV"
	second.StartedAt = first.StartedAt.Add(time.Hour)
	if err := s.RecordRun(ctx, second); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	got, ok, err := s.LastRun(ctx, types.RunCrawl)
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if !ok {
		t.Fatal("LastRun() found nothing after two runs")
	}
	if got.ID != "run-2" || got.Query != "IGV" {
		t.Errorf("LastRun() = %+v, want run-2 (IGV)", got)
	}
	if !got.FinishedAt.IsZero() {
		t.Errorf("unfinished run has FinishedAt = %v", got.FinishedAt)
	}

	// Extract runs are a separate series.
	_, ok, err = s.LastRun(ctx, types.RunExtract)
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if ok {
		t.Error("LastRun(extract) found a crawl run")
	}
}
