// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sweep consolidates per-DOI extraction artifacts into one
// table for downstream analysis.
package sweep

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/toolsweep/internal/cache"
	"github.com/pdiddy/toolsweep/internal/extract"
	"github.com/pdiddy/toolsweep/internal/schema"
	"github.com/pdiddy/toolsweep/pkg/types"
)

// Output formats.
const (
	FormatTSV  = "tsv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Row is one article's consolidated record: identity columns from the
// article metadata plus the extracted contract fields.
type Row struct {
	DOI    string
	Title  string
	Date   string
	Server string
	Fields map[string]any
}

// Run sweeps the cache and writes the consolidated table in the given
// format. The table goes to out; warnings and the closing count go to
// progress.
func Run(ctx context.Context, store *cache.Store, format string, out, progress io.Writer) error {
	rows, err := Collect(store, progress)
	if err != nil {
		return err
	}

	switch format {
	case "", FormatTSV:
		err = WriteTSV(out, rows)
	case FormatJSON:
		err = WriteJSON(out, rows)
	case FormatYAML:
		err = WriteYAML(out, rows)
	default:
		return fmt.Errorf("unknown sweep format %q", format)
	}
	if err != nil {
		return err
	}

	counts, err := store.ExtractionCounts(ctx)
	if err != nil {
		return err
	}
	if failed := counts[types.StatusFailed]; failed > 0 {
		fmt.Fprintf(progress, "swept %d articles (%d failed extractions excluded)\n", len(rows), failed)
	} else {
		fmt.Fprintf(progress, "swept %d articles\n", len(rows))
	}
	slog.Info("sweep complete", "rows", len(rows), "format", format)
	return nil
}

// Collect walks the artifact tree and joins each analysis with its
// article metadata, sorted by DOI. Damaged artifacts are reported to w
// and left out; one bad directory never sinks the sweep.
func Collect(store *cache.Store, w io.Writer) ([]Row, error) {
	var rows []Row

	err := store.WalkArtifacts(extract.AnalysisFile, func(dir string, data []byte) error {
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			fmt.Fprintf(w, "failed: %s (%v)\n", store.ArtifactDir(dir), err)
			return nil
		}

		row := Row{DOI: dir, Fields: make(map[string]any, len(schema.ToolUsage.Fields))}
		for _, name := range schema.ToolUsage.FieldNames() {
			if v, ok := obj[name]; ok {
				row.Fields[name] = v
			}
		}

		if meta, err := store.ReadArtifact(dir, extract.MetaFile); err == nil {
			var art types.Article
			if err := yaml.Unmarshal(meta, &art); err != nil {
				fmt.Fprintf(w, "failed: %s (%v)\n", store.ArtifactDir(dir), err)
			} else {
				row.DOI = art.DOI
				row.Title = art.Title
				row.Server = art.Server
				if !art.Date.IsZero() {
					row.Date = art.Date.Format("2006-01-02")
				}
			}
		}

		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking artifacts: %w", err)
	}

	slices.SortFunc(rows, func(a, b Row) int {
		return strings.Compare(a.DOI, b.DOI)
	})
	return rows, nil
}

// WriteTSV renders rows as a tab-separated table. Column order is
// fixed: doi, title, date, server, then the contract fields in
// declaration order.
func WriteTSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header := append([]string{"doi", "title", "date", "server"}, schema.ToolUsage.FieldNames()...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, row := range rows {
		record := []string{row.DOI, row.Title, row.Date, row.Server}
		for _, name := range schema.ToolUsage.FieldNames() {
			record = append(record, cellValue(row.Fields[name]))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row for %s: %w", row.DOI, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON renders rows as a JSON array of flat objects, identity
// columns merged with the contract fields.
func WriteJSON(w io.Writer, rows []Row) error {
	data, err := json.MarshalIndent(flatDocs(rows), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sweep: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// WriteYAML writes the rows as a YAML sequence of flat mappings.
func WriteYAML(w io.Writer, rows []Row) error {
	data, err := yaml.Marshal(flatDocs(rows))
	if err != nil {
		return fmt.Errorf("encoding sweep: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// flatDocs merges each row's identity columns and extracted fields into
// one flat document per article.
func flatDocs(rows []Row) []map[string]any {
	docs := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		doc := map[string]any{
			"doi":    row.DOI,
			"title":  row.Title,
			"date":   row.Date,
			"server": row.Server,
		}
		for name, value := range row.Fields {
			doc[name] = value
		}
		docs = append(docs, doc)
	}
	return docs
}

// cellValue flattens a decoded JSON value into one table cell. Lists
// join with "; "; object-array elements render as "name version".
func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, cellValue(item))
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		name := firstString(val, "tool_name", "software_name")
		version, _ := val["version"].(string)
		return strings.TrimSpace(name + " " + version)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
