// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"encoding/json"
	"testing"
)

// --- test helpers ---

const validJSON = `{
	"paper_type": "Research Article",
	"organisms": ["human"],
	"sequencing_types": ["WGS"],
	"gatk_related": true,
	"gatk_role": "Central",
	"gatk_tools": [{"tool_name": "HaplotypeCaller", "version": "4.5.0", "notes": "germline calling"}],
	"gatk_note": "GATK drives the variant-calling pipeline.",
	"igv_related": false,
	"igv_role": "Not applicable",
	"igv_note": "Not applicable",
	"other_software": [{"software_name": "BWA-MEM", "version": "0.7.17", "notes": "read alignment"}],
	"reproducibility_rating": 4,
	"significance_rating": 3,
	"summary_note": "A germline variant-calling study of human WGS data."
}`

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		t.Fatal(err)
	}
	return obj
}

func validDoc(t *testing.T) map[string]any {
	t.Helper()
	return decode(t, validJSON)
}

func TestValidateConformingArtifacts(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "gatk active, igv inactive", doc: validJSON},
		{
			name: "both tools inactive",
			doc: `{
				"paper_type": "Review",
				"organisms": [],
				"sequencing_types": [],
				"gatk_related": false,
				"gatk_role": "Not applicable",
				"gatk_tools": [],
				"gatk_note": "Not applicable",
				"igv_related": false,
				"igv_role": "Not applicable",
				"igv_note": "Not applicable",
				"other_software": [],
				"reproducibility_rating": 2,
				"significance_rating": 2,
				"summary_note": "A survey of sequencing review literature."
			}`,
		},
		{
			name: "inactive conditional fields omitted entirely",
			doc: `{
				"paper_type": "Method",
				"organisms": ["mouse"],
				"sequencing_types": ["RNA-seq"],
				"gatk_related": false,
				"igv_related": false,
				"reproducibility_rating": 5,
				"significance_rating": 4,
				"summary_note": "A new normalization method for RNA-seq counts."
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToolUsage.Validate(decode(t, tt.doc)); len(got) != 0 {
				t.Errorf("Validate() = %v, want no violations", got)
			}
		})
	}
}

// Dropping gatk_role from an otherwise conforming artifact with
// gatk_related true must produce exactly one violation.
func TestMissingConditionalRole(t *testing.T) {
	doc := validDoc(t)
	delete(doc, "gatk_role")

	got := ToolUsage.Validate(doc)
	if len(got) != 1 {
		t.Fatalf("Validate() = %v, want exactly one violation", got)
	}
	if got[0].Field != "gatk_role" || got[0].Rule != RuleMissingRequired {
		t.Errorf("violation = %+v, want gatk_role %s", got[0], RuleMissingRequired)
	}
}

func TestValidateViolations(t *testing.T) {
	type ref struct {
		field string
		rule  string
	}
	tests := []struct {
		name   string
		mutate func(doc map[string]any)
		want   []ref
	}{
		{
			name:   "missing required field",
			mutate: func(doc map[string]any) { delete(doc, "paper_type") },
			want:   []ref{{"paper_type", RuleMissingRequired}},
		},
		{
			name:   "enum value outside domain",
			mutate: func(doc map[string]any) { doc["paper_type"] = "Editorial" },
			want:   []ref{{"paper_type", RuleOutOfDomain}},
		},
		{
			name:   "enum value of wrong type",
			mutate: func(doc map[string]any) { doc["paper_type"] = 7.0 },
			want:   []ref{{"paper_type", RuleWrongType}},
		},
		{
			name:   "string array given as scalar",
			mutate: func(doc map[string]any) { doc["organisms"] = "human" },
			want:   []ref{{"organisms", RuleWrongType}},
		},
		{
			name:   "string array with non-string elements",
			mutate: func(doc map[string]any) { doc["organisms"] = []any{"human", 9.0} },
			want:   []ref{{"organisms[1]", RuleWrongType}},
		},
		{
			name:   "bool given as string",
			mutate: func(doc map[string]any) { doc["igv_related"] = "false" },
			// The mistyped gate also deactivates igv_role and igv_note,
			// but both already carry "Not applicable", so only the gate
			// itself is reported.
			want: []ref{{"igv_related", RuleWrongType}},
		},
		{
			name:   "rating below range",
			mutate: func(doc map[string]any) { doc["reproducibility_rating"] = 0.0 },
			want:   []ref{{"reproducibility_rating", RuleOutOfDomain}},
		},
		{
			name:   "rating above range",
			mutate: func(doc map[string]any) { doc["significance_rating"] = 6.0 },
			want:   []ref{{"significance_rating", RuleOutOfDomain}},
		},
		{
			name:   "fractional rating",
			mutate: func(doc map[string]any) { doc["reproducibility_rating"] = 3.5 },
			want:   []ref{{"reproducibility_rating", RuleWrongType}},
		},
		{
			name:   "rating as string",
			mutate: func(doc map[string]any) { doc["significance_rating"] = "3" },
			want:   []ref{{"significance_rating", RuleWrongType}},
		},
		{
			name:   "active role outside domain",
			mutate: func(doc map[string]any) { doc["gatk_role"] = "Core" },
			want:   []ref{{"gatk_role", RuleOutOfDomain}},
		},
		{
			name:   "inactive role with free text",
			mutate: func(doc map[string]any) { doc["igv_role"] = "None" },
			want:   []ref{{"igv_role", RuleConditionalMismatch}},
		},
		{
			name:   "inactive note with n/a variant",
			mutate: func(doc map[string]any) { doc["igv_note"] = "N/A" },
			want:   []ref{{"igv_note", RuleConditionalMismatch}},
		},
		{
			name: "inactive tools list non-empty",
			mutate: func(doc map[string]any) {
				doc["gatk_related"] = false
				doc["gatk_role"] = NotApplicable
				doc["gatk_note"] = NotApplicable
				doc["gatk_tools"] = []any{map[string]any{"tool_name": "Mutect2", "version": "", "notes": ""}}
			},
			want: []ref{{"gatk_tools", RuleConditionalMismatch}},
		},
		{
			name: "tool object missing a key",
			mutate: func(doc map[string]any) {
				doc["gatk_tools"] = []any{map[string]any{"tool_name": "Mutect2", "notes": "somatic"}}
			},
			want: []ref{{"gatk_tools[0].version", RuleMissingRequired}},
		},
		{
			name: "tool element not an object",
			mutate: func(doc map[string]any) {
				doc["gatk_tools"] = []any{"HaplotypeCaller"}
			},
			want: []ref{{"gatk_tools[0]", RuleWrongType}},
		},
		{
			name: "optional software with mistyped key",
			mutate: func(doc map[string]any) {
				doc["other_software"] = []any{map[string]any{"software_name": "BWA", "version": 0.7, "notes": ""}}
			},
			want: []ref{{"other_software[0].version", RuleWrongType}},
		},
		{
			name:   "unknown keys are ignored",
			mutate: func(doc map[string]any) { doc["confidence"] = 0.9 },
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc(t)
			tt.mutate(doc)

			got := ToolUsage.Validate(doc)
			if len(got) != len(tt.want) {
				t.Fatalf("Validate() = %v, want %d violations", got, len(tt.want))
			}
			for i, w := range tt.want {
				if got[i].Field != w.field || got[i].Rule != w.rule {
					t.Errorf("violation %d = %+v, want %s %s", i, got[i], w.field, w.rule)
				}
			}
		})
	}
}

// Violations come back in contract field order regardless of how the
// artifact orders its keys.
func TestValidateOrdersViolations(t *testing.T) {
	doc := validDoc(t)
	doc["summary_note"] = 1.0
	delete(doc, "paper_type")
	doc["igv_role"] = "None"

	got := ToolUsage.Validate(doc)
	if len(got) != 3 {
		t.Fatalf("Validate() = %v, want 3 violations", got)
	}
	wantOrder := []string{"paper_type", "igv_role", "summary_note"}
	for i, field := range wantOrder {
		if got[i].Field != field {
			t.Errorf("violation %d on %s, want %s", i, got[i].Field, field)
		}
	}
}

func TestViolationString(t *testing.T) {
	v := Violation{Field: "gatk_role", Rule: RuleMissingRequired, Detail: "required when gatk_related is true"}
	want := "gatk_role: required when gatk_related is true (missing-required)"
	if got := v.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFieldNames(t *testing.T) {
	names := ToolUsage.FieldNames()
	if len(names) != 14 {
		t.Fatalf("FieldNames() returned %d names, want 14", len(names))
	}
	if names[0] != "paper_type" || names[13] != "summary_note" {
		t.Errorf("FieldNames() = %v, want paper_type first and summary_note last", names)
	}
}
