// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/toolsweep/internal/schema"
)

// instructionsTmpl is the system prompt for one extraction attempt.
// The field list and the example are rendered from the contract, so
// the model is always instructed with exactly the rules the validator
// applies.
var instructionsTmpl = template.Must(template.New("instructions").Parse(`You are a bioinformatics literature analyst. The user message contains the title, authors, date, and abstract of a scientific article. Report how the GATK and IGV software toolkits figure in the work.

Respond with a single JSON object and no other text. The object must carry every field listed below:

{{.Fields}}

Rules:
- "Not applicable" is the exact string for any role or note field that does not apply.
- When gatk_related is false, gatk_role and gatk_note are "Not applicable" and gatk_tools is an empty list. The same pattern holds for igv_related and the igv_* fields.
- Copy tool and software names as the article spells them.
- Ratings are whole numbers from 1 to 5.

Example response:
{{.Example}}
{{- if .Violations}}

Your previous attempt violated the output contract. Produce a fresh, complete JSON object correcting every problem listed:
{{- range .Violations}}
- {{.}}
{{- end}}
{{- end}}
`))

// exampleArtifact is the conforming response rendered into the prompt.
const exampleArtifact = `{"paper_type": "Research Article", "organisms": ["human"], "sequencing_types": ["WGS"], "gatk_related": true, "gatk_role": "Central", "gatk_tools": [{"tool_name": "HaplotypeCaller", "version": "4.5.0", "notes": "germline calling"}], "gatk_note": "GATK drives the variant-calling pipeline.", "igv_related": false, "igv_role": "Not applicable", "igv_note": "Not applicable", "other_software": [{"software_name": "BWA-MEM", "version": "0.7.17", "notes": "read alignment"}], "reproducibility_rating": 4, "significance_rating": 3, "summary_note": "A germline variant-calling study of human WGS data."}`

// Instructions renders the system prompt for one attempt. On a retry
// the violations of the rejected attempt are appended so the model
// corrects them; it is never asked to patch its previous output.
func Instructions(contract schema.Contract, violations []schema.Violation) (string, error) {
	data := struct {
		Fields     string
		Example    string
		Violations []string
	}{
		Fields:  fieldLines(contract),
		Example: exampleArtifact,
	}
	for _, v := range violations {
		data.Violations = append(data.Violations, v.String())
	}

	var buf bytes.Buffer
	if err := instructionsTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering instructions: %w", err)
	}
	return buf.String(), nil
}

// fieldLines renders one descriptive line per contract field.
func fieldLines(contract schema.Contract) string {
	lines := make([]string, 0, len(contract.Fields))
	for _, f := range contract.Fields {
		parts := []string{fmt.Sprintf("- %s (%s): %s", f.Name, typeText(f), f.Desc)}
		if d := domainText(f); d != "" {
			parts = append(parts, d)
		}
		if p := presenceText(f); p != "" {
			parts = append(parts, p)
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n")
}

func typeText(f schema.Field) string {
	switch f.Type {
	case schema.TypeBool:
		return "boolean"
	case schema.TypeEnum, schema.TypeText:
		return "string"
	case schema.TypeInt:
		return "integer"
	case schema.TypeStringArray:
		return "list of strings"
	case schema.TypeObjectArray:
		return fmt.Sprintf("list of objects with keys %s", strings.Join(f.ObjectKeys, ", "))
	}
	return string(f.Type)
}

func domainText(f schema.Field) string {
	switch f.Type {
	case schema.TypeEnum:
		return fmt.Sprintf("One of: %s.", strings.Join(f.Enum, ", "))
	case schema.TypeInt:
		if f.Min != 0 || f.Max != 0 {
			return fmt.Sprintf("Between %d and %d.", f.Min, f.Max)
		}
	}
	return ""
}

func presenceText(f schema.Field) string {
	if f.RequiredIf != nil {
		return fmt.Sprintf("Applies only when %s is %v.", f.RequiredIf.Field, f.RequiredIf.Equals)
	}
	if !f.Required {
		return "Optional."
	}
	return ""
}
