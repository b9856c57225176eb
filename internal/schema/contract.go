// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

// roleEnum grades how central a tool is to a paper. NotApplicable is a
// legal value even when the gate holds: a paper can mention a tool
// without the role being classifiable.
var roleEnum = []string{"Central", "Supporting", "Mentioned", NotApplicable}

// ToolUsage is the contract for GATK/IGV tool-usage extraction. Field
// order here is load-bearing: violations, prompt rendering, and the
// sweep table columns all follow it.
var ToolUsage = Contract{Fields: []Field{
	{
		Name: "paper_type", Type: TypeEnum, Required: true,
		Enum: []string{"Research Article", "Review", "Method", "Benchmark", "Other"},
		Desc: "The kind of publication.",
	},
	{
		Name: "organisms", Type: TypeStringArray, Required: true,
		Desc: "Organisms studied (e.g. human, mouse); an empty list if none is stated.",
	},
	{
		Name: "sequencing_types", Type: TypeStringArray, Required: true,
		Desc: "Sequencing assays used (e.g. WGS, WES, RNA-seq); an empty list if none.",
	},
	{
		Name: "gatk_related", Type: TypeBool, Required: true,
		Desc: "Whether the paper uses or discusses the GATK toolkit.",
	},
	{
		Name: "gatk_role", Type: TypeEnum,
		RequiredIf: &Condition{Field: "gatk_related", Equals: true},
		Enum:       roleEnum,
		Desc:       "How central GATK is to the work.",
	},
	{
		Name: "gatk_tools", Type: TypeObjectArray,
		RequiredIf: &Condition{Field: "gatk_related", Equals: true},
		ObjectKeys: []string{"tool_name", "version", "notes"},
		Desc:       "The specific GATK tools used; version and notes may be empty strings.",
	},
	{
		Name: "gatk_note", Type: TypeText,
		RequiredIf: &Condition{Field: "gatk_related", Equals: true},
		Desc:       "One sentence on how GATK was used.",
	},
	{
		Name: "igv_related", Type: TypeBool, Required: true,
		Desc: "Whether the paper uses or discusses IGV.",
	},
	{
		Name: "igv_role", Type: TypeEnum,
		RequiredIf: &Condition{Field: "igv_related", Equals: true},
		Enum:       roleEnum,
		Desc:       "How central IGV is to the work.",
	},
	{
		Name: "igv_note", Type: TypeText,
		RequiredIf: &Condition{Field: "igv_related", Equals: true},
		Desc:       "One sentence on how IGV was used.",
	},
	{
		Name: "other_software", Type: TypeObjectArray,
		ObjectKeys: []string{"software_name", "version", "notes"},
		Desc:       "Other bioinformatics software named in the paper.",
	},
	{
		Name: "reproducibility_rating", Type: TypeInt, Required: true,
		Min: 1, Max: 5,
		Desc: "1 (no methods detail) to 5 (fully scripted and versioned).",
	},
	{
		Name: "significance_rating", Type: TypeInt, Required: true,
		Min: 1, Max: 5,
		Desc: "1 (incremental) to 5 (landmark).",
	},
	{
		Name: "summary_note", Type: TypeText, Required: true,
		Desc: "Two sentences summarizing the paper's contribution.",
	},
}}
