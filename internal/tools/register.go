package tools

import (
	"fmt"

	"github.com/davidzheglov/longevity-knowledge-base/internal/agent"
	"github.com/davidzheglov/longevity-knowledge-base/internal/llm"
)

// objectSchema builds a permissive JSON-schema object: properties document
// the canonical parameter shapes, but nothing is required and synonym keys
// are accepted — the argument specs map them onto canonical names before the
// tool runs.
func objectSchema(props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

// BuildRegistry wires every tool of the closed set into a dispatcher
// registry. The set is fixed at startup; the dispatcher's unknown-tool path
// answers for anything else.
func BuildRegistry(ts *Toolset) (*agent.ToolRegistry, error) {
	if ts == nil {
		return nil, fmt.Errorf("toolset is nil")
	}
	if ts.UniProt == nil {
		ts.UniProt = NewUniProtClient()
	}
	reg := agent.NewToolRegistry()

	entries := []agent.RegisteredTool{
		{
			Definition: llm.ToolDefinition{
				Name:        "normalize_gene",
				Description: "Normalize a gene name, alias, or Entrez ID to its canonical symbol and identifiers.",
				Parameters: objectSchema(map[string]any{
					"query": str("Gene name, symbol, alias, or Entrez ID"),
				}),
			},
			Spec: agent.Spec(
				agent.P("query", agent.KindString, "", "gene", "gene_name", "gene_symbol"),
			),
			Exec: ts.NormalizeGene,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "find_uniprot",
				Description: "Search UniProt for a reviewed protein entry by gene and species; returns a brief summary.",
				Parameters: objectSchema(map[string]any{
					"gene":    str("Gene symbol"),
					"species": str("Species name, taxon ID, or \"human\""),
				}),
			},
			Spec: agent.Spec(
				agent.P("gene", agent.KindString, "", "query", "gene_name"),
				agent.P("species", agent.KindString, "human", "organism"),
			),
			Exec: ts.FindUniProt,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "download_uniprot_fasta",
				Description: "Download a protein FASTA from UniProt and save it into the session directory.",
				Parameters: objectSchema(map[string]any{
					"gene":        str("Gene symbol"),
					"species":     str("Species name, taxon ID, or \"human\""),
					"output_file": str("Output FASTA filename"),
				}),
			},
			Spec: agent.Spec(
				agent.P("gene", agent.KindString, "", "gene_name", "query"),
				agent.P("species", agent.KindString, "human", "organism"),
				agent.P("output_file", agent.KindString, "protein.fasta", "filename", "output", "output_excel", "output_png"),
			),
			Exec: ts.DownloadUniProtFASTA,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "mutate_replace",
				Description: "Replace the amino acid at a 1-based position of a FASTA sequence and save the mutant.",
				Parameters: objectSchema(map[string]any{
					"fasta_file":  str("Input FASTA file, artifact id, or label"),
					"position":    integer("1-based position"),
					"new_aa":      str("New amino acid (single letter)"),
					"output_file": str("Output FASTA filename"),
				}),
			},
			Spec: agent.Spec(
				agent.P("fasta_file", agent.KindString, "", "gene", "input", "file"),
				agent.P("position", agent.KindInt, 1, "pos"),
				agent.P("new_aa", agent.KindString, "A", "aa", "aa_new"),
				agent.P("output_file", agent.KindString, "mutated.fasta", "output", "filename"),
			),
			Exec: ts.MutateReplace,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "mutate_delete",
				Description: "Delete an inclusive 1-based residue range from a FASTA sequence and save the mutant.",
				Parameters: objectSchema(map[string]any{
					"fasta_file":  str("Input FASTA file, artifact id, or label"),
					"start":       integer("Start position (1-based)"),
					"end":         integer("End position (inclusive; defaults to start)"),
					"output_file": str("Output FASTA filename"),
				}),
			},
			Spec: agent.Spec(
				agent.P("fasta_file", agent.KindString, "", "gene", "input", "file"),
				agent.P("start", agent.KindInt, 1, "from", "pos"),
				agent.P("end", agent.KindInt, 0, "to"),
				agent.P("output_file", agent.KindString, "mutated.fasta", "output", "filename"),
			),
			Exec: ts.MutateDelete,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "mutate_insert",
				Description: "Insert residues after a 1-based position of a FASTA sequence and save the mutant.",
				Parameters: objectSchema(map[string]any{
					"fasta_file":  str("Input FASTA file, artifact id, or label"),
					"position":    integer("Insert after this position (1-based; 0 prepends)"),
					"insert_seq":  str("Residues to insert"),
					"output_file": str("Output FASTA filename"),
				}),
			},
			Spec: agent.Spec(
				agent.P("fasta_file", agent.KindString, "", "gene", "input", "file"),
				agent.P("position", agent.KindInt, 1, "pos"),
				agent.P("insert_seq", agent.KindString, "G", "ins_aa", "seq", "insert"),
				agent.P("output_file", agent.KindString, "mutated.fasta", "output", "filename"),
			),
			Exec: ts.MutateInsert,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "mutate_truncate",
				Description: "Truncate a FASTA sequence after a 1-based position and save the mutant.",
				Parameters: objectSchema(map[string]any{
					"fasta_file":  str("Input FASTA file, artifact id, or label"),
					"position":    integer("Keep residues 1..position"),
					"output_file": str("Output FASTA filename"),
				}),
			},
			Spec: agent.Spec(
				agent.P("fasta_file", agent.KindString, "", "gene", "input", "file"),
				agent.P("position", agent.KindInt, 1, "pos"),
				agent.P("output_file", agent.KindString, "mutated.fasta", "output", "filename"),
			),
			Exec: ts.MutateTruncate,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "apply_protein_mutations",
				Description: "Apply a list of mutation directives (rep123:V, rep120-125:GFP, del123, del120-125, ins123:GFP; also A123T and trunc100) to a FASTA sequence; saves the mutant and a report.",
				Parameters: objectSchema(map[string]any{
					"fasta_file": str("Input FASTA file, artifact id, or label"),
					"mutations": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Mutation directives; a comma-separated string is also accepted",
					},
					"output_file": str("Output FASTA filename"),
					"report_file": str("Mutation report filename"),
				}),
			},
			Spec: agent.Spec(
				agent.P("fasta_file", agent.KindString, "", "input", "file"),
				agent.P("mutations", agent.KindStringList, []string{}, "directives"),
				agent.P("output_file", agent.KindString, "mutated.fasta", "filename", "output"),
				agent.P("report_file", agent.KindString, "mutations_report.txt", "report", "log"),
			),
			Exec: ts.ApplyProteinMutations,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "compare_solubility_and_pI",
				Description: "Compare GRAVY hydropathy and isoelectric point between a wild-type and a mutant FASTA; saves a report.",
				Parameters: objectSchema(map[string]any{
					"wt_fasta":    str("Wild-type FASTA file, artifact id, or label"),
					"mut_fasta":   str("Mutant FASTA file, artifact id, or label"),
					"output_file": str("Output report filename"),
				}),
			},
			Spec: agent.Spec(
				agent.P("wt_fasta", agent.KindString, "", "wt", "wildtype", "wild_type"),
				agent.P("mut_fasta", agent.KindString, "", "mut", "mutant"),
				agent.P("output_file", agent.KindString, "solubility_pI_comparison.txt", "filename", "output"),
			),
			Exec: ts.CompareSolubilityAndPI,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "get_protein_function",
				Description: "Fetch the UniProt FUNCTION description for a gene.",
				Parameters: objectSchema(map[string]any{
					"gene":     str("Gene symbol"),
					"organism": str("human, mouse, or rat"),
				}),
			},
			Spec: agent.Spec(
				agent.P("gene", agent.KindString, "", "query", "gene_symbol"),
				agent.P("organism", agent.KindString, "human", "species"),
			),
			Exec: ts.GetProteinFunction,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "get_uniprot_features",
				Description: "Fetch UniProt feature annotations (chains, domains, sites) for a gene.",
				Parameters: objectSchema(map[string]any{
					"gene":     str("Gene symbol"),
					"organism": str("human, mouse, or rat"),
				}),
			},
			Spec: agent.Spec(
				agent.P("gene", agent.KindString, "", "query", "gene_symbol"),
				agent.P("organism", agent.KindString, "human", "species"),
			),
			Exec: ts.GetUniProtFeatures,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "get_reactome_pathways",
				Description: "List Reactome pathways for a human gene; saves a report.",
				Parameters: objectSchema(map[string]any{
					"query": str("Gene symbol, alias, or Entrez ID"),
				}),
			},
			Spec: agent.Spec(
				agent.P("query", agent.KindString, "", "gene", "gene_symbol"),
			),
			Exec: ts.GetReactomePathways,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "get_go_annotation",
				Description: "Fetch Gene Ontology annotations for a human gene; saves a report.",
				Parameters: objectSchema(map[string]any{
					"query": str("Gene symbol, alias, or Entrez ID"),
				}),
			},
			Spec: agent.Spec(
				agent.P("query", agent.KindString, "", "gene", "gene_symbol"),
			),
			Exec: ts.GetGOAnnotation,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "get_drug_info",
				Description: "Fetch DrugBank drug annotations for a human gene; saves a report.",
				Parameters: objectSchema(map[string]any{
					"query": str("Gene symbol, alias, or Entrez ID"),
				}),
			},
			Spec: agent.Spec(
				agent.P("query", agent.KindString, "", "gene", "gene_symbol"),
			),
			Exec: ts.GetDrugInfo,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "artifacts_list",
				Description: "List the artifacts recorded in this session, optionally filtered by type.",
				Parameters: objectSchema(map[string]any{
					"artifact_type": str("Filter by type (e.g. fasta, txt)"),
				}),
			},
			Spec: agent.Spec(
				agent.P("artifact_type", agent.KindString, "", "type"),
			),
			Exec: ts.ArtifactsList,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "artifacts_resolve",
				Description: "Resolve an artifact id or label to its file path.",
				Parameters: objectSchema(map[string]any{
					"id_or_label": str("Artifact id or label"),
				}),
			},
			Spec: agent.Spec(
				agent.P("id_or_label", agent.KindString, "", "id", "label"),
			),
			Exec: ts.ArtifactsResolve,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "artifacts_search",
				Description: "Search session artifacts by case-insensitive filename substring.",
				Parameters: objectSchema(map[string]any{
					"name_substring": str("Substring of the artifact filename"),
				}),
			},
			Spec: agent.Spec(
				agent.P("name_substring", agent.KindString, "", "query", "substring"),
			),
			Exec: ts.ArtifactsSearch,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "artifacts_read_text",
				Description: "Read a small text artifact (by id, label, or path under the session outputs) for quoting or summarizing.",
				Parameters: objectSchema(map[string]any{
					"id_or_path": str("Artifact id/label or path"),
					"max_bytes":  integer("Maximum bytes to read"),
				}),
			},
			Spec: agent.Spec(
				agent.P("id_or_path", agent.KindString, "", "id", "path", "artifact"),
				agent.P("max_bytes", agent.KindInt, 16384),
			),
			Exec: ts.ArtifactsReadText,
		},
	}

	for _, e := range entries {
		if err := reg.Register(e); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
