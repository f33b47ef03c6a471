package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/davidzheglov/longevity-knowledge-base/internal/llm"
)

var wantToolOrder = []string{
	"normalize_gene",
	"find_uniprot",
	"download_uniprot_fasta",
	"mutate_replace",
	"mutate_delete",
	"mutate_insert",
	"mutate_truncate",
	"apply_protein_mutations",
	"compare_solubility_and_pI",
	"get_protein_function",
	"get_uniprot_features",
	"get_reactome_pathways",
	"get_go_annotation",
	"get_drug_info",
	"artifacts_list",
	"artifacts_resolve",
	"artifacts_search",
	"artifacts_read_text",
}

func TestBuildRegistry_Definitions(t *testing.T) {
	reg, err := BuildRegistry(&Toolset{Genes: testGeneIndex(t)})
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	defs := reg.Definitions()
	if len(defs) != len(wantToolOrder) {
		t.Fatalf("got %d tools, want %d", len(defs), len(wantToolOrder))
	}
	for i, d := range defs {
		if d.Name != wantToolOrder[i] {
			t.Fatalf("tool %d = %s, want %s", i, d.Name, wantToolOrder[i])
		}
		if d.Description == "" {
			t.Fatalf("tool %s has no description", d.Name)
		}
	}
}

func TestBuildRegistry_SynonymDispatch(t *testing.T) {
	reg, err := BuildRegistry(&Toolset{Genes: testGeneIndex(t)})
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	sess := toolTestSession(t)
	writeSessionFASTA(t, sess, "wt.fasta", "wt", ">wt\nMKLVW\n")

	// "file", "pos", and "aa" are model-side aliases; the normalizer must
	// map them before the tool runs, and position arrives as a string.
	res := reg.ExecuteCall(context.Background(), sess, llm.ToolCallData{
		ID:        "call_1",
		Name:      "mutate_replace",
		Arguments: json.RawMessage(`{"file": "wt", "pos": "2", "aa": "A"}`),
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Output)
	}
	if !strings.HasPrefix(res.Output, "Saved mutated FASTA to: ") {
		t.Fatalf("output: %q", res.Output)
	}
	if len(res.Artifacts) != 1 || res.Artifacts[0].Type != "fasta" {
		t.Fatalf("artifacts: %+v", res.Artifacts)
	}
	rec, err := ReadFASTA(res.Artifacts[0].Path)
	if err != nil {
		t.Fatalf("ReadFASTA: %v", err)
	}
	if rec.Sequence != "MALVW" {
		t.Fatalf("sequence = %q", rec.Sequence)
	}
}

func TestBuildRegistry_MutationListFromCommaString(t *testing.T) {
	reg, err := BuildRegistry(&Toolset{Genes: testGeneIndex(t)})
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	sess := toolTestSession(t)
	writeSessionFASTA(t, sess, "wt.fasta", "wt", ">wt\nMKLVWAAKES\n")

	res := reg.ExecuteCall(context.Background(), sess, llm.ToolCallData{
		ID:        "call_1",
		Name:      "apply_protein_mutations",
		Arguments: json.RawMessage(`{"fasta_file": "wt", "directives": "K2A, del5-6"}`),
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Output)
	}
	if !strings.HasPrefix(res.Output, "Mutations applied. FASTA: ") {
		t.Fatalf("output: %q", res.Output)
	}
	rec, err := ReadFASTA(res.Artifacts[0].Path)
	if err != nil {
		t.Fatalf("ReadFASTA: %v", err)
	}
	if rec.Sequence != "MALVAKES" {
		t.Fatalf("sequence = %q", rec.Sequence)
	}
}

func TestBuildRegistry_ToolErrorDoesNotPropagate(t *testing.T) {
	reg, err := BuildRegistry(&Toolset{Genes: testGeneIndex(t)})
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	sess := toolTestSession(t)
	writeSessionFASTA(t, sess, "wt.fasta", "wt", ">wt\nMKLVW\n")

	res := reg.ExecuteCall(context.Background(), sess, llm.ToolCallData{
		ID:        "call_1",
		Name:      "mutate_replace",
		Arguments: json.RawMessage(`{"fasta_file": "wt", "position": 99, "new_aa": "A"}`),
	})
	if !res.IsError {
		t.Fatalf("expected error result")
	}
	if !strings.HasPrefix(res.Output, "Error executing mutate_replace: ") {
		t.Fatalf("output: %q", res.Output)
	}
	if !strings.Contains(res.Output, "out of range") {
		t.Fatalf("output: %q", res.Output)
	}
}
