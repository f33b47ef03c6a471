package tools

import (
	"fmt"
	"strings"
)

// Pathway is one Reactome cross-reference.
type Pathway struct {
	ID   string
	Name string
}

// ReactomePathways extracts Reactome cross-references from an entry. Names
// missing from the cross-reference properties are left empty for the caller
// to backfill from the Reactome service.
func ReactomePathways(entry *UniProtEntry) []Pathway {
	var out []Pathway
	for _, x := range entry.CrossReferences {
		if x.Database != "Reactome" || x.ID == "" {
			continue
		}
		out = append(out, Pathway{ID: x.ID, Name: strings.TrimSpace(x.Property("PathwayName"))})
	}
	return out
}

// GOAnnotation is one Gene Ontology cross-reference, split into its aspect
// category, term, and evidence code.
type GOAnnotation struct {
	Category string
	GOID     string
	Term     string
	Evidence string
}

var goCategories = map[string]string{
	"F": "Molecular Function",
	"P": "Biological Process",
	"C": "Cellular Component",
}

// GOAnnotations extracts GO cross-references. Terms arrive as "F:term" /
// "P:term" / "C:term"; malformed ones are skipped.
func GOAnnotations(entry *UniProtEntry) []GOAnnotation {
	var out []GOAnnotation
	for _, x := range entry.CrossReferences {
		if x.Database != "GO" || x.ID == "" {
			continue
		}
		full := x.Property("GoTerm")
		prefix, term, ok := strings.Cut(full, ":")
		if !ok {
			continue
		}
		category, known := goCategories[prefix]
		if !known {
			category = "Other"
		}
		evidence := x.Property("GoEvidenceType")
		if evidence == "" {
			evidence = "N/A"
		}
		out = append(out, GOAnnotation{Category: category, GOID: x.ID, Term: term, Evidence: evidence})
	}
	return out
}

// DrugAnnotation is one DrugBank cross-reference.
type DrugAnnotation struct {
	DrugBankID string
	Name       string
}

func DrugAnnotations(entry *UniProtEntry) []DrugAnnotation {
	var out []DrugAnnotation
	for _, x := range entry.CrossReferences {
		if x.Database != "DrugBank" || x.ID == "" {
			continue
		}
		name := x.Property("GenericName")
		if name == "" {
			name = x.Property("BrandName")
		}
		if name == "" {
			name = "N/A"
		}
		out = append(out, DrugAnnotation{DrugBankID: x.ID, Name: name})
	}
	return out
}

var reportRule = strings.Repeat("=", 60)

// GOReport renders the saved GO annotation report, grouped by aspect.
func GOReport(symbol, accession string, annotations []GOAnnotation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Gene: %s\n", symbol)
	fmt.Fprintf(&b, "UniProt Accession: %s\n", accession)
	b.WriteString(reportRule + "\n\n")

	grouped := map[string][]GOAnnotation{}
	for _, a := range annotations {
		grouped[a.Category] = append(grouped[a.Category], a)
	}
	for _, cat := range []string{"Molecular Function", "Biological Process", "Cellular Component", "Other"} {
		items := grouped[cat]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", cat)
		for _, a := range items {
			fmt.Fprintf(&b, "%s: %s\n", a.GOID, a.Term)
		}
		b.WriteString("\n")
	}
	if len(annotations) == 0 {
		b.WriteString("No GO annotations found.\n")
	}
	return b.String()
}

// DrugReport renders the saved DrugBank report.
func DrugReport(symbol, accession string, drugs []DrugAnnotation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Gene: %s\n", symbol)
	fmt.Fprintf(&b, "UniProt Accession: %s\n", accession)
	b.WriteString(reportRule + "\n\n")
	if len(drugs) == 0 {
		b.WriteString("No DrugBank annotations found.\n")
		return b.String()
	}
	b.WriteString("## DrugBank Annotations\n")
	for _, d := range drugs {
		fmt.Fprintf(&b, "%s: %s\n", d.DrugBankID, d.Name)
	}
	b.WriteString("\n")
	return b.String()
}

// ReactomeReport renders the saved pathway report, one "id: name" per line.
func ReactomeReport(pathways []Pathway) string {
	var b strings.Builder
	for _, p := range pathways {
		fmt.Fprintf(&b, "%s: %s\n", p.ID, p.Name)
	}
	return b.String()
}

// FeatureSummary counts features per type for the tool's text answer.
func FeatureSummary(features []UniProtFeature) (int, map[string]int) {
	byType := map[string]int{}
	for _, f := range features {
		t := f.Type
		if t == "" {
			t = "other"
		}
		byType[t]++
	}
	return len(features), byType
}
