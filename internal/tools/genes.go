package tools

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
)

// GeneInfo is one row of the gene reference table, reachable by any of its
// aliases.
type GeneInfo struct {
	CanonicalSymbol string
	EntrezID        string
	Type            string
	HGNCID          string
	EnsemblID       string
	AllNames        []string
}

// GeneIndex maps gene names, aliases, and Entrez IDs to canonical gene
// records. Lookups try the raw query first, then a normalized form with
// punctuation stripped and letters uppercased, so "Oct-4" and "OCT3/4" both
// resolve to POU5F1.
type GeneIndex struct {
	byAlias map[string]*GeneInfo
}

// LoadGeneIndex builds the alias index from a gene_info.txt TSV with columns
// symbol, synonyms (pipe-separated), entrez_id, type, hgnc_id, ensembl_id.
// Earlier rows win on alias collisions.
func LoadGeneIndex(path string) (*GeneIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gene table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse gene table: %w", err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("gene table is empty")
	}

	col := map[string]int{}
	for i, name := range rows[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, want := range []string{"symbol", "synonyms", "entrez_id", "type", "hgnc_id", "ensembl_id"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("gene table missing column %q", want)
		}
	}
	field := func(row []string, name string) string {
		i := col[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	idx := &GeneIndex{byAlias: map[string]*GeneInfo{}}
	for _, row := range rows[1:] {
		symbol := field(row, "symbol")
		if symbol == "" {
			continue
		}
		info := &GeneInfo{
			CanonicalSymbol: symbol,
			EntrezID:        field(row, "entrez_id"),
			Type:            field(row, "type"),
			HGNCID:          field(row, "hgnc_id"),
			EnsemblID:       field(row, "ensembl_id"),
		}

		names := map[string]struct{}{symbol: {}}
		if info.EntrezID != "" {
			names[info.EntrezID] = struct{}{}
		}
		for _, syn := range strings.Split(field(row, "synonyms"), "|") {
			if syn = strings.TrimSpace(syn); syn != "" {
				names[syn] = struct{}{}
			}
		}
		for name := range names {
			info.AllNames = append(info.AllNames, name)
		}
		sort.Strings(info.AllNames)

		for name := range names {
			for _, key := range []string{name, cleanGeneName(name)} {
				if key == "" {
					continue
				}
				if _, taken := idx.byAlias[key]; !taken {
					idx.byAlias[key] = info
				}
			}
		}
	}
	return idx, nil
}

// Normalize resolves a gene query to its canonical record, or nil when the
// query is unknown.
func (g *GeneIndex) Normalize(query string) *GeneInfo {
	if g == nil {
		return nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	for _, cand := range []string{query, cleanGeneName(query)} {
		if info, ok := g.byAlias[cand]; ok {
			return info
		}
	}
	return nil
}

// Len reports the number of distinct alias keys.
func (g *GeneIndex) Len() int {
	if g == nil {
		return 0
	}
	return len(g.byAlias)
}

// cleanGeneName strips everything but letters and digits and uppercases the
// rest.
func cleanGeneName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}
