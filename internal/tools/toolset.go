package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/davidzheglov/longevity-knowledge-base/internal/agent"
	"github.com/davidzheglov/longevity-knowledge-base/internal/artifacts"
)

// Toolset carries the shared dependencies of the tool implementations: the
// gene alias index and the UniProt client. Session state is passed per call,
// never held here.
type Toolset struct {
	Genes   *GeneIndex
	UniProt *UniProtClient
}

func registerRef(sess *artifacts.Session, path, typ, label string) (agent.ArtifactRef, bool) {
	id := sess.Store.Register(path, typ, label)
	if id == "" {
		return agent.ArtifactRef{}, false
	}
	return agent.ArtifactRef{ID: id, Path: path, Type: typ, Label: label}, true
}

func outputPath(sess *artifacts.Session, requested, fallback string) (string, error) {
	name := strings.TrimSpace(requested)
	if name == "" {
		name = fallback
	}
	return sess.Store.UniquePath(filepath.Base(name))
}

// --- Gene and protein tools ---

func (t *Toolset) NormalizeGene(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	query := agent.ArgString(args, "query")
	info := t.Genes.Normalize(query)
	if info == nil {
		return fmt.Sprintf("No match for '%s'.", query), nil, nil
	}
	aliases := info.AllNames
	if len(aliases) > 6 {
		aliases = aliases[:6]
	}
	out := fmt.Sprintf("Canonical: %s\nEntrez: %s | HGNC: %s | Ensembl: %s\nAliases: %s",
		info.CanonicalSymbol, info.EntrezID, info.HGNCID, info.EnsemblID, strings.Join(aliases, ", "))
	return out, nil, nil
}

// canonicalQuery upgrades a raw gene query to its canonical symbol when the
// alias index knows it, mirroring how every lookup tool pre-normalizes.
func (t *Toolset) canonicalQuery(query string) string {
	if info := t.Genes.Normalize(query); info != nil {
		return info.CanonicalSymbol
	}
	return strings.TrimSpace(query)
}

func (t *Toolset) FindUniProt(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	gene := t.canonicalQuery(agent.ArgString(args, "gene"))
	species := agent.ArgString(args, "species")
	if gene == "" {
		return "", nil, fmt.Errorf("empty gene query")
	}
	entry, err := t.UniProt.SearchEntry(ctx, gene, organismFilter(species), "accession,gene_names,protein_name")
	if err != nil {
		return "", nil, err
	}
	if entry == nil {
		return fmt.Sprintf("No reviewed UniProt entry found for %s in %s.", gene, speciesOrHuman(species)), nil, nil
	}
	symbol := entry.GeneSymbol(gene)
	aliases := entry.GeneAliases()
	if len(aliases) > 5 {
		aliases = aliases[:5]
	}
	name := entry.ProteinDescription.RecommendedName.FullName.Value
	if name == "" {
		name = "N/A"
	}
	out := fmt.Sprintf("Gene: %s | UniProt: %s\nProtein: %s\nAliases: %s",
		symbol, entry.PrimaryAccession, name, strings.Join(aliases, ", "))
	return out, nil, nil
}

func (t *Toolset) DownloadUniProtFASTA(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	gene := t.canonicalQuery(agent.ArgString(args, "gene"))
	species := agent.ArgString(args, "species")
	if gene == "" {
		return "", nil, fmt.Errorf("empty gene query")
	}
	entry, err := t.UniProt.SearchEntry(ctx, gene, organismFilter(species), "accession,gene_names")
	if err != nil {
		return "", nil, err
	}
	if entry == nil {
		return fmt.Sprintf("No reviewed UniProt entry found for %s in %s.", gene, speciesOrHuman(species)), nil, nil
	}
	fasta, err := t.UniProt.FetchFASTA(ctx, entry.PrimaryAccession)
	if err != nil {
		return "", nil, err
	}
	out, err := outputPath(sess, agent.ArgString(args, "output_file"), gene+".fasta")
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(out, []byte(fasta), 0o644); err != nil {
		return "", nil, err
	}
	var refs []agent.ArtifactRef
	if ref, ok := registerRef(sess, out, "fasta", gene+"_fasta"); ok {
		refs = append(refs, ref)
	}
	return fmt.Sprintf("Saved FASTA to: %s", out), refs, nil
}

func speciesOrHuman(species string) string {
	if strings.TrimSpace(species) == "" {
		return "human"
	}
	return species
}

// --- Mutation tools ---

func (t *Toolset) MutateReplace(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	rec, err := t.inputFASTA(sess, agent.ArgString(args, "fasta_file"))
	if err != nil {
		return "", nil, err
	}
	pos := agent.ArgInt(args, "position")
	newAA := agent.ArgString(args, "new_aa")
	mutated, old, err := replaceResidue(rec.Sequence, pos, newAA)
	if err != nil {
		return "", nil, err
	}
	rec.Header = fmt.Sprintf("%s | REPL %d%c>%s", rec.Header, pos, old, newAA)
	rec.Sequence = mutated
	return t.saveMutated(sess, rec, agent.ArgString(args, "output_file"), fmt.Sprintf("mut_replace_%d", pos))
}

func (t *Toolset) MutateDelete(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	rec, err := t.inputFASTA(sess, agent.ArgString(args, "fasta_file"))
	if err != nil {
		return "", nil, err
	}
	start := agent.ArgInt(args, "start")
	end := agent.ArgInt(args, "end")
	if end == 0 {
		end = start
	}
	mutated, removed, err := deleteRange(rec.Sequence, start, end)
	if err != nil {
		return "", nil, err
	}
	rec.Header = fmt.Sprintf("%s | DEL %d-%d:%s", rec.Header, start, end, removed)
	rec.Sequence = mutated
	return t.saveMutated(sess, rec, agent.ArgString(args, "output_file"), fmt.Sprintf("mut_delete_%d_%d", start, end))
}

func (t *Toolset) MutateInsert(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	rec, err := t.inputFASTA(sess, agent.ArgString(args, "fasta_file"))
	if err != nil {
		return "", nil, err
	}
	pos := agent.ArgInt(args, "position")
	ins := agent.ArgString(args, "insert_seq")
	mutated, err := insertAfter(rec.Sequence, pos, ins)
	if err != nil {
		return "", nil, err
	}
	rec.Header = fmt.Sprintf("%s | INS after %d:%s", rec.Header, pos, ins)
	rec.Sequence = mutated
	return t.saveMutated(sess, rec, agent.ArgString(args, "output_file"), fmt.Sprintf("mut_insert_%d", pos))
}

func (t *Toolset) MutateTruncate(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	rec, err := t.inputFASTA(sess, agent.ArgString(args, "fasta_file"))
	if err != nil {
		return "", nil, err
	}
	pos := agent.ArgInt(args, "position")
	mutated, err := truncateAt(rec.Sequence, pos)
	if err != nil {
		return "", nil, err
	}
	rec.Header = fmt.Sprintf("%s | TRUNCATED after %d", rec.Header, pos)
	rec.Sequence = mutated
	return t.saveMutated(sess, rec, agent.ArgString(args, "output_file"), fmt.Sprintf("mut_truncate_%d", pos))
}

func (t *Toolset) inputFASTA(sess *artifacts.Session, ref string) (FASTARecord, error) {
	path, err := resolveInputPath(sess, ref)
	if err != nil {
		return FASTARecord{}, err
	}
	return ReadFASTA(path)
}

func (t *Toolset) saveMutated(sess *artifacts.Session, rec FASTARecord, outputFile, label string) (string, []agent.ArtifactRef, error) {
	out, err := outputPath(sess, outputFile, "mutated.fasta")
	if err != nil {
		return "", nil, err
	}
	if err := WriteFASTA(out, rec); err != nil {
		return "", nil, err
	}
	var refs []agent.ArtifactRef
	if ref, ok := registerRef(sess, out, "fasta", label); ok {
		refs = append(refs, ref)
	}
	return fmt.Sprintf("Saved mutated FASTA to: %s", out), refs, nil
}

func (t *Toolset) ApplyProteinMutations(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	fastaRef := agent.ArgString(args, "fasta_file")
	path, err := resolveInputPath(sess, fastaRef)
	if err != nil {
		return "", nil, err
	}
	rec, err := ReadFASTA(path)
	if err != nil {
		return "", nil, err
	}
	directives := agent.ArgStringList(args, "mutations")

	mutated, edits, err := ApplyMutations(rec.Sequence, directives)
	if err != nil {
		return "", nil, err
	}

	outFasta, err := outputPath(sess, agent.ArgString(args, "output_file"), "mutated.fasta")
	if err != nil {
		return "", nil, err
	}
	outReport, err := outputPath(sess, agent.ArgString(args, "report_file"), "mutations_report.txt")
	if err != nil {
		return "", nil, err
	}

	report := []string{
		fmt.Sprintf("Input FASTA: %s", path),
		fmt.Sprintf("Original length: %d aa", len(rec.Sequence)),
		fmt.Sprintf("Mutations provided: %d", len(directives)),
		reportRule,
	}
	report = append(report, edits...)
	report = append(report, fmt.Sprintf("\nMutated FASTA saved to: %s", outFasta))
	report = append(report, fmt.Sprintf("\nFinal length: %d aa", len(mutated)))

	if err := WriteFASTA(outFasta, FASTARecord{Header: rec.Header, Sequence: mutated}); err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(outReport, []byte(strings.Join(report, "\n")), 0o644); err != nil {
		return "", nil, err
	}

	var refs []agent.ArtifactRef
	if ref, ok := registerRef(sess, outFasta, "fasta", "mutated_fasta"); ok {
		refs = append(refs, ref)
	}
	if ref, ok := registerRef(sess, outReport, "txt", "mutation_report"); ok {
		refs = append(refs, ref)
	}
	return fmt.Sprintf("Mutations applied. FASTA: %s\nReport: %s", outFasta, outReport), refs, nil
}

func (t *Toolset) CompareSolubilityAndPI(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	wtPath, err := resolveInputPath(sess, agent.ArgString(args, "wt_fasta"))
	if err != nil {
		return "", nil, err
	}
	mutPath, err := resolveInputPath(sess, agent.ArgString(args, "mut_fasta"))
	if err != nil {
		return "", nil, err
	}
	wt, err := ReadFASTA(wtPath)
	if err != nil {
		return "", nil, err
	}
	mu, err := ReadFASTA(mutPath)
	if err != nil {
		return "", nil, err
	}
	cmp, err := CompareSolubility(wt.Sequence, mu.Sequence)
	if err != nil {
		return "", nil, err
	}
	out, err := outputPath(sess, agent.ArgString(args, "output_file"), "solubility_pI_comparison.txt")
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(out, []byte(cmp.Report()), 0o644); err != nil {
		return "", nil, err
	}
	var refs []agent.ArtifactRef
	if ref, ok := registerRef(sess, out, "txt", "solubility_pI"); ok {
		refs = append(refs, ref)
	}
	return fmt.Sprintf("Comparison report saved to: %s", out), refs, nil
}

// --- UniProt annotation tools ---

func (t *Toolset) GetProteinFunction(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	gene := t.canonicalQuery(agent.ArgString(args, "gene"))
	organism := agent.ArgString(args, "organism")
	entry, err := t.entryForGene(ctx, gene, organism)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s (%s) protein function:\n%s", gene, speciesOrHuman(organism), entry.FunctionText()), nil, nil
}

func (t *Toolset) GetUniProtFeatures(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	gene := t.canonicalQuery(agent.ArgString(args, "gene"))
	entry, err := t.entryForGene(ctx, gene, agent.ArgString(args, "organism"))
	if err != nil {
		return "", nil, err
	}
	total, byType := FeatureSummary(entry.Features)
	types := make([]string, 0, len(byType))
	for k := range byType {
		types = append(types, k)
	}
	sort.Strings(types)
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d UniProt features for %s.", total, gene)
	for _, k := range types {
		fmt.Fprintf(&b, "\n- %s: %d", k, byType[k])
	}
	return b.String(), nil, nil
}

func (t *Toolset) GetReactomePathways(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	query := agent.ArgString(args, "query")
	symbol := t.canonicalQuery(query)
	entry, err := t.entryForGene(ctx, symbol, "human")
	if err != nil {
		return "", nil, err
	}
	pathways := ReactomePathways(entry)
	if len(pathways) == 0 {
		return fmt.Sprintf("No Reactome pathways found for %s.", query), nil, nil
	}
	for i := range pathways {
		if pathways[i].Name == "" {
			pathways[i].Name = t.UniProt.PathwayDisplayName(ctx, pathways[i].ID)
		}
	}
	out, err := outputPath(sess, "", symbol+"_Reactome.txt")
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(out, []byte(ReactomeReport(pathways)), 0o644); err != nil {
		return "", nil, err
	}
	var refs []agent.ArtifactRef
	if ref, ok := registerRef(sess, out, "txt", "Reactome_"+query); ok {
		refs = append(refs, ref)
	}
	return fmt.Sprintf("Reactome report saved to: %s", out), refs, nil
}

func (t *Toolset) GetGOAnnotation(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	query := agent.ArgString(args, "query")
	symbol := t.canonicalQuery(query)
	entry, err := t.entryForGene(ctx, symbol, "human")
	if err != nil {
		return "", nil, err
	}
	annotations := GOAnnotations(entry)
	if len(annotations) == 0 {
		return fmt.Sprintf("No GO annotations found for %s.", query), nil, nil
	}
	out, err := outputPath(sess, "", symbol+"_GO.txt")
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(out, []byte(GOReport(symbol, entry.PrimaryAccession, annotations)), 0o644); err != nil {
		return "", nil, err
	}
	var refs []agent.ArtifactRef
	if ref, ok := registerRef(sess, out, "txt", "GO_"+query); ok {
		refs = append(refs, ref)
	}
	return fmt.Sprintf("GO report saved to: %s", out), refs, nil
}

func (t *Toolset) GetDrugInfo(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	query := agent.ArgString(args, "query")
	symbol := t.canonicalQuery(query)
	entry, err := t.entryForGene(ctx, symbol, "human")
	if err != nil {
		return "", nil, err
	}
	drugs := DrugAnnotations(entry)
	if len(drugs) == 0 {
		return fmt.Sprintf("No drug info found for %s.", query), nil, nil
	}
	out, err := outputPath(sess, "", symbol+"_Drugs.txt")
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(out, []byte(DrugReport(symbol, entry.PrimaryAccession, drugs)), 0o644); err != nil {
		return "", nil, err
	}
	var refs []agent.ArtifactRef
	if ref, ok := registerRef(sess, out, "txt", "Drugs_"+query); ok {
		refs = append(refs, ref)
	}
	return fmt.Sprintf("Drug report saved to: %s", out), refs, nil
}

func (t *Toolset) entryForGene(ctx context.Context, gene, organism string) (*UniProtEntry, error) {
	if strings.TrimSpace(gene) == "" {
		return nil, fmt.Errorf("empty gene query")
	}
	acc, err := t.UniProt.SearchAccession(ctx, gene, organismTaxID(organism))
	if err != nil {
		return nil, err
	}
	if acc == "" {
		return nil, fmt.Errorf("gene %s not found in UniProt", gene)
	}
	return t.UniProt.FetchEntry(ctx, acc)
}

// --- Artifact registry tools ---

func (t *Toolset) ArtifactsList(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	items := sess.Store.List(agent.ArgString(args, "artifact_type"))
	if len(items) == 0 {
		return "No artifacts recorded.", nil, nil
	}
	return formatArtifactLines("Artifacts:", items), nil, nil
}

func (t *Toolset) ArtifactsResolve(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	path, ok := sess.Store.Resolve(agent.ArgString(args, "id_or_label"))
	if !ok {
		return "Artifact not found.", nil, nil
	}
	return path, nil, nil
}

func (t *Toolset) ArtifactsSearch(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	items := sess.Store.Search(agent.ArgString(args, "name_substring"))
	if len(items) == 0 {
		return "No matching artifacts.", nil, nil
	}
	return formatArtifactLines("Matches:", items), nil, nil
}

func (t *Toolset) ArtifactsReadText(ctx context.Context, sess *artifacts.Session, args map[string]any) (string, []agent.ArtifactRef, error) {
	ref := agent.ArgString(args, "id_or_path")
	maxBytes := agent.ArgInt(args, "max_bytes")
	return sess.Store.ReadText(ref, maxBytes), nil, nil
}

func formatArtifactLines(title string, items []artifacts.Artifact) string {
	lines := []string{title}
	for _, it := range items {
		line := fmt.Sprintf("- %s [%s] %s", it.ID, it.Type, it.Path)
		if it.Label != "" {
			line += fmt.Sprintf(" (%s)", it.Label)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
