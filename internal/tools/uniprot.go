package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UniProtClient is a thin client for the UniProt REST API and the Reactome
// ContentService. No retry layer: a tool-level lookup either answers within
// its timeout or reports failure to the model.
type UniProtClient struct {
	BaseURL        string // https://rest.uniprot.org
	ReactomeURL    string // https://reactome.org/ContentService
	HTTPClient     *http.Client
	UserAgent      string
	RequestTimeout time.Duration
}

const (
	defaultUniProtURL  = "https://rest.uniprot.org"
	defaultReactomeURL = "https://reactome.org/ContentService"
	defaultUserAgent   = "LongevityKB/1.0"
)

func NewUniProtClient() *UniProtClient {
	return &UniProtClient{}
}

func (c *UniProtClient) base() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return defaultUniProtURL
}

func (c *UniProtClient) reactome() string {
	if c.ReactomeURL != "" {
		return strings.TrimRight(c.ReactomeURL, "/")
	}
	return defaultReactomeURL
}

func (c *UniProtClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *UniProtClient) timeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	return 20 * time.Second
}

func (c *UniProtClient) get(ctx context.Context, rawURL string, accept string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	ua := c.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return body, nil
}

// UniProt entry JSON, reduced to the fields the tools consume.

type UniProtEntry struct {
	PrimaryAccession   string        `json:"primaryAccession"`
	Genes              []UniProtGene `json:"genes"`
	ProteinDescription struct {
		RecommendedName struct {
			FullName struct {
				Value string `json:"value"`
			} `json:"fullName"`
		} `json:"recommendedName"`
	} `json:"proteinDescription"`
	Comments        []UniProtComment  `json:"comments"`
	Features        []UniProtFeature  `json:"features"`
	CrossReferences []UniProtCrossRef `json:"uniProtKBCrossReferences"`
}

type UniProtGene struct {
	GeneName *struct {
		Value string `json:"value"`
	} `json:"geneName"`
	Synonyms []struct {
		Value string `json:"value"`
	} `json:"synonyms"`
}

type UniProtComment struct {
	CommentType string `json:"commentType"`
	Texts       []struct {
		Value string `json:"value"`
	} `json:"texts"`
}

type UniProtFeature struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Location    struct {
		Start struct {
			Value int `json:"value"`
		} `json:"start"`
		End struct {
			Value int `json:"value"`
		} `json:"end"`
	} `json:"location"`
}

type UniProtCrossRef struct {
	Database   string `json:"database"`
	ID         string `json:"id"`
	Properties []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"properties"`
}

func (x UniProtCrossRef) Property(key string) string {
	for _, p := range x.Properties {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

type uniprotSearchResponse struct {
	Results []json.RawMessage `json:"results"`
}

// organismFilter maps an organism argument onto a UniProt query clause:
// "human" and the empty string mean taxon 9606, a digit string is a taxon
// id, anything else is matched by name.
func organismFilter(organism string) string {
	organism = strings.TrimSpace(organism)
	switch {
	case organism == "" || strings.EqualFold(organism, "human"):
		return "organism_id:9606"
	case isDigits(organism):
		return "organism_id:" + organism
	default:
		return "organism_name:" + organism
	}
}

// organismTaxID maps the common organism shorthands to taxonomy ids for
// entry-level lookups. Unknown organisms default to human.
func organismTaxID(organism string) string {
	switch strings.ToLower(strings.TrimSpace(organism)) {
	case "mouse":
		return "10090"
	case "rat":
		return "10116"
	default:
		return "9606"
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SearchEntry searches reviewed UniProtKB entries by gene or protein name
// and returns the top hit, or nil when nothing matched.
func (c *UniProtClient) SearchEntry(ctx context.Context, gene, orgFilter string, fields string) (*UniProtEntry, error) {
	q := fmt.Sprintf("(gene_exact:%s OR gene:%s OR protein_name:%s) AND %s AND reviewed:true", gene, gene, gene, orgFilter)
	v := url.Values{}
	v.Set("query", q)
	v.Set("fields", fields)
	v.Set("format", "json")
	v.Set("size", "1")
	body, err := c.get(ctx, c.base()+"/uniprotkb/search?"+v.Encode(), "application/json")
	if err != nil {
		return nil, err
	}
	var sr uniprotSearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decode UniProt search response: %w", err)
	}
	if len(sr.Results) == 0 {
		return nil, nil
	}
	var entry UniProtEntry
	if err := json.Unmarshal(sr.Results[0], &entry); err != nil {
		return nil, fmt.Errorf("decode UniProt entry: %w", err)
	}
	return &entry, nil
}

// SearchAccession resolves a gene symbol to its reviewed UniProt accession
// in the given taxon, or "" when not found.
func (c *UniProtClient) SearchAccession(ctx context.Context, gene, taxid string) (string, error) {
	v := url.Values{}
	v.Set("query", fmt.Sprintf("gene_exact:%s AND organism_id:%s AND reviewed:true", gene, taxid))
	v.Set("fields", "accession")
	v.Set("format", "json")
	v.Set("size", "1")
	body, err := c.get(ctx, c.base()+"/uniprotkb/search?"+v.Encode(), "application/json")
	if err != nil {
		return "", err
	}
	var sr uniprotSearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("decode UniProt search response: %w", err)
	}
	if len(sr.Results) == 0 {
		return "", nil
	}
	var entry UniProtEntry
	if err := json.Unmarshal(sr.Results[0], &entry); err != nil {
		return "", fmt.Errorf("decode UniProt entry: %w", err)
	}
	return entry.PrimaryAccession, nil
}

// FetchEntry downloads the full entry JSON for an accession.
func (c *UniProtClient) FetchEntry(ctx context.Context, accession string) (*UniProtEntry, error) {
	body, err := c.get(ctx, c.base()+"/uniprotkb/"+url.PathEscape(accession)+".json", "application/json")
	if err != nil {
		return nil, err
	}
	var entry UniProtEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("decode UniProt entry: %w", err)
	}
	return &entry, nil
}

// FetchFASTA downloads the canonical FASTA for an accession.
func (c *UniProtClient) FetchFASTA(ctx context.Context, accession string) (string, error) {
	body, err := c.get(ctx, c.base()+"/uniprotkb/"+url.PathEscape(accession)+".fasta", "")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PathwayDisplayName asks the Reactome ContentService for a pathway's
// display name. Best effort: failures return "".
func (c *UniProtClient) PathwayDisplayName(ctx context.Context, pathwayID string) string {
	body, err := c.get(ctx, c.reactome()+"/data/query/"+url.PathEscape(pathwayID), "application/json")
	if err != nil {
		return ""
	}
	var payload struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.DisplayName)
}

// FunctionText extracts the FUNCTION comment, falling back to the
// recommended protein name when no function comment exists.
func (e *UniProtEntry) FunctionText() string {
	for _, cm := range e.Comments {
		if strings.EqualFold(cm.CommentType, "FUNCTION") && len(cm.Texts) > 0 {
			if v := strings.TrimSpace(cm.Texts[0].Value); v != "" {
				return v
			}
		}
	}
	if name := e.ProteinDescription.RecommendedName.FullName.Value; name != "" {
		return "Protein names: " + name
	}
	return "No function description found"
}

// GeneSymbol returns the preferred gene name, or fallback when absent.
func (e *UniProtEntry) GeneSymbol(fallback string) string {
	if len(e.Genes) > 0 && e.Genes[0].GeneName != nil && e.Genes[0].GeneName.Value != "" {
		return e.Genes[0].GeneName.Value
	}
	return fallback
}

// GeneAliases collects the preferred names and synonyms across gene blocks.
func (e *UniProtEntry) GeneAliases() []string {
	var out []string
	seen := map[string]bool{}
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, g := range e.Genes {
		if g.GeneName != nil {
			add(g.GeneName.Value)
		}
		for _, s := range g.Synonyms {
			add(s.Value)
		}
	}
	return out
}
