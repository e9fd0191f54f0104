package types

// SearchResult is one hit from any search source. URL is well-formed or
// empty; results without URLs survive dedup but are skipped by the
// domain-diversity cap.
type SearchResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Description   string `json:"description"`
	Age           string `json:"age,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
	Domain        string `json:"domain,omitempty"`

	// Academic metadata
	DOI           string `json:"doi,omitempty"`
	Year          int    `json:"year,omitempty"`
	CitationCount int    `json:"citation_count,omitempty"`
	SourceTag     string `json:"source_tag,omitempty"` // Scholar, PubMed, CORE, ...

	// Enrichment
	ExtractedContent  string `json:"extracted_content,omitempty"`
	SciHubURL         string `json:"scihub_url,omitempty"`
	FullTextAvailable bool   `json:"full_text_available,omitempty"`
}
