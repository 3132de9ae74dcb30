package domain

// EnrichmentResult is the explicit per-repository outcome of the
// enrichment stage. A repo is either enriched or skipped with a reason;
// there is no partial credit.
type EnrichmentResult struct {
	Repo       string
	Enrichment *RepoEnrichment
	Skipped    bool
	Reason     string
}
