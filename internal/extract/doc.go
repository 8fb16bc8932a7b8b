// Package extract turns raw board and search-result HTML into catalog records.
//
// Job extraction is dispatched on the company's platform tag through a Registry of
// Extractor implementations. Adding a platform means writing one Extractor and
// registering it; platforms without an extractor produce no jobs and no error.
//
// Link extraction serves discovery: ExtractCompanyLinks harvests companies straight
// from result anchors, ExtractResultURLs lists outbound results worth crawling and
// FindBoardURL locates the ATS board referenced by a candidate page.
package extract
