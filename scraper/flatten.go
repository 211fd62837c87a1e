package scraper

import "github.com/pevans/confpapers/corpus"

// Flatten expands a paper into one record per (author, affiliation) pair,
// author-major and affiliation-minor. An author without affiliations yields
// a single record with an empty Affiliation. A paper without authors yields
// nothing.
func Flatten(p Paper) []corpus.Record {
	var records []corpus.Record

	for _, author := range p.Authors {
		if len(author.Affiliations) == 0 {
			records = append(records, corpus.Record{
				Conference: p.Conference,
				Year:       p.Year,
				Title:      p.Title,
				Author:     author.Name,
			})
			continue
		}

		for _, affiliation := range author.Affiliations {
			records = append(records, corpus.Record{
				Conference:  p.Conference,
				Year:        p.Year,
				Title:       p.Title,
				Author:      author.Name,
				Affiliation: affiliation,
			})
		}
	}

	return records
}
