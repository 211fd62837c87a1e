// Package corpus holds the flat paper table: its record type, the
// duplicate-free ordered Corpus, the merge step and the CSV file format.
package corpus

import "slices"

// Corpus is an ordered, duplicate-free sequence of records. Records are kept
// in Year-ascending order by the merge step; ties keep insertion order.
type Corpus struct {
	records []Record
	keys    map[Record]struct{}
}

// New creates an empty corpus.
func New() *Corpus {
	return &Corpus{
		keys: make(map[Record]struct{}),
	}
}

// FromRecords builds a corpus from records in the given order, dropping
// exact duplicates after their first occurrence.
func FromRecords(records []Record) *Corpus {
	c := New()
	c.Add(records...)
	return c
}

// Len returns the number of records.
func (c *Corpus) Len() int {
	return len(c.records)
}

// Records returns a copy of the records in corpus order.
func (c *Corpus) Records() []Record {
	return slices.Clone(c.records)
}

// Contains reports whether a record with the same five fields is present.
func (c *Corpus) Contains(r Record) bool {
	_, ok := c.keys[r]
	return ok
}

// Add appends records that are not already present and returns how many
// were admitted. Existing records are never moved.
func (c *Corpus) Add(records ...Record) int {
	added := 0
	for _, r := range records {
		if _, ok := c.keys[r]; ok {
			continue
		}
		c.keys[r] = struct{}{}
		c.records = append(c.records, r)
		added++
	}
	return added
}

// Count returns the number of records for a conference and year.
func (c *Corpus) Count(conf Conference, year int) int {
	n := 0
	for _, r := range c.records {
		if r.Conference == conf && r.Year == year {
			n++
		}
	}
	return n
}

// MaxYear returns the largest year in the corpus, or 0 when empty.
func (c *Corpus) MaxYear() int {
	maxYear := 0
	for _, r := range c.records {
		if r.Year > maxYear {
			maxYear = r.Year
		}
	}
	return maxYear
}

// YearOrdered reports whether the Year field never decreases between
// consecutive records.
func (c *Corpus) YearOrdered() bool {
	return yearOrdered(c.records)
}

func yearOrdered(records []Record) bool {
	for i := 1; i < len(records); i++ {
		if records[i].Year < records[i-1].Year {
			return false
		}
	}
	return true
}
