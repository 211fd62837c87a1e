package corpus

import (
	"cmp"
	"maps"
	"slices"
)

// Merge combines an existing corpus with freshly scraped records. A record
// is admitted only if its full five-field key is in neither existing nor an
// earlier incoming record. The admitted records are returned in incoming
// order alongside the merged corpus; existing is left untouched.
//
// Existing records keep their relative order and are never re-validated.
// Admitted records are appended after them, except that a record whose Year
// is older than the tail of existing is placed after the last existing
// record with a Year not greater than its own, so back-filling an earlier
// year keeps the Year-ascending order without reordering history. Incoming
// records need not be sorted: admitted records are placed by Year, keeping
// their incoming order within a year.
func Merge(existing *Corpus, incoming []Record) (*Corpus, []Record) {
	if existing == nil {
		existing = New()
	}

	merged := &Corpus{
		keys: maps.Clone(existing.keys),
	}
	if merged.keys == nil {
		merged.keys = make(map[Record]struct{})
	}

	var admitted []Record
	for _, r := range incoming {
		if _, ok := merged.keys[r]; ok {
			continue
		}
		merged.keys[r] = struct{}{}
		admitted = append(admitted, r)
	}

	merged.records = interleave(existing.records, admitted)
	return merged, admitted
}

// interleave appends admitted to existing. When an admitted record is older
// than what follows in existing it is slotted in before the first newer
// existing record. Existing keeps its order; admitted is stably sorted by
// Year first.
func interleave(existing, admitted []Record) []Record {
	out := make([]Record, 0, len(existing)+len(admitted))

	if !yearOrdered(admitted) {
		admitted = slices.Clone(admitted)
		slices.SortStableFunc(admitted, func(a, b Record) int {
			return cmp.Compare(a.Year, b.Year)
		})
	}

	if len(existing) == 0 || len(admitted) == 0 || admitted[0].Year >= existing[len(existing)-1].Year {
		out = append(out, existing...)
		return append(out, admitted...)
	}

	i, j := 0, 0
	for i < len(existing) && j < len(admitted) {
		if existing[i].Year <= admitted[j].Year {
			out = append(out, existing[i])
			i++
		} else {
			out = append(out, admitted[j])
			j++
		}
	}
	out = append(out, existing[i:]...)
	return append(out, admitted[j:]...)
}
