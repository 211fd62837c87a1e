package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
)

// RowError describes a corpus row that could not be parsed.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ErrBadHeader is returned when a corpus file does not start with Header.
var ErrBadHeader = errors.New("corpus header must be Conference,Year,Title,Author,Affiliation")

// WriteCSV writes records as CSV rows, optionally preceded by the header.
// Fields containing a comma, a quote or a line break are quoted with inner
// quotes doubled, so output without a header can be appended to an existing
// corpus file.
func WriteCSV(w io.Writer, records []Record, header bool) error {
	cw := csv.NewWriter(w)

	if header {
		if err := cw.Write(Header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := make([]string, len(Header))
	for _, r := range records {
		row[0] = string(r.Conference)
		row[1] = strconv.Itoa(r.Year)
		row[2] = r.Title
		row[3] = r.Author
		row[4] = r.Affiliation
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// ReadCSV parses a corpus file written by WriteCSV. The header row is
// required. Every row must name a known conference and carry a year, a
// title and an author; the first row that does not is reported as a
// RowError. Rows are returned in file order without deduplication.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !slices.Equal(head, Header) {
		return nil, ErrBadHeader
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &RowError{Line: pe.Line, Err: pe.Err}
			}
			return nil, fmt.Errorf("failed to read corpus: %w", err)
		}
		line, _ := cr.FieldPos(0)

		year, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, &RowError{Line: line, Err: fmt.Errorf("invalid year %q", row[1])}
		}

		conf, err := ParseConference(row[0])
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}

		record := Record{
			Conference:  conf,
			Year:        year,
			Title:       row[2],
			Author:      row[3],
			Affiliation: row[4],
		}
		if err := record.Validate(); err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		records = append(records, record)
	}

	return records, nil
}
