package csvimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"labelflow/internal/draft"
	"labelflow/internal/template"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadError wraps a failure to read or decode the CSV source.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return "read csv: " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// ColumnMismatchError reports a header whose column count differs from the
// template's placeholder count.
type ColumnMismatchError struct {
	Columns      int
	Placeholders int
	Header       []string
	Names        []string
}

func (e *ColumnMismatchError) Error() string {
	return fmt.Sprintf("csv has %d columns %v but template has %d placeholders %v",
		e.Columns, e.Header, e.Placeholders, e.Names)
}

// ReadRows decodes comma-separated UTF-8 input. Rows may have differing
// lengths; a leading byte order mark is dropped.
func ReadRows(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, &ReadError{Err: err}
	}
	return rows, nil
}

// Import turns rows into draft tasks. The first row is always treated as a
// header and only its column count is checked. Cell i fills placeholder i
// with file type document; blank cells leave the slot untouched and blank
// rows are skipped. Returned tasks carry ID 0.
func Import(rows [][]string, placeholders []template.Placeholder) ([]draft.DraftTask, error) {
	if len(rows) == 0 {
		return nil, &ReadError{Err: fmt.Errorf("no header row")}
	}

	header := rows[0]
	if len(header) != len(placeholders) {
		names := make([]string, len(placeholders))
		for i, p := range placeholders {
			names[i] = p.Name
		}
		return nil, &ColumnMismatchError{
			Columns:      len(header),
			Placeholders: len(placeholders),
			Header:       append([]string(nil), header...),
			Names:        names,
		}
	}

	tasks := make([]draft.DraftTask, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		values := template.NewValues(len(placeholders))
		for i, cell := range row {
			if i >= len(placeholders) {
				break
			}
			if strings.TrimSpace(cell) == "" {
				continue
			}
			values[i] = &template.Value{Content: cell, FileType: template.FileDocument}
		}
		tasks = append(tasks, draft.DraftTask{Values: values})
	}
	return tasks, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
