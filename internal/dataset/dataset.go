// Package dataset reads and writes the two-column (id, text) CSV files that
// hold source documents, candidate summaries and references.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrMissingColumn is wrapped when a required header column is absent.
var ErrMissingColumn = errors.New("missing column")

const bom = "\ufeff"

// Columns names the id and text columns of a CSV file.
type Columns struct {
	ID   string `yaml:"id" validate:"required"`
	Text string `yaml:"text" validate:"required"`
}

// Row is one document id and its text.
type Row struct {
	ID   string
	Text string
}

// Table is an ordered set of rows indexed by id. When an id repeats, the
// first row wins for lookups and Unique, and the id is recorded in
// Duplicates. Rows keeps every row as read.
type Table struct {
	Name       string
	Rows       []Row
	Duplicates []string

	index map[string]int
}

// NewTable indexes rows.
func NewTable(name string, rows []Row) *Table {
	t := &Table{Name: name, Rows: rows, index: make(map[string]int, len(rows))}
	for i, r := range rows {
		if _, ok := t.index[r.ID]; ok {
			t.Duplicates = append(t.Duplicates, r.ID)
			continue
		}
		t.index[r.ID] = i
	}
	return t
}

// Len returns the number of rows, duplicates included.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Lookup returns the text of the first row with id.
func (t *Table) Lookup(id string) (string, bool) {
	i, ok := t.index[id]
	if !ok {
		return "", false
	}
	return t.Rows[i].Text, true
}

// Unique returns the first row of each id in file order.
func (t *Table) Unique() []Row {
	if len(t.Duplicates) == 0 {
		return t.Rows
	}
	rows := make([]Row, 0, len(t.index))
	for i, r := range t.Rows {
		if t.index[r.ID] == i {
			rows = append(rows, r)
		}
	}
	return rows
}

// IDs returns the row ids in file order.
func (t *Table) IDs() []string {
	ids := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		ids[i] = r.ID
	}
	return ids
}

// Texts returns the row texts in file order.
func (t *Table) Texts() []string {
	texts := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		texts[i] = r.Text
	}
	return texts
}

// Align returns the texts for ids in the given order. Ids without a row get
// "" and are returned in missing.
func (t *Table) Align(ids []string) (texts, missing []string) {
	texts = make([]string, len(ids))
	for i, id := range ids {
		text, ok := t.Lookup(id)
		if !ok {
			missing = append(missing, id)
		}
		texts[i] = text
	}
	return texts, missing
}

// Load reads a CSV file. The table is named after the file without its
// extension.
func Load(path string, cols Columns) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := Read(f, name, cols)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// Read parses CSV from r. Short rows read missing cells as "" and invalid
// UTF-8 is dropped.
func Read(r io.Reader, name string, cols Columns) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: %w", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}

	idCol, err := column(header, cols.ID)
	if err != nil {
		return nil, err
	}
	textCol, err := column(header, cols.Text)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, Row{ID: cell(rec, idCol), Text: cell(rec, textCol)})
	}
	return NewTable(name, rows), nil
}

// Save writes rows to path as a two-column CSV.
func Save(path string, cols Columns, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, cols, rows); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Write writes a header and rows as CSV.
func Write(w io.Writer, cols Columns, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{cols.ID, cols.Text}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.ID, r.Text}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func column(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%q: %w", name, ErrMissingColumn)
}

func cell(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.ToValidUTF8(rec[i], "")
}
