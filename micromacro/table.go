package micromacro

// Table is a small in-memory data table: an id column plus named float64
// columns of equal length.  Tables are built once and read many times; the
// accessors return internal references, which callers must treat as
// read-only.
type Table struct {
	ids   []string
	names []string
	cols  [][]float64
}

// NewTable builds a table from an id column, column names, and column data.
// Every column must have one value per id.
func NewTable(ids []string, names []string, cols [][]float64) (*Table, error) {
	if len(names) != len(cols) {
		return nil, &DimensionError{Context: "table column names", Want: len(cols), Got: len(names)}
	}
	seen := make(map[string]bool, len(names))
	for _, na := range names {
		if seen[na] {
			return nil, inputErrorf("duplicate column name %q (columns: %s)", na, joinNames(names))
		}
		seen[na] = true
	}
	for j, c := range cols {
		if len(c) != len(ids) {
			return nil, &DimensionError{Context: "table column " + names[j], Want: len(ids), Got: len(c)}
		}
	}
	return &Table{ids: ids, names: names, cols: cols}, nil
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	return len(t.ids)
}

// IDs returns the id column.
func (t *Table) IDs() []string {
	return t.ids
}

// Names returns the column names, in order.
func (t *Table) Names() []string {
	return t.names
}

// Cols returns the data columns, aligned with Names.
func (t *Table) Cols() [][]float64 {
	return t.cols
}

// Col returns the named column, or nil if the table has no such column.
func (t *Table) Col(name string) []float64 {
	for j, na := range t.names {
		if na == name {
			return t.cols[j]
		}
	}
	return nil
}
