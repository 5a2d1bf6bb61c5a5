package calc

// Storage holds references to shared tables needed by storage operations
type Storage struct {
	worksheets      *WorksheetTable
	namedRanges     *NamedRangeTable
	strings         *StringTable
	formulas        *FormulaTable
	precedents      *PrecedentIndex
	tables          map[string]*TableDefinition
}

// TableDefinition is a structured-table region: a named rectangle on a
// sheet, optionally with active filters. SUBTOTAL's 1xx codes skip rows a
// table has filtered out.
type TableDefinition struct {
	SheetName          string
	StartRow, StartCol int32
	EndRow, EndCol     int32
	HasFilters         bool
	FilteredOutRows    map[int32]struct{}
}

// Contains reports whether the given 1-based row/column on sheetName falls
// inside the table's rectangle.
func (t *TableDefinition) Contains(sheetName string, row, col int32) bool {
	return t.SheetName == sheetName &&
		row >= t.StartRow && row <= t.EndRow &&
		col >= t.StartCol && col <= t.EndCol
}

// RowFilteredOut reports whether a table with active filters has excluded
// this row from its visible results.
func (t *TableDefinition) RowFilteredOut(row int32) bool {
	if !t.HasFilters {
		return false
	}
	_, excluded := t.FilteredOutRows[row]
	return excluded
}

func (s *Storage) tableCoveringCell(sheetName string, row, col int32) *TableDefinition {
	for _, t := range s.tables {
		if t.Contains(sheetName, row, col) {
			return t
		}
	}
	return nil
}
