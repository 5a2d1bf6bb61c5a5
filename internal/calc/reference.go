package calc

// CellRef3D is a 1-based, fully-resolved cell coordinate: sheet name, row,
// column. It is the public-facing coordinate type used at node boundaries;
// internal worksheet storage stays 0-based (CellAddress) for array
// indexing, and ToCellAddress/FromCellAddress bridge the two.
type CellRef3D struct {
	Sheet  string
	Row    int32
	Column int32
}

// ToCellAddress converts a resolved 1-based reference into the 0-based
// CellAddress the chunked worksheet storage indexes by.
func (r CellRef3D) ToCellAddress(worksheetID uint32) CellAddress {
	return CellAddress{
		WorksheetID: worksheetID,
		Row:         uint32(r.Row - 1),
		Column:      uint32(r.Column - 1),
	}
}

// OpenRangeUnset marks an open row or column endpoint, which
// contractOpenRange replaces with the worksheet's known dimensions. No
// formula syntax produces it (see RangeNode).
const (
	OpenRangeUnset int32 = -1
)

// contractOpenRange resolves a possibly-open range endpoint against a
// worksheet's current dimensions, turning "whole column"/"whole row"
// references into concrete bounds before any iteration happens.
func contractOpenRange(startRow, startCol, endRow, endCol int32, maxRow, maxCol int32) (r0, c0, r1, c1 int32) {
	if startRow == OpenRangeUnset {
		startRow = 1
	}
	if startCol == OpenRangeUnset {
		startCol = 1
	}
	if endRow == OpenRangeUnset {
		endRow = maxRow
	}
	if endCol == OpenRangeUnset {
		endCol = maxCol
	}
	if startRow > endRow {
		startRow, endRow = endRow, startRow
	}
	if startCol > endCol {
		startCol, endCol = endCol, startCol
	}
	return startRow, startCol, endRow, endCol
}

// ReferenceKind describes an unresolved reference node's shape before it is
// anchored to an origin cell. AbsoluteRow/AbsoluteColumn only affect how
// String() prints the reference: the lexer does not accept a $ prefix, so
// nothing sets them, and Resolve does not read them.
type ReferenceKind struct {
	SheetName      string // "" means "same sheet as origin"
	Row            int32
	Column         int32
	AbsoluteRow    bool
	AbsoluteColumn bool
}

// Resolve anchors a ReferenceKind against the cell that owns the formula:
// absolute axes are used as-is, relative axes are already stored as
// resolved values at formula compile time in this engine (the lexer/parser
// resolves relative offsets against the origin up front), so resolution
// here is just sheet defaulting.
func (rk ReferenceKind) Resolve(origin CellRef3D) CellRef3D {
	sheet := rk.SheetName
	if sheet == "" {
		sheet = origin.Sheet
	}
	return CellRef3D{Sheet: sheet, Row: rk.Row, Column: rk.Column}
}
