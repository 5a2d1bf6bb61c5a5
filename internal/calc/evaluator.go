package calc

import (
	"math/rand/v2"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Clock provides the current time to volatile date/time functions (NOW,
// TODAY); injectable so tests get deterministic results.
type Clock interface {
	Now() time.Time
}

// WallClock is the default Clock using the system time.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

// RandomGenerator provides randomness to RAND/RANDBETWEEN; injectable for
// deterministic tests.
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses math/rand/v2.
type DefaultRandomGenerator struct{}

func (DefaultRandomGenerator) Float64() float64 { return rand.Float64() }

// WorkbookOptions configures the behavioral knobs a workbook's evaluator
// honors. The zero value matches the engine's historical behavior.
type WorkbookOptions struct {
	Clock           Clock
	Random          RandomGenerator
	// StrictBooleanCoercion makes OR/AND/XOR read text arguments as
	// TRUE/FALSE literals, so any other text (an empty string included) is
	// #VALUE!. When off, an empty string is skipped and any other text
	// counts as TRUE.
	StrictBooleanCoercion bool
	// Logger receives non-fatal recalculation diagnostics (circular
	// references, unknown function names). Defaults to the standard log
	// package. Never consulted for control flow.
	Logger Logger
}

func (o *WorkbookOptions) clock() Clock {
	if o != nil && o.Clock != nil {
		return o.Clock
	}
	return WallClock{}
}

func (o *WorkbookOptions) random() RandomGenerator {
	if o != nil && o.Random != nil {
		return o.Random
	}
	return DefaultRandomGenerator{}
}

func (o *WorkbookOptions) strictBools() bool {
	return o != nil && o.StrictBooleanCoercion
}

// cellState tracks a cell's progress through one recalculation pass: the
// three-state machine is what turns a self-reference into #CIRC! instead of
// infinite recursion.
type cellState uint8

const (
	stateNotEvaluated cellState = iota
	stateEvaluating
	stateEvaluated
)

// Evaluator drives one recalculation pass over a workbook. It is rebuilt
// fresh every Recalc/EvaluateFormula call: memoization and cycle detection
// live only for the lifetime of a single pass, never persisted between
// passes.
type Evaluator struct {
	wb      *Workbook
	options *WorkbookOptions
	state   map[CellAddress]cellState
	results map[CellAddress]CalcValue
}

func newEvaluator(wb *Workbook) *Evaluator {
	return &Evaluator{
		wb:      wb,
		options: wb.options,
		state:   make(map[CellAddress]cellState),
		results: make(map[CellAddress]CalcValue),
	}
}

// worksheetByName resolves a sheet name to its *Worksheet; an unknown or
// undefined worksheet reports not found (ok == false).
func (e *Evaluator) worksheetByName(name string) (*Worksheet, uint32, bool) {
	ws, ok := e.wb.storage.worksheets.GetWorksheetByName(name)
	if !ok {
		return nil, 0, false
	}
	return ws, ws.worksheetID, true
}

// Resolve evaluates a single resolved cell reference.
func (e *Evaluator) Resolve(target CellRef3D) (CalcValue, error) {
	ws, id, ok := e.worksheetByName(target.Sheet)
	if !ok {
		return NewCalcError(ErrorCodeRef, "reference to unknown worksheet"), nil
	}
	addr := target.ToCellAddress(id)
	return e.evaluateCell(ws, addr), nil
}

// readCell evaluates a single cell within an already-resolved worksheet; the
// RangeValue iterator and implicit intersection both funnel through here.
func (e *Evaluator) readCell(ws *Worksheet, row, col int32) CalcValue {
	addr := CellAddress{WorksheetID: ws.worksheetID, Row: uint32(row - 1), Column: uint32(col - 1)}
	return e.evaluateCell(ws, addr)
}

// evaluateCell is the memoized, cycle-detecting core of the evaluator: every
// reference, range cell, and formula dependency funnels through here.
func (e *Evaluator) evaluateCell(ws *Worksheet, addr CellAddress) CalcValue {
	switch e.state[addr] {
	case stateEvaluated:
		return e.results[addr]
	case stateEvaluating:
		e.logCircular(addr)
		return circularReferenceError()
	}

	cell := ws.GetCell(addr.Row, addr.Column)
	if cell == nil {
		e.state[addr] = stateEvaluated
		e.results[addr] = EmptyCell{}
		return EmptyCell{}
	}

	if cell.FormulaID == 0 {
		v := valueFromPrimitive(cell.Value)
		e.state[addr] = stateEvaluated
		e.results[addr] = v
		return v
	}

	e.state[addr] = stateEvaluating
	ast, ok := e.wb.storage.formulas.GetAST(cell.FormulaID)
	if !ok {
		v := NewCalcError(ErrorCodeValue, "formula not found")
		e.state[addr] = stateEvaluated
		e.results[addr] = v
		return v
	}

	sheetName, _ := e.wb.storage.worksheets.GetWorksheetName(addr.WorksheetID)
	origin := CellRef3D{Sheet: sheetName, Row: int32(addr.Row) + 1, Column: int32(addr.Column) + 1}

	result, err := ast.Eval(e, origin)
	if err != nil {
		if ce, ok := err.(*CalcError); ok {
			result = ce
		} else {
			result = NewCalcError(ErrorCodeValue, err.Error())
		}
	}
	if result == nil {
		result = EmptyCell{}
	}

	e.state[addr] = stateEvaluated
	e.results[addr] = result
	ws.SetFormulaResult(addr.Row, addr.Column, primitiveFromValue(result))
	return result
}

// ResolveRange builds a RangeValue for a two-endpoint reference, contracting
// open whole-row/whole-column endpoints against the worksheet's known
// dimensions first.
func (e *Evaluator) ResolveRange(start, end CellRef3D) (CalcValue, error) {
	if start.Sheet != end.Sheet {
		return NewCalcError(ErrorCodeRef, "cross-worksheet ranges are not supported"), nil
	}
	ws, _, ok := e.worksheetByName(start.Sheet)
	if !ok {
		return NewCalcError(ErrorCodeRef, "reference to unknown worksheet"), nil
	}

	startRow, startCol, endRow, endCol := contractOpenRange(start.Row, start.Column, end.Row, end.Column, ws.maxRow(), ws.maxCol())
	if startRow > endRow {
		startRow, endRow = endRow, startRow
	}
	if startCol > endCol {
		startCol, endCol = endCol, startCol
	}

	return &RangeValue{
		Sheet:     ws,
		SheetName: start.Sheet,
		StartRow:  startRow, EndRow: endRow,
		StartCol: startCol, EndCol: endCol,
	}, nil
}

// ResolveNamedRange looks up a defined name and returns the range (or
// single cell) it points to. A name scoped to origin.Sheet (see
// NamedRangeTable.ResolveID) shadows a workbook-level name of the same
// spelling.
func (e *Evaluator) ResolveNamedRange(name string, origin CellRef3D) (CalcValue, error) {
	id, exists := e.wb.storage.namedRanges.ResolveID(name, origin.Sheet)
	if !exists {
		return NewCalcError(ErrorCodeName, "unknown name: "+name), nil
	}
	addr, defined := e.wb.storage.namedRanges.GetRangeAddress(id)
	if !defined {
		return NewCalcError(ErrorCodeName, "name is not yet defined: "+name), nil
	}
	ws, ok := e.wb.storage.worksheets.GetWorksheet(addr.WorksheetID)
	if !ok {
		return NewCalcError(ErrorCodeRef, "named range refers to an unknown worksheet"), nil
	}
	sheetName, _ := e.wb.storage.worksheets.GetWorksheetName(addr.WorksheetID)
	return &RangeValue{
		Sheet:     ws,
		SheetName: sheetName,
		StartRow:  int32(addr.StartRow) + 1, EndRow: int32(addr.EndRow) + 1,
		StartCol: int32(addr.StartColumn) + 1, EndCol: int32(addr.EndColumn) + 1,
	}, nil
}

// Recalc recomputes every formula cell in the workbook from scratch: it
// builds a fresh Evaluator (fresh memoization/cycle state) and walks every
// known formula cell in a deterministic order (worksheet, row, column),
// driven by Node.Eval. Workbook.Calculate delegates here. The precedent
// index built alongside
// Set/Remove stays in place purely as an introspection index
// (GetPrecedents/GetDependents), never consulted here.
func Recalc(wb *Workbook) error {
	e := newEvaluator(wb)

	var addrs []CellAddress
	for addr := range wb.storage.formulas.formulaAtCell {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].WorksheetID != addrs[j].WorksheetID {
			return addrs[i].WorksheetID < addrs[j].WorksheetID
		}
		if addrs[i].Row != addrs[j].Row {
			return addrs[i].Row < addrs[j].Row
		}
		return addrs[i].Column < addrs[j].Column
	})

	for _, addr := range addrs {
		ws, ok := wb.storage.worksheets.GetWorksheet(addr.WorksheetID)
		if !ok {
			continue
		}
		e.evaluateCell(ws, addr)
	}

	return nil
}

// EvaluateFormula evaluates a single cell address against the workbook's
// current state without requiring a full Recalc first (used by diagnostics
// and by callers that only need one answer).
func EvaluateFormula(wb *Workbook, sheet string, row, col int32) (CalcValue, error) {
	e := newEvaluator(wb)
	return e.Resolve(CellRef3D{Sheet: sheet, Row: row, Column: col})
}

// BatchRecalculate recalculates a set of independent workbooks concurrently.
// Workbooks share no state, so each gets its own Evaluator; errgroup runs
// one goroutine per workbook, with no concurrency limit, and surfaces the
// first error.
func BatchRecalculate(wbs []*Workbook) error {
	var g errgroup.Group
	for _, wb := range wbs {
		wb := wb
		g.Go(func() error {
			return Recalc(wb)
		})
	}
	return g.Wait()
}
