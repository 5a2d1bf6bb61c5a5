package calc

import (
	"fmt"
	"strings"

	"github.com/mohae/deepcopy"
)

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case,
// like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error. Errors raised by APIs that do not return enough error
	// information may be converted to this error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates client specified an invalid argument.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity (e.g., worksheet or named range)
	// was not found.
	NotFound AppErrorCode = 5

	// AlreadyExists means an attempt to create an entity failed because one
	// already exists.
	AlreadyExists AppErrorCode = 6

	// ResourceExhausted indicates some resource has been exhausted, perhaps
	// a per-user quota, or perhaps the entire file system is out of space.
	ResourceExhausted AppErrorCode = 8

	// FailedPrecondition indicates operation was rejected because the
	// system is not in a state required for the operation's execution.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means operation was attempted past the valid range.
	OutOfRange AppErrorCode = 11

	// Unimplemented indicates operation is not implemented or not
	// supported/enabled in this service.
	Unimplemented AppErrorCode = 12

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

// AppError represents errors at the application level (not
// workbook formula errors)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Workbook is the main workbook class that combines storage, parsing,
// dependency tracking, and formula evaluation into a unified API
type Workbook struct {
	storage        *Storage
	options        *WorkbookOptions
	currentAddress CellAddress
}

// NewWorkbook creates a new workbook instance with default options (system
// clock, math/rand/v2 randomness, the historical non-strict OR/AND
// boolean coercion).
func NewWorkbook() *Workbook {
	return NewWorkbookWithOptions(nil)
}

// NewWorkbookWithOptions creates a workbook whose volatile functions and
// boolean-coercion strictness are driven by opts instead of the defaults;
// a nil opts behaves exactly like NewWorkbook.
func NewWorkbookWithOptions(opts *WorkbookOptions) *Workbook {
	storage := &Storage{
		worksheets:  NewWorksheetTable(),
		namedRanges: NewNamedRangeTable(),
		strings:     NewStringTable(),
		formulas:    NewFormulaTable(),
		precedents:  NewPrecedentIndex(),
	}

	return &Workbook{
		storage: storage,
		options: opts,
	}
}

// Snapshot deep-copies the workbook's storage (worksheets, formulas, named
// ranges, and precedent index) into a restorable checkpoint. Mutation entry
// points in this engine invalidate the state map wholesale rather than
// tracking edits incrementally, so a host that wants to try a batch of
// speculative edits and discard them takes a Snapshot first and calls
// Restore if the batch should not stick.
func (s *Workbook) Snapshot() *Workbook {
	return &Workbook{
		storage: deepcopy.Copy(s.storage).(*Storage),
		options: s.options,
	}
}

// Restore replaces the workbook's storage with a previously taken Snapshot,
// discarding every edit and cached calculation made since.
func (s *Workbook) Restore(snapshot *Workbook) {
	s.storage = snapshot.storage
	s.currentAddress = snapshot.currentAddress
}

// resolveAddress parses a cell address and resolves it to worksheet ID, row, and column
// Returns worksheet ID (0 for unknown), row and column indices (0-based), or an error
func (s *Workbook) resolveAddress(address string) (worksheetID uint32, row uint32, col uint32, err error) {
	// a standalone address carries no implicit current sheet
	parser := NewParserWithContext(&ParserContext{CurrentSheet: ""})

	ref, parseErr := parser.parseFullAddress(address)
	if parseErr != nil {
		return 0, 0, 0, NewApplicationError(InvalidArgument, fmt.Sprintf("Invalid address: %v", parseErr))
	}
	if ref.Sheet == "" {
		return 0, 0, 0, nil
	}

	worksheetID = s.resolveWorksheetByName(ref.Sheet)
	row = uint32(ref.Row - 1)
	col = uint32(ref.Column - 1)

	return worksheetID, row, col, nil
}

// resolveWorksheetByName resolves a worksheet name to its ID
func (s *Workbook) resolveWorksheetByName(name string) uint32 {
	worksheet, exists := s.storage.worksheets.GetWorksheetByName(name)
	if !exists {
		return 0 // return 0 for non-existent worksheets
	}
	return worksheet.worksheetID
}

type WorkbookInterface interface {
	// cell methods

	Get(address string) (Primitive, error)
	Set(address string, value Primitive) error
	Remove(address string) error

	// worksheet methods

	AddWorksheet(name string) error
	RemoveWorksheet(name string) error
	RenameWorksheet(oldName string, newName string) error
	DoesWorksheetExist(name string) bool
	ListWorksheets() []string
	ListReferencedWorksheets() []string

	// named range methods

	AddNamedRange(name string) error
	RemoveNamedRange(name string) error
	RenameNamedRange(oldName string, newName string) error
	DoesNamedRangeExist(name string) bool
	ListNamedRanges() []string
	ListReferencedNamedRanges() []string

	// common methods

	Calculate() error
}

// Implementation of WorkbookInterface

var _ WorkbookInterface = (*Workbook)(nil)

// Get retrieves the value of a cell
func (s *Workbook) Get(address string) (Primitive, error) {
	worksheetID, row, col, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}

	// handle unknown worksheet (ID = 0)
	if worksheetID == 0 {
		return NewCalcError(ErrorCodeValue, "Worksheet not found"), nil
	}

	// get worksheet by ID
	worksheet, exists := s.storage.worksheets.GetWorksheet(worksheetID)
	if !exists {
		return nil, nil // return nil for non-existent worksheet
	}

	// get cell
	cell := worksheet.GetCell(row, col)
	if cell == nil {
		return nil, nil
	}

	return cell.Value, nil
}

// Set sets the value of a cell
func (s *Workbook) Set(address string, value Primitive) error {
	// first, try to handle the special case
	// "WorksheetA!WorksheetB!CellRef" -> "WorksheetB!CellRef"
	originalAddress := address
	parts := strings.Split(address, "!")
	if len(parts) == 3 {
		// try corrected address "WorksheetB!CellRef"
		address = parts[1] + "!" + parts[2]
	}

	worksheetID, row, col, err := s.resolveAddress(address)
	if err != nil {
		// if correction failed, try original error handling
		if appErr, ok := err.(*AppError); ok && appErr.Code == InvalidArgument {
			// extract worksheet name from original address (before first !)
			if exclamationIdx := strings.Index(originalAddress, "!"); exclamationIdx > 0 {
				worksheetName := originalAddress[:exclamationIdx]
				// ensure worksheet exists
				if !s.storage.worksheets.Contains(worksheetName) {
					worksheet := NewWorksheet(s.storage, 0)
					worksheetID = s.storage.worksheets.DefineWorksheet(worksheetName, worksheet)
					worksheet.worksheetID = worksheetID
				} else {
					ws, _ := s.storage.worksheets.GetWorksheetByName(worksheetName)
					worksheetID = ws.worksheetID
				}
				// store error in A1 (0,0) of the worksheet
				worksheet, _ := s.storage.worksheets.GetWorksheet(worksheetID)
				worksheet.SetCell(0, 0, NewCalcError(ErrorCodeRef, "Invalid address format"), "")
				return nil
			}
		}
		return err
	}

	// handle unknown worksheet (ID = 0)
	if worksheetID == 0 {
		return NewApplicationError(InvalidArgument, "Cannot set cell on unknown worksheet")
	}

	// get worksheet by ID
	worksheet, exists := s.storage.worksheets.GetWorksheet(worksheetID)
	if !exists {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("Worksheet with ID %d not found", worksheetID))
	}

	cellAddr := CellAddress{
		WorksheetID: worksheetID,
		Row:         row,
		Column:      col,
	}

	// check if value is a formula (starts with =)
	var formula string
	if str, ok := value.(string); ok && len(str) > 0 && str[0] == '=' {
		formula = str // keep the = sign for the lexer
		value = nil   // formula cells don't have a direct value

		// parse the formula
		lexer := NewLexer(formula)
		tokens, lexErrors := lexer.Tokenize()
		if len(lexErrors) > 0 {
			// check if this is an invalid range reference (cross-worksheet range)
			// or worksheet reference
			errorMsg := strings.Join(lexErrors, "; ")
			if strings.Contains(errorMsg, "invalid range reference") || strings.Contains(errorMsg, "invalid cell reference after worksheet") {
				worksheet.SetCell(row, col, NewCalcError(ErrorCodeRef, errorMsg), "")
			} else {
				// store error in cell
				worksheet.SetCell(row, col, NewCalcError(ErrorCodeValue, errorMsg), "")
			}
			return nil
		}

		sheetName, _ := s.storage.worksheets.GetWorksheetName(worksheet.worksheetID)
		parserContext := &ParserContext{CurrentSheet: sheetName}

		parser := NewParser(tokens, parserContext)
		ast, parseErr := parser.Parse()
		if parseErr != nil {
			// check if this is a REF error for cross-worksheet ranges
			if ce, ok := parseErr.(*CalcError); ok && ce.ErrorCode == ErrorCodeRef {
				worksheet.SetCell(row, col, NewCalcError(ErrorCodeRef, ce.Message), "")
			} else {
				// store error in cell
				worksheet.SetCell(row, col, NewCalcError(ErrorCodeValue, parseErr.Error()), "")
			}
			return nil
		}

		// intern the formula
		formulaID := s.storage.formulas.InternFormula(ast, cellAddr)

		// extract precedents from the AST for GetPrecedents/GetDependents
		s.extractDependencies(ast, cellAddr)

		// record the formula text itself, so SUBTOTAL can recognize nested
		// SUBTOTAL calls without re-resolving the AST (see ifs.go)
		s.storage.precedents.SetFormula(cellAddr, formula)

		// store formula ID in cell
		worksheet.SetCell(row, col, nil, formula)

		// store formula ID directly in chunk
		chunkRow := row / ChunkRows
		chunkCol := col / ChunkCols
		localRow := row % ChunkRows
		localCol := col % ChunkCols
		chunk := worksheet.getChunk(chunkRow, chunkCol)
		idx := localCol*ChunkRows + localRow
		if chunk.FormulaIDs == nil {
			chunk.FormulaIDs = make([]uint32, ChunkSize)
		}
		chunk.FormulaIDs[idx] = formulaID
	} else {
		// a plain value replaces any formula that used to live here, so its
		// recorded precedents are stale and forgotten
		s.storage.precedents.ClearDependencies(cellAddr)

		worksheet.SetCell(row, col, value, "")
	}

	return nil
}

// Remove removes a cell
func (s *Workbook) Remove(address string) error {
	worksheetID, row, col, err := s.resolveAddress(address)
	if err != nil {
		return err
	}

	// handle unknown worksheet (ID = 0)
	if worksheetID == 0 {
		return nil // Nothing to remove from unknown worksheet
	}

	// get worksheet by ID
	worksheet, exists := s.storage.worksheets.GetWorksheet(worksheetID)
	if !exists {
		return nil // nothing to remove
	}

	cellAddr := CellAddress{
		WorksheetID: worksheetID,
		Row:         row,
		Column:      col,
	}

	s.storage.precedents.ClearDependencies(cellAddr)
	worksheet.RemoveCell(row, col)
	s.storage.precedents.RemoveNode(cellAddr)

	return nil
}

// AddWorksheet adds a new worksheet
func (s *Workbook) AddWorksheet(name string) error {
	if s.storage.worksheets.Contains(name) {
		return NewApplicationError(AlreadyExists, "Worksheet already exists")
	}

	worksheet := NewWorksheet(s.storage, 0)
	worksheetID := s.storage.worksheets.DefineWorksheet(name, worksheet)
	worksheet.worksheetID = worksheetID

	return nil
}

// RemoveWorksheet removes a worksheet
func (s *Workbook) RemoveWorksheet(name string) error {
	if !s.storage.worksheets.Contains(name) {
		return NewApplicationError(NotFound, "Worksheet not found")
	}

	// get the worksheet ID before removing
	worksheet, _ := s.storage.worksheets.GetWorksheetByName(name)
	worksheetID := worksheet.worksheetID

	// drop every precedent-index entry that belonged to this worksheet; a
	// stray node pointing at a worksheet ID that no longer resolves would
	// otherwise surface as a broken answer from GetPrecedents/GetDependents
	var cellsToRemove []CellAddress
	for cellAddr := range s.storage.precedents.nodes {
		if cellAddr.WorksheetID == worksheetID {
			cellsToRemove = append(cellsToRemove, cellAddr)
		}
	}
	for _, cellAddr := range cellsToRemove {
		s.storage.precedents.RemoveNode(cellAddr)
	}

	s.storage.worksheets.UndefineWorksheet(name)
	return nil
}

// RenameWorksheet renames a worksheet
func (s *Workbook) RenameWorksheet(oldName string, newName string) error {
	if !s.storage.worksheets.Contains(oldName) {
		return NewApplicationError(NotFound, "Worksheet not found")
	}

	if s.storage.worksheets.Contains(newName) {
		return NewApplicationError(AlreadyExists, "Worksheet name already exists")
	}

	worksheet, _ := s.storage.worksheets.GetWorksheetByName(oldName)

	s.storage.worksheets.UndefineWorksheet(oldName)

	s.storage.worksheets.DefineWorksheet(newName, worksheet)

	return nil
}

// DoesWorksheetExist checks if a worksheet exists
func (s *Workbook) DoesWorksheetExist(name string) bool {
	id, exists := s.storage.worksheets.GetWorksheetID(name)
	return exists && s.storage.worksheets.IsWorksheetDefined(id)
}

// ListWorksheets returns all defined worksheet names
func (s *Workbook) ListWorksheets() []string {
	worksheets := s.storage.worksheets.GetAllDefinedWorksheets()
	result := make([]string, 0, len(worksheets))
	for name := range worksheets {
		result = append(result, name)
	}
	return result
}

// ListReferencedWorksheets returns all referenced but undefined worksheet names
func (s *Workbook) ListReferencedWorksheets() []string {
	return s.storage.worksheets.GetAllUndefinedWorksheets()
}

// AddNamedRange adds a named range
func (s *Workbook) AddNamedRange(name string) error {
	if s.storage.namedRanges.Contains(name) {
		return NewApplicationError(AlreadyExists, "Named range already exists")
	}

	// For now, just intern the name without defining it
	s.storage.namedRanges.InternNamedRange(name)
	return nil
}

// RemoveNamedRange removes a named range
func (s *Workbook) RemoveNamedRange(name string) error {
	if !s.storage.namedRanges.Contains(name) {
		return NewApplicationError(NotFound, "Named range not found")
	}

	s.storage.namedRanges.UndefineNamedRange(name)
	return nil
}

// RenameNamedRange renames a named range
func (s *Workbook) RenameNamedRange(oldName string, newName string) error {
	if !s.storage.namedRanges.Contains(oldName) {
		return NewApplicationError(NotFound, "Named range not found")
	}

	if s.storage.namedRanges.Contains(newName) {
		return NewApplicationError(AlreadyExists, "Named range already exists")
	}

	// Get the range address if defined
	id, _ := s.storage.namedRanges.GetNamedRangeID(oldName)
	rangeAddr, isDefined := s.storage.namedRanges.GetRangeAddress(id)

	// Remove old name
	s.storage.namedRanges.UndefineNamedRange(oldName)

	// Add with new name
	if isDefined {
		s.storage.namedRanges.DefineNamedRange(newName, rangeAddr)
	} else {
		s.storage.namedRanges.InternNamedRange(newName)
	}

	return nil
}

// DoesNamedRangeExist checks if a named range exists
func (s *Workbook) DoesNamedRangeExist(name string) bool {
	id, exists := s.storage.namedRanges.GetNamedRangeID(name)
	return exists && s.storage.namedRanges.IsRangeDefined(id)
}

// ListNamedRanges returns all defined named range names
func (s *Workbook) ListNamedRanges() []string {
	ranges := s.storage.namedRanges.GetAllDefinedRanges()
	result := make([]string, 0, len(ranges))
	for name := range ranges {
		result = append(result, name)
	}
	return result
}

// ListReferencedNamedRanges returns all referenced but undefined named range names
func (s *Workbook) ListReferencedNamedRanges() []string {
	return s.storage.namedRanges.GetAllUndefinedRanges()
}

// Calculate recomputes every formula cell in the workbook. It delegates to
// Recalc (evaluator.go): a single synchronous pass over every known
// formula cell, driven by the Node/Evaluator dispatcher with its own
// NotEvaluated/Evaluating/Evaluated memoisation. The precedent index built
// alongside Set/Remove does not drive the pass — it serves as an
// introspection index (GetPrecedents/GetDependents) for host tooling that
// wants to ask "what does this formula depend on" without running a pass,
// and as the formula text SUBTOTAL reads to skip nested SUBTOTAL calls.
func (s *Workbook) Calculate() error {
	return Recalc(s)
}

// extractDependencies walks a parsed formula's Node tree and records its
// direct cell/range precedents in the precedent index, so GetPrecedents and
// GetDependents can answer without re-parsing formula text.
func (s *Workbook) extractDependencies(node Node, cellAddr CellAddress) {
	if node == nil {
		return
	}

	s.storage.precedents.ClearDependencies(cellAddr)
	s.storage.precedents.UnmarkVolatile(cellAddr)

	sheetName, _ := s.storage.worksheets.GetWorksheetName(cellAddr.WorksheetID)
	origin := CellRef3D{Sheet: sheetName, Row: int32(cellAddr.Row) + 1, Column: int32(cellAddr.Column) + 1}
	s.extractDependenciesRecursive(node, cellAddr, origin)
}

// extractDependenciesRecursive recursively extracts dependencies from
// parsed Node values, resolving every reference against origin the same
// way the evaluator itself would (see ReferenceKind.Resolve, node.go).
func (s *Workbook) extractDependenciesRecursive(node Node, cellAddr CellAddress, origin CellRef3D) {
	switch n := node.(type) {
	case *ReferenceNode:
		target := n.Ref.Resolve(origin)
		if target.Row >= 1 && target.Column >= 1 {
			id := s.storage.worksheets.InternWorksheet(target.Sheet)
			s.storage.precedents.AddCellDependency(cellAddr, CellAddress{
				WorksheetID: id,
				Row:         uint32(target.Row - 1),
				Column:      uint32(target.Column - 1),
			})
			s.trackWorksheetReference(cellAddr, id)
		}

	case *RangeNode:
		start := n.Start.Resolve(origin)
		end := n.End.Resolve(origin)
		if start.Row >= 1 && start.Column >= 1 && end.Row >= 1 && end.Column >= 1 {
			id := s.storage.worksheets.InternWorksheet(start.Sheet)
			s.storage.precedents.AddRangeDependency(cellAddr, RangeAddress{
				WorksheetID: id,
				StartRow:    uint32(min32(start.Row, end.Row) - 1),
				StartColumn: uint32(min32(start.Column, end.Column) - 1),
				EndRow:      uint32(max32(start.Row, end.Row) - 1),
				EndColumn:   uint32(max32(start.Column, end.Column) - 1),
			})
			s.trackWorksheetReference(cellAddr, id)
		}

	case *OpRangeNode:
		s.extractDependenciesRecursive(n.Left, cellAddr, origin)
		s.extractDependenciesRecursive(n.Right, cellAddr, origin)

	case *BinaryOpNode:
		s.extractDependenciesRecursive(n.Left, cellAddr, origin)
		s.extractDependenciesRecursive(n.Right, cellAddr, origin)

	case *UnaryOpNode:
		s.extractDependenciesRecursive(n.Operand, cellAddr, origin)

	case *FunctionCallNode:
		if isVolatileFunction(n.Name) {
			s.storage.precedents.MarkVolatile(cellAddr)
		}
		for _, arg := range n.Args {
			s.extractDependenciesRecursive(arg, cellAddr, origin)
		}

	case *NamedRangeNode:
		if s.storage.formulas != nil && s.storage.namedRanges != nil {
			formulaID, exists := s.storage.formulas.formulaAtCell[cellAddr]
			if exists {
				nameID := s.storage.namedRanges.InternNamedRange(n.Name)
				s.storage.formulas.TrackNamedRangeReference(formulaID, nameID)
			}
		}

	case *LiteralStringNode, *LiteralNumberNode, *LiteralBooleanNode, *LiteralEmptyArgNode:
		// literal nodes don't have dependencies
	}
}

// trackWorksheetReference records that cellAddr's formula reaches across to
// worksheetID, skipping same-sheet references (the overwhelmingly common
// case, not worth a map entry).
func (s *Workbook) trackWorksheetReference(cellAddr CellAddress, worksheetID uint32) {
	if worksheetID == cellAddr.WorksheetID {
		return
	}
	formulaID, exists := s.storage.formulas.formulaAtCell[cellAddr]
	if !exists {
		return
	}
	s.storage.formulas.TrackWorksheetReference(formulaID, worksheetID)
}

// GetCurrentAddress returns the current cell address being calculated
func (s *Workbook) GetCurrentAddress() CellAddress {
	return s.currentAddress
}

// GetWorksheet returns a worksheet by name for diagnostic purposes
func (s *Workbook) GetWorksheet(name string) (*Worksheet, bool) {
	return s.storage.worksheets.GetWorksheetByName(name)
}

// formatCellAddress renders an internal 0-based CellAddress back into the
// "Sheet!A1" form GetPrecedents/GetDependents hand back to callers.
func (s *Workbook) formatCellAddress(addr CellAddress) string {
	sheetName, ok := s.storage.worksheets.GetWorksheetName(addr.WorksheetID)
	if !ok {
		sheetName = "Sheet1"
	}
	return fmt.Sprintf("%s!%s%d", sheetName, columnLetters(int32(addr.Column)+1), addr.Row+1)
}

// GetPrecedents returns every cell address that address's formula directly
// reads, formatted as "Sheet!A1" strings. Addresses with no recorded
// formula (or that never referenced another cell) return an empty slice.
func (s *Workbook) GetPrecedents(address string) ([]string, error) {
	worksheetID, row, col, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}
	if worksheetID == 0 {
		return nil, NewApplicationError(InvalidArgument, "Cannot resolve precedents on unknown worksheet")
	}

	cellAddr := CellAddress{WorksheetID: worksheetID, Row: row, Column: col}
	precedents := s.storage.precedents.GetDirectPrecedents(cellAddr)
	result := make([]string, 0, len(precedents))
	for _, p := range precedents {
		result = append(result, s.formatCellAddress(p))
	}
	return result, nil
}

// GetDependents returns every cell address whose formula would be affected,
// directly or transitively, by a change to address, formatted as "Sheet!A1"
// strings.
func (s *Workbook) GetDependents(address string) ([]string, error) {
	worksheetID, row, col, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}
	if worksheetID == 0 {
		return nil, NewApplicationError(InvalidArgument, "Cannot resolve dependents on unknown worksheet")
	}

	cellAddr := CellAddress{WorksheetID: worksheetID, Row: row, Column: col}
	dependents := s.storage.precedents.GetAllDependents(cellAddr)
	result := make([]string, 0, len(dependents))
	for _, d := range dependents {
		result = append(result, s.formatCellAddress(d))
	}
	return result, nil
}

// GetReferencedWorksheets returns the names of every worksheet a formula
// reaches across to, other than its own. A formula entirely local to its
// own sheet returns an empty slice.
func (s *Workbook) GetReferencedWorksheets(address string) ([]string, error) {
	worksheetID, row, col, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}
	if worksheetID == 0 {
		return nil, NewApplicationError(InvalidArgument, "Cannot resolve referenced worksheets on unknown worksheet")
	}

	cellAddr := CellAddress{WorksheetID: worksheetID, Row: row, Column: col}
	formulaID, exists := s.storage.formulas.GetFormulaAtCell(cellAddr)
	if !exists {
		return nil, nil
	}

	ids := s.storage.formulas.GetReferencedWorksheets(formulaID)
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := s.storage.worksheets.GetWorksheetName(id); ok {
			result = append(result, name)
		}
	}
	return result, nil
}

// GetFormulaOwningWorksheets returns the names of every worksheet holding a
// cell whose formula is identical (post-dedup) to the one at address.
func (s *Workbook) GetFormulaOwningWorksheets(address string) ([]string, error) {
	worksheetID, row, col, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}
	if worksheetID == 0 {
		return nil, NewApplicationError(InvalidArgument, "Cannot resolve owning worksheets on unknown worksheet")
	}

	cellAddr := CellAddress{WorksheetID: worksheetID, Row: row, Column: col}
	formulaID, exists := s.storage.formulas.GetFormulaAtCell(cellAddr)
	if !exists {
		return nil, nil
	}

	ids := s.storage.formulas.GetOwningWorksheets(formulaID)
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := s.storage.worksheets.GetWorksheetName(id); ok {
			result = append(result, name)
		}
	}
	return result, nil
}

// GetCellsUsingNamedRange returns every cell address, formatted as
// "Sheet!A1" strings, whose formula references name.
func (s *Workbook) GetCellsUsingNamedRange(name string) []string {
	nameID, exists := s.storage.namedRanges.GetNamedRangeID(name)
	if !exists {
		return nil
	}

	var result []string
	for _, formulaID := range s.storage.formulas.GetFormulasUsingNamedRange(nameID) {
		for _, cell := range s.storage.formulas.GetCellsUsingFormula(formulaID) {
			result = append(result, s.formatCellAddress(cell))
		}
	}
	return result
}

// StringPoolSize reports how many distinct text values are currently
// interned across the workbook, for hosts that want to watch memory
// pressure from large text columns.
func (s *Workbook) StringPoolSize() int {
	return s.storage.strings.Count()
}

// FormulaPoolSize reports how many distinct (deduplicated) formulas are
// currently interned across the workbook; a thousand cells sharing one
// "=A1*2" count once.
func (s *Workbook) FormulaPoolSize() int {
	return s.storage.formulas.Count()
}

// ListVolatileCells returns every cell, formatted as "Sheet!A1" strings,
// whose formula contains a volatile function (NOW, TODAY, RAND,
// RANDBETWEEN). Every Calculate call re-evaluates these regardless of
// whether their inputs changed; this is diagnostic information for a host
// that wants to warn about formulas whose value can change on every
// recalculation.
func (s *Workbook) ListVolatileCells() []string {
	cells := s.storage.precedents.GetVolatileCells()
	result := make([]string, 0, len(cells))
	for _, c := range cells {
		result = append(result, s.formatCellAddress(c))
	}
	return result
}

// RunnableWorkbook provides a chainable interface for
// workbook operations. wraps the standard Workbook and tracks
// errors internally
type RunnableWorkbook struct {
	workbook *Workbook
	err         error
	printLn     func(string)
}

// NewRunnableWorkbook creates a new RunnableWorkbook. printLn is
// required and will be used for all logging operations (Log, CheckError)
func NewRunnableWorkbook(printLn func(string)) *RunnableWorkbook {
	return &RunnableWorkbook{
		workbook: NewWorkbook(),
		err:         nil,
		printLn:     printLn,
	}
}

// Set sets a cell value (chainable)
func (r *RunnableWorkbook) Set(address string, value Primitive) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.workbook.Set(address, value)
	return r
}

// Get retrieves a cell value (chainable)
func (r *RunnableWorkbook) Get(address string) (*RunnableWorkbook, Primitive) {
	if r.err != nil {
		return r, nil // no-op if there's already an error
	}
	val, err := r.workbook.Get(address)
	if err != nil {
		r.err = err
	}
	return r, val
}

// Remove removes a cell (chainable)
func (r *RunnableWorkbook) Remove(address string) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.workbook.Remove(address)
	return r
}

// AddWorksheet adds a new worksheet (chainable)
func (r *RunnableWorkbook) AddWorksheet(name string) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.workbook.AddWorksheet(name)
	return r
}

// RemoveWorksheet removes a worksheet (chainable)
func (r *RunnableWorkbook) RemoveWorksheet(name string) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.workbook.RemoveWorksheet(name)
	return r
}

// RenameWorksheet renames a worksheet (chainable)
func (r *RunnableWorkbook) RenameWorksheet(oldName, newName string) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.workbook.RenameWorksheet(oldName, newName)
	return r
}

// AddNamedRange adds a named range (chainable)
func (r *RunnableWorkbook) AddNamedRange(name string) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.workbook.AddNamedRange(name)
	return r
}

// RemoveNamedRange removes a named range (chainable)
func (r *RunnableWorkbook) RemoveNamedRange(name string) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.workbook.RemoveNamedRange(name)
	return r
}

// RenameNamedRange renames a named range (chainable)
func (r *RunnableWorkbook) RenameNamedRange(oldName, newName string) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.workbook.RenameNamedRange(oldName, newName)
	return r
}

// Calculate recalculates all formulas (chainable)
func (r *RunnableWorkbook) Calculate() *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.workbook.Calculate()
	return r
}

// Run executes a final calculation and returns the workbook and any error.
// typically the last method in the chain
func (r *RunnableWorkbook) Run() (*Workbook, error) {
	if r.err != nil {
		return nil, r.err
	}

	// final calculation to ensure all formulas are up to date
	r.err = r.workbook.Calculate()
	if r.err != nil {
		return nil, r.err
	}

	return r.workbook, nil
}

// RunOrPanic executes a final calculation and panics if there's an
// error. useful for examples and tests where you want to fail fast
func (r *RunnableWorkbook) RunOrPanic() *Workbook {
	workbook, err := r.Run()
	if err != nil {
		panic(err)
	}
	return workbook
}

// Error returns the current error state
func (r *RunnableWorkbook) Error() error {
	return r.err
}

// CheckError logs the current error using the PrintLn function (chainable)
func (r *RunnableWorkbook) CheckError() *RunnableWorkbook {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Workbook returns the underlying workbook. use with caution as it
// bypasses error tracking.
func (r *RunnableWorkbook) Workbook() *Workbook {
	return r.workbook
}

// Reset clears the error state (chainable)
func (r *RunnableWorkbook) Reset() *RunnableWorkbook {
	r.err = nil
	return r
}

// Then allows conditional execution based on current error state
func (r *RunnableWorkbook) Then(fn func(*RunnableWorkbook) *RunnableWorkbook) *RunnableWorkbook {
	if r.err != nil {
		return r // skip if there's an error
	}
	return fn(r)
}

// OnError allows error handling in the chain
func (r *RunnableWorkbook) OnError(fn func(error) error) *RunnableWorkbook {
	if r.err != nil {
		r.err = fn(r.err)
	}
	return r
}

// Must panics if there's an error (chainable). useful for ensuring
// critical operations succeed
func (r *RunnableWorkbook) Must() *RunnableWorkbook {
	if r.err != nil {
		panic(r.err)
	}
	return r
}

// SetBatch sets multiple cells at once (chainable)
func (r *RunnableWorkbook) SetBatch(cells map[string]Primitive) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}

	for address, value := range cells {
		if err := r.workbook.Set(address, value); err != nil {
			r.err = err
			return r
		}
	}
	return r
}

// GetBatch retrieves multiple cell values
func (r *RunnableWorkbook) GetBatch(addresses ...string) (*RunnableWorkbook, map[string]Primitive) {
	if r.err != nil {
		return r, nil // no-op if there's already an error
	}

	results := make(map[string]Primitive)
	for _, address := range addresses {
		val, err := r.workbook.Get(address)
		if err != nil {
			r.err = err
			return r, nil
		}
		results[address] = val
	}
	return r, results
}

// WithWorksheet ensures a worksheet exists before continuing (chainable)
func (r *RunnableWorkbook) WithWorksheet(name string) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}

	if !r.workbook.DoesWorksheetExist(name) {
		r.err = r.workbook.AddWorksheet(name)
	}
	return r
}

// If allows conditional operations in the chain
func (r *RunnableWorkbook) If(condition bool, fn func(*RunnableWorkbook) *RunnableWorkbook) *RunnableWorkbook {
	if r.err != nil || !condition {
		return r // skip if there's an error or condition is false
	}
	return fn(r)
}

// ForEach applies a function to a range of cells (chainable)
func (r *RunnableWorkbook) ForEach(startRow, endRow int, startCol, endCol int, fn func(row, col int, r *RunnableWorkbook)) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}

	for row := startRow; row <= endRow; row++ {
		for col := startCol; col <= endCol; col++ {
			fn(row, col, r)
			if r.err != nil {
				return r // stop on first error
			}
		}
	}
	return r
}

// Value is a helper to get a single value from the chain.
// example: val := NewRunnableWorkbook().Set("A1", 10).Set("A2", "=A1*2").Calculate().Value("A2")
func (r *RunnableWorkbook) Value(address string) Primitive {
	if r.err != nil {
		return nil
	}

	val, err := r.workbook.Get(address)
	if err != nil {
		r.err = err
		return nil
	}
	return val
}

// Values is a helper to get multiple values from the chain
func (r *RunnableWorkbook) Values(addresses ...string) []Primitive {
	if r.err != nil {
		return nil
	}

	values := make([]Primitive, len(addresses))
	for i, address := range addresses {
		val, err := r.workbook.Get(address)
		if err != nil {
			r.err = err
			return nil
		}
		values[i] = val
	}
	return values
}

// Log logs the value of a cell using the provided PrintLn function (chainable)
func (r *RunnableWorkbook) Log(address string) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}

	val, err := r.workbook.Get(address)
	if err != nil {
		r.err = err
		return r
	}

	// fmt the output
	var output string
	if val == nil {
		output = fmt.Sprintf("%s: <empty>", address)
	} else {
		output = fmt.Sprintf("%s: %v", address, val)
	}

	r.printLn(output)
	return r
}
