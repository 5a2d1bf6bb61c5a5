package calc

import (
	"math"
	"strings"
)

// This file implements the shared filtering primitive behind the "ifs
// engine": SUMIF(S), COUNTIF(S), AVERAGEIF(S), MAXIFS and MINIFS all
// funnel criteria matching through criterionMatches and range-shape
// validation through sameShape, sharing one predicate walk instead of five
// near-identical copies. SUBTOTAL, also in this file, uses neither; its
// hidden/filtered-row skip is subtotalExcludes.

// criterion is a parsed SUMIF-style test: either an equality/wildcard test
// against a literal, or a comparison-operator test against a literal.
type criterion struct {
	op       string // "=", "<>", ">", "<", ">=", "<="
	value    CalcValue
	wildcard bool // value is a String containing unescaped * or ?
}

// splitComparisonPrefix peels a leading comparison operator off a criteria
// string, defaulting to "=" when none is present (the common case: a bare
// number, text, or wildcard pattern).
func splitComparisonPrefix(s string) (op, rest string) {
	switch {
	case strings.HasPrefix(s, "<>"):
		return "<>", s[2:]
	case strings.HasPrefix(s, ">="):
		return ">=", s[2:]
	case strings.HasPrefix(s, "<="):
		return "<=", s[2:]
	case strings.HasPrefix(s, "="):
		return "=", s[1:]
	case strings.HasPrefix(s, ">"):
		return ">", s[1:]
	case strings.HasPrefix(s, "<"):
		return "<", s[1:]
	default:
		return "=", s
	}
}

// hasUnescapedWildcard reports whether s contains a * or ? not preceded by
// a ~ escape, the condition under which a criteria string is matched as a
// glob pattern instead of literal text.
func hasUnescapedWildcard(s string) bool {
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '~':
			escaped = true
		case '*', '?':
			return true
		}
	}
	return false
}

// wildcardMatch matches text against a SUMIF-style glob pattern: * matches
// any run of characters, ? matches exactly one, ~ escapes the following
// character literally. Matching is case-insensitive.
func wildcardMatch(pattern, text string) bool {
	p := []rune(strings.ToUpper(pattern))
	t := []rune(strings.ToUpper(text))
	return wildcardMatchRunes(p, t)
}

func wildcardMatchRunes(p, t []rune) bool {
	for len(p) > 0 {
		switch p[0] {
		case '~':
			if len(p) < 2 || len(t) == 0 || p[1] != t[0] {
				return false
			}
			p, t = p[2:], t[1:]
		case '?':
			if len(t) == 0 {
				return false
			}
			p, t = p[1:], t[1:]
		case '*':
			// try every possible split; recursion depth is bounded by
			// pattern/text length, both of which are cell-text sized.
			if len(p) == 1 {
				return true
			}
			for i := 0; i <= len(t); i++ {
				if wildcardMatchRunes(p[1:], t[i:]) {
					return true
				}
			}
			return false
		default:
			if len(t) == 0 || p[0] != t[0] {
				return false
			}
			p, t = p[1:], t[1:]
		}
	}
	return len(t) == 0
}

// parseCriterion evaluates a criteria argument node and classifies it into
// an operator plus literal: literal number, literal string (with optional
// wildcard/comparison prefix), or the criterion cell's own value.
func parseCriterion(e *Evaluator, n Node, origin CellRef3D) (*criterion, *CalcError) {
	v, err := n.Eval(e, origin)
	if err != nil {
		return nil, errCalc(err)
	}
	if ce, ok := AsError(v); ok {
		return nil, ce
	}
	scalar, serr := scalarize(e, v, origin)
	if serr != nil {
		if ce, ok := serr.(*CalcError); ok {
			return nil, ce
		}
		return nil, NewCalcError(ErrorCodeValue, serr.Error())
	}

	s, isString := scalar.(String)
	if !isString {
		return &criterion{op: "=", value: scalar}, nil
	}

	op, rest := splitComparisonPrefix(string(s))
	if op == "=" && hasUnescapedWildcard(rest) {
		return &criterion{op: "=", value: String(rest), wildcard: true}, nil
	}
	// a comparison literal that parses as a number compares numerically
	// ("SUMIF(A:A,\">10\")"); otherwise it compares as text.
	if n, nerr := coerceScalarToNumber(String(rest), false); nerr == nil {
		return &criterion{op: op, value: Number(n)}, nil
	}
	return &criterion{op: op, value: String(rest)}, nil
}

// criterionMatches applies a parsed criterion to a candidate cell value.
func criterionMatches(c *criterion, cell CalcValue) bool {
	if c.wildcard {
		if s, ok := c.value.(String); ok {
			return wildcardMatch(string(s), displayString(cell))
		}
	}
	cmp := compareValues(cell, c.value)
	switch c.op {
	case "=":
		return cmp == 0
	case "<>":
		return cmp != 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	default:
		return false
	}
}

// sameShape reports whether two ranges span identical row/column counts,
// the precondition the ifs engine enforces before walking criteria ranges
// in lock-step.
func sameShape(a, b *RangeValue) bool {
	return a.RowCount() == b.RowCount() && a.ColCount() == b.ColCount()
}

// resolveRangeArg evaluates a node expected to be a reference and coerces
// it to a RangeValue, failing with #VALUE! if it resolves to a scalar.
func resolveRangeArg(e *Evaluator, n Node, origin CellRef3D) (*RangeValue, *CalcError) {
	v, err := n.Eval(e, origin)
	if err != nil {
		return nil, errCalc(err)
	}
	if ce, ok := AsError(v); ok {
		return nil, ce
	}
	r, cerr := CoerceToReference(v)
	if cerr != nil {
		return nil, cerr.(*CalcError)
	}
	return r, nil
}

// matchedOffsets walks every criteria range in row-major lock-step and
// returns the linear offsets (relative to each range's own top-left) where
// every criterion matched.
func matchedOffsets(e *Evaluator, critRanges []*RangeValue, criteria []*criterion) ([]int32, *CalcError) {
	rows, cols := critRanges[0].RowCount(), critRanges[0].ColCount()
	for _, r := range critRanges[1:] {
		if !sameShape(critRanges[0], r) {
			return nil, NewCalcError(ErrorCodeValue, "criteria ranges must have the same shape")
		}
	}

	var matched []int32
	offset := int32(0)
	for dr := int32(0); dr < rows; dr++ {
		for dc := int32(0); dc < cols; dc++ {
			ok := true
			for i, r := range critRanges {
				cell := e.readCell(r.Sheet, r.StartRow+dr, r.StartCol+dc)
				if ce, isErr := AsError(cell); isErr {
					return nil, ce
				}
				if !criterionMatches(criteria[i], cell) {
					ok = false
					break
				}
			}
			if ok {
				matched = append(matched, offset)
			}
			offset++
		}
	}
	return matched, nil
}

// cellAtOffset reads the cell at a row-major linear offset within range r.
func cellAtOffset(e *Evaluator, r *RangeValue, offset int32) CalcValue {
	cols := r.ColCount()
	dr, dc := offset/cols, offset%cols
	return e.readCell(r.Sheet, r.StartRow+dr, r.StartCol+dc)
}

// parsePairs splits a SUMIFS/COUNTIFS/MAXIFS-style trailing argument list
// into (crit_range, crit) pairs.
func parsePairs(e *Evaluator, args []Node, origin CellRef3D) ([]*RangeValue, []*criterion, *CalcError) {
	if len(args)%2 != 0 || len(args) == 0 {
		return nil, nil, NewCalcError(ErrorCodeValue, "criteria ranges and criteria must be paired")
	}
	ranges := make([]*RangeValue, 0, len(args)/2)
	crits := make([]*criterion, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		r, cerr := resolveRangeArg(e, args[i], origin)
		if cerr != nil {
			return nil, nil, cerr
		}
		c, cerr2 := parseCriterion(e, args[i+1], origin)
		if cerr2 != nil {
			return nil, nil, cerr2
		}
		ranges = append(ranges, r)
		crits = append(crits, c)
	}
	return ranges, crits, nil
}

// fnSumIf implements SUMIF(range, criteria, [sum_range]).
func fnSumIf(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 2 || len(args) > 3 {
		return newArgsNumberError("SUMIF"), nil
	}
	critRange, cerr := resolveRangeArg(e, args[0], origin)
	if cerr != nil {
		return cerr, nil
	}
	crit, cerr2 := parseCriterion(e, args[1], origin)
	if cerr2 != nil {
		return cerr2, nil
	}
	sumRange := critRange
	if len(args) == 3 {
		sumRange, cerr = resolveRangeArg(e, args[2], origin)
		if cerr != nil {
			return cerr, nil
		}
		if !sameShape(critRange, sumRange) {
			return NewCalcError(ErrorCodeValue, "SUMIF sum_range must match range shape"), nil
		}
	}
	offsets, cerr3 := matchedOffsets(e, []*RangeValue{critRange}, []*criterion{crit})
	if cerr3 != nil {
		return cerr3, nil
	}
	total := 0.0
	for _, off := range offsets {
		if n, ok := cellAtOffset(e, sumRange, off).(Number); ok {
			total += float64(n)
		}
	}
	return Number(total), nil
}

// fnSumIfs implements SUMIFS(sum_range, crit_range1, crit1, ...).
func fnSumIfs(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 3 {
		return newArgsNumberError("SUMIFS"), nil
	}
	sumRange, cerr := resolveRangeArg(e, args[0], origin)
	if cerr != nil {
		return cerr, nil
	}
	ranges, crits, cerr2 := parsePairs(e, args[1:], origin)
	if cerr2 != nil {
		return cerr2, nil
	}
	for _, r := range ranges {
		if !sameShape(sumRange, r) {
			return NewCalcError(ErrorCodeValue, "SUMIFS ranges must match sum_range shape"), nil
		}
	}
	offsets, cerr3 := matchedOffsets(e, ranges, crits)
	if cerr3 != nil {
		return cerr3, nil
	}
	total := 0.0
	for _, off := range offsets {
		if n, ok := cellAtOffset(e, sumRange, off).(Number); ok {
			total += float64(n)
		}
	}
	return Number(total), nil
}

// fnCountIf implements COUNTIF(range, criteria).
func fnCountIf(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 2 {
		return newArgsNumberError("COUNTIF"), nil
	}
	critRange, cerr := resolveRangeArg(e, args[0], origin)
	if cerr != nil {
		return cerr, nil
	}
	crit, cerr2 := parseCriterion(e, args[1], origin)
	if cerr2 != nil {
		return cerr2, nil
	}
	offsets, cerr3 := matchedOffsets(e, []*RangeValue{critRange}, []*criterion{crit})
	if cerr3 != nil {
		return cerr3, nil
	}
	return Number(float64(len(offsets))), nil
}

// fnCountIfs implements COUNTIFS(crit_range1, crit1, ...).
func fnCountIfs(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	ranges, crits, cerr := parsePairs(e, args, origin)
	if cerr != nil {
		return cerr, nil
	}
	offsets, cerr2 := matchedOffsets(e, ranges, crits)
	if cerr2 != nil {
		return cerr2, nil
	}
	return Number(float64(len(offsets))), nil
}

// fnAverageIf implements AVERAGEIF(range, criteria, [average_range]).
func fnAverageIf(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 2 || len(args) > 3 {
		return newArgsNumberError("AVERAGEIF"), nil
	}
	critRange, cerr := resolveRangeArg(e, args[0], origin)
	if cerr != nil {
		return cerr, nil
	}
	crit, cerr2 := parseCriterion(e, args[1], origin)
	if cerr2 != nil {
		return cerr2, nil
	}
	avgRange := critRange
	if len(args) == 3 {
		avgRange, cerr = resolveRangeArg(e, args[2], origin)
		if cerr != nil {
			return cerr, nil
		}
		if !sameShape(critRange, avgRange) {
			return NewCalcError(ErrorCodeValue, "AVERAGEIF average_range must match range shape"), nil
		}
	}
	offsets, cerr3 := matchedOffsets(e, []*RangeValue{critRange}, []*criterion{crit})
	if cerr3 != nil {
		return cerr3, nil
	}
	return averageNumericAtOffsets(e, avgRange, offsets)
}

// fnAverageIfs implements AVERAGEIFS(average_range, crit_range1, crit1, ...).
func fnAverageIfs(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 3 {
		return newArgsNumberError("AVERAGEIFS"), nil
	}
	avgRange, cerr := resolveRangeArg(e, args[0], origin)
	if cerr != nil {
		return cerr, nil
	}
	ranges, crits, cerr2 := parsePairs(e, args[1:], origin)
	if cerr2 != nil {
		return cerr2, nil
	}
	for _, r := range ranges {
		if !sameShape(avgRange, r) {
			return NewCalcError(ErrorCodeValue, "AVERAGEIFS ranges must match average_range shape"), nil
		}
	}
	offsets, cerr3 := matchedOffsets(e, ranges, crits)
	if cerr3 != nil {
		return cerr3, nil
	}
	return averageNumericAtOffsets(e, avgRange, offsets)
}

func averageNumericAtOffsets(e *Evaluator, r *RangeValue, offsets []int32) (CalcValue, error) {
	total, count := 0.0, 0
	for _, off := range offsets {
		if n, ok := cellAtOffset(e, r, off).(Number); ok {
			total += float64(n)
			count++
		}
	}
	if count == 0 {
		return NewCalcError(ErrorCodeDiv0, "AVERAGEIF(S) found no numeric matches"), nil
	}
	return Number(total / float64(count)), nil
}

// fnMaxIfsMinIfs implements MAXIFS/MINIFS(agg_range, crit_range1, crit1, ...).
func fnMaxIfsMinIfs(e *Evaluator, args []Node, origin CellRef3D, wantMax bool) (CalcValue, error) {
	name := "MINIFS"
	if wantMax {
		name = "MAXIFS"
	}
	if len(args) < 3 {
		return newArgsNumberError(name), nil
	}
	aggRange, cerr := resolveRangeArg(e, args[0], origin)
	if cerr != nil {
		return cerr, nil
	}
	ranges, crits, cerr2 := parsePairs(e, args[1:], origin)
	if cerr2 != nil {
		return cerr2, nil
	}
	for _, r := range ranges {
		if !sameShape(aggRange, r) {
			return NewCalcError(ErrorCodeValue, name+" ranges must match the aggregate range shape"), nil
		}
	}
	offsets, cerr3 := matchedOffsets(e, ranges, crits)
	if cerr3 != nil {
		return cerr3, nil
	}
	found := false
	best := 0.0
	for _, off := range offsets {
		n, ok := cellAtOffset(e, aggRange, off).(Number)
		if !ok {
			continue
		}
		if !found || (wantMax && float64(n) > best) || (!wantMax && float64(n) < best) {
			best = float64(n)
			found = true
		}
	}
	return Number(best), nil
}

// subtotalAggregate names the aggregate a SUBTOTAL function-code's base
// (1-11) selects.
type subtotalAggregate int

const (
	subtotalAverage subtotalAggregate = iota + 1
	subtotalCount
	subtotalCountA
	subtotalMax
	subtotalMin
	subtotalProduct
	subtotalStdev
	subtotalStdevP
	subtotalSum
	subtotalVar
	subtotalVarP
)

// fnSubtotal implements SUBTOTAL(function_num, ref1, [ref2, ...]). Codes
// 1-11 include manually hidden rows; 101-111 skip them too. Both skip rows
// excluded by an active table filter and cells whose own formula is
// another SUBTOTAL call.
func fnSubtotal(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 2 {
		return newArgsNumberError("SUBTOTAL"), nil
	}
	codeF, cerr := CoerceToNumber(e, mustEval(e, args[0], origin), origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	code := int(codeF)
	skipHidden := code >= 100
	base := code
	if skipHidden {
		base -= 100
	}
	if base < int(subtotalAverage) || base > int(subtotalVarP) {
		return NewCalcError(ErrorCodeValue, "SUBTOTAL: unknown function number"), nil
	}

	var nums []float64
	countAAll := 0
	for _, argNode := range args[1:] {
		v, err := argNode.Eval(e, origin)
		if err != nil {
			return errCalc(err), nil
		}
		r, cerr2 := CoerceToReference(v)
		if cerr2 != nil {
			return cerr2.(*CalcError), nil
		}
		var rangeErr *CalcError
		r.Cells(e)(func(row, col int32, cell CalcValue) bool {
			if ce, ok := AsError(cell); ok {
				rangeErr = ce
				return false
			}
			if e.subtotalExcludes(r, row, col, skipHidden) {
				return true
			}
			if _, empty := cell.(EmptyCell); !empty {
				countAAll++
			}
			if n, ok := cell.(Number); ok {
				nums = append(nums, float64(n))
			}
			return true
		})
		if rangeErr != nil {
			return rangeErr, nil
		}
	}

	switch subtotalAggregate(base) {
	case subtotalSum:
		return Number(sumFloats(nums)), nil
	case subtotalAverage:
		if len(nums) == 0 {
			return NewCalcError(ErrorCodeDiv0, "SUBTOTAL(AVERAGE) has no numeric values"), nil
		}
		return Number(sumFloats(nums) / float64(len(nums))), nil
	case subtotalCount:
		return Number(float64(len(nums))), nil
	case subtotalCountA:
		return Number(float64(countAAll)), nil
	case subtotalMax:
		if len(nums) == 0 {
			return Number(0), nil
		}
		m := nums[0]
		for _, n := range nums[1:] {
			if n > m {
				m = n
			}
		}
		return Number(m), nil
	case subtotalMin:
		if len(nums) == 0 {
			return Number(0), nil
		}
		m := nums[0]
		for _, n := range nums[1:] {
			if n < m {
				m = n
			}
		}
		return Number(m), nil
	case subtotalProduct:
		p := 1.0
		for _, n := range nums {
			p *= n
		}
		return Number(p), nil
	case subtotalStdev, subtotalVar:
		v, ok := sampleVariance(nums)
		if !ok {
			return NewCalcError(ErrorCodeDiv0, "SUBTOTAL needs at least two numeric values"), nil
		}
		if subtotalAggregate(base) == subtotalVar {
			return Number(v), nil
		}
		return Number(math.Sqrt(v)), nil
	case subtotalStdevP, subtotalVarP:
		v := populationVariance(nums)
		if subtotalAggregate(base) == subtotalVarP {
			return Number(v), nil
		}
		return Number(math.Sqrt(v)), nil
	}
	return NewCalcError(ErrorCodeValue, "SUBTOTAL: unknown function number"), nil
}

func sumFloats(nums []float64) float64 {
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total
}

func sampleVariance(nums []float64) (float64, bool) {
	if len(nums) < 2 {
		return 0, false
	}
	mean := sumFloats(nums) / float64(len(nums))
	ss := 0.0
	for _, n := range nums {
		ss += (n - mean) * (n - mean)
	}
	return ss / float64(len(nums)-1), true
}

func populationVariance(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	mean := sumFloats(nums) / float64(len(nums))
	ss := 0.0
	for _, n := range nums {
		ss += (n - mean) * (n - mean)
	}
	return ss / float64(len(nums))
}

// subtotalExcludes reports whether the cell at (row,col) within range r
// should be skipped by SUBTOTAL: a hidden row (when skipHidden), a row
// filtered out of an active table, or a cell whose own formula is another
// SUBTOTAL call (avoiding double counting of nested subtotals).
func (e *Evaluator) subtotalExcludes(r *RangeValue, row, col int32, skipHidden bool) bool {
	ws := r.Sheet
	if skipHidden && ws.IsRowHidden(uint32(row-1)) {
		return true
	}
	if t := e.wb.storage.tableCoveringCell(r.SheetName, row, col); t != nil && t.RowFilteredOut(row) {
		return true
	}
	addr := CellAddress{WorksheetID: ws.worksheetID, Row: uint32(row - 1), Column: uint32(col - 1)}
	formula, ok := e.wb.storage.precedents.GetFormula(addr)
	if !ok {
		return false
	}
	return isSubtotalFormulaText(formula)
}

// isSubtotalFormulaText reports whether formula is a call to SUBTOTAL,
// read from the text the precedent index recorded when the cell's formula
// was set (see Workbook.Set), rather than re-resolving the parsed AST.
func isSubtotalFormulaText(formula string) bool {
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(formula), "="))
	name := strings.TrimSpace(strings.SplitN(body, "(", 2)[0])
	return strings.EqualFold(name, "SUBTOTAL")
}
