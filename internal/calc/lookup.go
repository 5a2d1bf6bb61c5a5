package calc

// fnIndex implements INDEX(range, row_num, [col_num]). A single-row or
// single-column range accepts the other axis being omitted.
func fnIndex(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 2 || len(args) > 3 {
		return newArgsNumberError("INDEX"), nil
	}
	rangeVal, err := args[0].Eval(e, origin)
	if err != nil {
		return errCalc(err), nil
	}
	if ce, ok := AsError(rangeVal); ok {
		return ce, nil
	}
	r, cerr := CoerceToReference(rangeVal)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	rowNum, cerr2 := CoerceToNumber(e, mustEval(e, args[1], origin), origin)
	if cerr2 != nil {
		return cerr2.(*CalcError), nil
	}
	colNum := 0.0
	if len(args) == 3 {
		colNum, cerr2 = CoerceToNumber(e, mustEval(e, args[2], origin), origin)
		if cerr2 != nil {
			return cerr2.(*CalcError), nil
		}
	}

	row := int32(rowNum)
	col := int32(colNum)
	if row == 0 && r.RowCount() == 1 {
		row = 1
	}
	if col == 0 && r.ColCount() == 1 {
		col = 1
	}
	if row < 1 || row > r.RowCount() || col < 1 || col > r.ColCount() {
		return NewCalcError(ErrorCodeRef, "INDEX reference is out of range"), nil
	}
	return e.readCell(r.Sheet, r.StartRow+row-1, r.StartCol+col-1), nil
}

// mustEval evaluates a node, converting any Go error into a CalcValue error
// so callers that already return (CalcValue,error) pairs stay uniform.
func mustEval(e *Evaluator, n Node, origin CellRef3D) CalcValue {
	v, err := n.Eval(e, origin)
	if err != nil {
		return errCalc(err)
	}
	return v
}

type matchType int

const (
	matchLessOrEqual matchType = 1
	matchExact       matchType = 0
	matchGreaterOrEqual matchType = -1
)

// fnMatch implements MATCH(lookup_value, lookup_array, [match_type]).
func fnMatch(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 2 || len(args) > 3 {
		return newArgsNumberError("MATCH"), nil
	}
	lookupVal := mustEval(e, args[0], origin)
	if ce, ok := AsError(lookupVal); ok {
		return ce, nil
	}
	arrayVal, err := args[1].Eval(e, origin)
	if err != nil {
		return errCalc(err), nil
	}
	r, cerr := CoerceToReference(arrayVal)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	mt := matchLessOrEqual
	if len(args) == 3 {
		n, cerr2 := CoerceToNumber(e, mustEval(e, args[2], origin), origin)
		if cerr2 != nil {
			return cerr2.(*CalcError), nil
		}
		switch {
		case n > 0:
			mt = matchLessOrEqual
		case n < 0:
			mt = matchGreaterOrEqual
		default:
			mt = matchExact
		}
	}

	var cells []CalcValue
	r.Cells(e)(func(row, col int32, v CalcValue) bool {
		cells = append(cells, v)
		return true
	})

	if mt == matchExact {
		for i, v := range cells {
			if compareValues(v, lookupVal) == 0 {
				return Number(float64(i + 1)), nil
			}
		}
		return NewCalcError(ErrorCodeNA, "MATCH found no exact match"), nil
	}

	best := -1
	for i, v := range cells {
		cmp := compareValues(v, lookupVal)
		if mt == matchLessOrEqual && cmp <= 0 {
			best = i
		}
		if mt == matchGreaterOrEqual && cmp >= 0 {
			best = i
			break
		}
	}
	if best < 0 {
		return NewCalcError(ErrorCodeNA, "MATCH found no approximate match"), nil
	}
	return Number(float64(best + 1)), nil
}

func fnVlookup(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	return fnXlookup(e, args, origin, true)
}

func fnHlookup(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	return fnXlookup(e, args, origin, false)
}

// fnXlookup implements the shared VLOOKUP/HLOOKUP behavior: vertical looks
// down the first column for a match and reads across; horizontal looks
// across the first row and reads down.
func fnXlookup(e *Evaluator, args []Node, origin CellRef3D, vertical bool) (CalcValue, error) {
	name := "HLOOKUP"
	if vertical {
		name = "VLOOKUP"
	}
	if len(args) < 3 || len(args) > 4 {
		return newArgsNumberError(name), nil
	}
	lookupVal := mustEval(e, args[0], origin)
	if ce, ok := AsError(lookupVal); ok {
		return ce, nil
	}
	tableVal, err := args[1].Eval(e, origin)
	if err != nil {
		return errCalc(err), nil
	}
	table, cerr := CoerceToReference(tableVal)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	indexNum, cerr2 := CoerceToNumber(e, mustEval(e, args[2], origin), origin)
	if cerr2 != nil {
		return cerr2.(*CalcError), nil
	}
	exact := false
	if len(args) == 4 {
		b, cerr3 := CoerceToBool(e, mustEval(e, args[3], origin), origin)
		if cerr3 != nil {
			return cerr3.(*CalcError), nil
		}
		exact = !b
	}

	var keyStart, keyEnd int32
	var span int32
	if vertical {
		keyStart, keyEnd = table.StartRow, table.EndRow
		span = table.ColCount()
	} else {
		keyStart, keyEnd = table.StartCol, table.EndCol
		span = table.RowCount()
	}
	index := int32(indexNum)
	if index < 1 || index > span {
		return NewCalcError(ErrorCodeRef, name+" index is out of range"), nil
	}

	matchedKey := int32(-1)
	lastLessOrEqual := int32(-1)
	for k := keyStart; k <= keyEnd; k++ {
		var cell CalcValue
		if vertical {
			cell = e.readCell(table.Sheet, k, table.StartCol)
		} else {
			cell = e.readCell(table.Sheet, table.StartRow, k)
		}
		cmp := compareValues(cell, lookupVal)
		if cmp == 0 {
			matchedKey = k
			break
		}
		if !exact && cmp < 0 {
			lastLessOrEqual = k
		}
		if !exact && cmp > 0 {
			break
		}
	}
	if matchedKey < 0 {
		if exact || lastLessOrEqual < 0 {
			return NewCalcError(ErrorCodeNA, name+" found no match"), nil
		}
		matchedKey = lastLessOrEqual
	}

	if vertical {
		return e.readCell(table.Sheet, matchedKey, table.StartCol+index-1), nil
	}
	return e.readCell(table.Sheet, table.StartRow+index-1, matchedKey), nil
}
