package calc

import (
	"strconv"
	"strings"
)

// This file implements the four scalar coercions every built-in function
// argument goes through at its boundary, and the implicit-intersection rule
// that lets a RangeValue stand in for a scalar. The shape follows
// base/src/cast.rs in the Rust original this engine was distilled from:
// get_number/cast_to_number, get_string/cast_to_string,
// get_boolean/cast_to_bool, and get_reference.

// intersect applies implicit intersection to a RangeValue: if the range
// overlaps the origin cell's row or column, the single cell at that
// intersection is used; otherwise intersection fails with #VALUE!.
func intersect(e *Evaluator, r *RangeValue, origin CellRef3D) (CalcValue, error) {
	if r.IsSingleCell() {
		return e.readCell(r.Sheet, r.StartRow, r.StartCol), nil
	}

	sameSheet := r.SheetName == "" || r.SheetName == origin.Sheet
	if !sameSheet {
		return nil, NewCalcError(ErrorCodeValue, "implicit intersection across sheets is not supported")
	}

	switch {
	case r.RowCount() == 1 && origin.Column >= r.StartCol && origin.Column <= r.EndCol:
		return e.readCell(r.Sheet, r.StartRow, origin.Column), nil
	case r.ColCount() == 1 && origin.Row >= r.StartRow && origin.Row <= r.EndRow:
		return e.readCell(r.Sheet, origin.Row, r.StartCol), nil
	case origin.Row >= r.StartRow && origin.Row <= r.EndRow && origin.Column >= r.StartCol && origin.Column <= r.EndCol:
		return e.readCell(r.Sheet, origin.Row, origin.Column), nil
	default:
		return nil, NewCalcError(ErrorCodeValue, "#VALUE! no intersection between range and origin")
	}
}

// scalarize resolves a CalcValue to a non-range scalar via implicit
// intersection, propagating any error it finds along the way.
func scalarize(e *Evaluator, v CalcValue, origin CellRef3D) (CalcValue, error) {
	if err, ok := AsError(v); ok {
		return nil, err
	}
	if r, ok := v.(*RangeValue); ok {
		scalar, err := intersect(e, r, origin)
		if err != nil {
			return nil, err
		}
		if err, ok := AsError(scalar); ok {
			return nil, err
		}
		return scalar, nil
	}
	return v, nil
}

// CoerceToNumber implements cast_to_number: scalarize, then convert.
// Booleans coerce (TRUE=1, FALSE=0); empty coerces to 0; numeric strings
// parse; non-numeric strings are #VALUE!.
func CoerceToNumber(e *Evaluator, v CalcValue, origin CellRef3D) (float64, error) {
	scalar, err := scalarize(e, v, origin)
	if err != nil {
		return 0, err
	}
	return coerceScalarToNumber(scalar, true)
}

// CoerceToNumberNoBools is cast_to_number but booleans are rejected with
// #VALUE! instead of becoming 1/0 — used by functions where Excel treats a
// boolean argument as a type error (e.g. many math functions reject TRUE).
func CoerceToNumberNoBools(e *Evaluator, v CalcValue, origin CellRef3D) (float64, error) {
	scalar, err := scalarize(e, v, origin)
	if err != nil {
		return 0, err
	}
	return coerceScalarToNumber(scalar, false)
}

func coerceScalarToNumber(scalar CalcValue, allowBool bool) (float64, error) {
	switch v := scalar.(type) {
	case Number:
		return float64(v), nil
	case Boolean:
		if !allowBool {
			return 0, NewCalcError(ErrorCodeValue, "boolean not accepted here")
		}
		if v {
			return 1, nil
		}
		return 0, nil
	case String:
		s := strings.TrimSpace(string(v))
		if s == "" {
			return 0, nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, NewCalcError(ErrorCodeValue, "text cannot be coerced to a number")
		}
		return n, nil
	case EmptyCell, EmptyArg:
		return 0, nil
	default:
		return 0, NewCalcError(ErrorCodeValue, "value cannot be coerced to a number")
	}
}

// CoerceToString implements cast_to_string: numbers format canonically,
// booleans become TRUE/FALSE, empty becomes "".
func CoerceToString(e *Evaluator, v CalcValue, origin CellRef3D) (string, error) {
	scalar, err := scalarize(e, v, origin)
	if err != nil {
		return "", err
	}
	switch val := scalar.(type) {
	case String:
		return string(val), nil
	case Number:
		return formatNumber(float64(val)), nil
	case Boolean:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case EmptyCell, EmptyArg:
		return "", nil
	default:
		return "", NewCalcError(ErrorCodeValue, "value cannot be coerced to a string")
	}
}

// CoerceToBool implements cast_to_bool: numbers are truthy iff non-zero,
// strings must spell TRUE/FALSE (case-insensitive) or are an error, empty
// coerces to FALSE.
func CoerceToBool(e *Evaluator, v CalcValue, origin CellRef3D) (bool, error) {
	scalar, err := scalarize(e, v, origin)
	if err != nil {
		return false, err
	}
	switch val := scalar.(type) {
	case Boolean:
		return bool(val), nil
	case Number:
		return val != 0, nil
	case String:
		switch strings.ToUpper(strings.TrimSpace(string(val))) {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		default:
			return false, NewCalcError(ErrorCodeValue, "text is not a boolean literal")
		}
	case EmptyCell, EmptyArg:
		return false, nil
	default:
		return false, NewCalcError(ErrorCodeValue, "value cannot be coerced to a boolean")
	}
}

// CoerceToReference implements get_reference: the value must already be a
// range (or single-cell range); anything else is #VALUE!. Used by
// reference-shaped parameters like OFFSET's base or INDIRECT's result.
func CoerceToReference(v CalcValue) (*RangeValue, error) {
	if err, ok := AsError(v); ok {
		return nil, err
	}
	if r, ok := v.(*RangeValue); ok {
		return r, nil
	}
	return nil, NewCalcError(ErrorCodeValue, "a reference was expected")
}

// looseTruthy mirrors the engine's permissive OR/AND fallback for text:
// with WorkbookOptions.StrictBooleanCoercion on, text goes through
// CoerceToBool, so only TRUE/FALSE text counts and any other text
// (including "") is #VALUE!; with it off, an empty string is skipped and
// any other text counts as TRUE (see SPEC_FULL open question #2).
func looseTruthy(e *Evaluator, v CalcValue, origin CellRef3D, strict bool) (value bool, found bool, err error) {
	scalar, err := scalarize(e, v, origin)
	if err != nil {
		return false, false, err
	}
	switch val := scalar.(type) {
	case Boolean:
		return bool(val), true, nil
	case Number:
		return val != 0, true, nil
	case String:
		if strict {
			b, err := CoerceToBool(e, val, origin)
			if err != nil {
				return false, false, err
			}
			return b, true, nil
		}
		if val == "" {
			return false, false, nil
		}
		return true, true, nil
	default:
		return false, false, nil
	}
}
