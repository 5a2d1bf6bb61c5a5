package calc

// fnIf implements IF(condition, value_if_true, [value_if_false]). Only the
// selected branch is evaluated: an unselected branch may even contain an
// error or a circular reference without surfacing it.
func fnIf(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 2 || len(args) > 3 {
		return newArgsNumberError("IF"), nil
	}
	condVal, err := args[0].Eval(e, origin)
	if err != nil {
		return errCalc(err), nil
	}
	if ce, ok := AsError(condVal); ok {
		return ce, nil
	}
	cond, cerr := CoerceToBool(e, condVal, origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	if cond {
		return evalOrCalc(e, args[1], origin)
	}
	if len(args) == 3 {
		return evalOrCalc(e, args[2], origin)
	}
	return Boolean(false), nil
}

// fnIfError returns the first argument unless it evaluates to any error, in
// which case the second argument is returned.
func fnIfError(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 2 {
		return newArgsNumberError("IFERROR"), nil
	}
	v, err := args[0].Eval(e, origin)
	if err != nil {
		return evalOrCalc(e, args[1], origin)
	}
	if _, ok := AsError(v); ok {
		return evalOrCalc(e, args[1], origin)
	}
	return v, nil
}

// fnIfNa is IFERROR narrowed to only #N/A.
func fnIfNa(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 2 {
		return newArgsNumberError("IFNA"), nil
	}
	v, err := args[0].Eval(e, origin)
	if err != nil {
		return errCalc(err), nil
	}
	if ce, ok := AsError(v); ok {
		if ce.ErrorCode == ErrorCodeNA {
			return evalOrCalc(e, args[1], origin)
		}
		return ce, nil
	}
	return v, nil
}

func evalOrCalc(e *Evaluator, n Node, origin CellRef3D) (CalcValue, error) {
	v, err := n.Eval(e, origin)
	if err != nil {
		return errCalc(err), nil
	}
	return v, nil
}

func errCalc(err error) *CalcError {
	if ce, ok := err.(*CalcError); ok {
		return ce
	}
	return NewCalcError(ErrorCodeValue, err.Error())
}

type logicalCombine int

const (
	logicalAnd logicalCombine = iota
	logicalOr
	logicalXor
)

// fnAndOrXor implements AND/OR/XOR, walking ranges cell-by-cell via
// looseTruthy. Per the recorded open-question decision, the "no boolean
// found" #VALUE! only fires when every argument was empty/non-boolean-ish.
func fnAndOrXor(e *Evaluator, args []Node, origin CellRef3D, combine logicalCombine) (CalcValue, error) {
	if len(args) == 0 {
		return newArgsNumberError("AND/OR/XOR"), nil
	}
	strict := e.options.strictBools()
	found := false
	result := combine == logicalAnd // AND starts true, OR/XOR start false
	xorCount := 0

	var walk func(v CalcValue) *CalcError
	walk = func(v CalcValue) *CalcError {
		if ce, ok := AsError(v); ok {
			return ce
		}
		if r, ok := v.(*RangeValue); ok {
			var innerErr *CalcError
			r.Cells(e)(func(_, _ int32, cv CalcValue) bool {
				if err := walk(cv); err != nil {
					innerErr = err
					return false
				}
				return true
			})
			return innerErr
		}
		b, ok, err := looseTruthy(e, v, origin, strict)
		if err != nil {
			return err.(*CalcError)
		}
		if !ok {
			return nil
		}
		found = true
		switch combine {
		case logicalAnd:
			result = result && b
		case logicalOr:
			result = result || b
		case logicalXor:
			if b {
				xorCount++
			}
		}
		return nil
	}

	for _, a := range args {
		v, err := a.Eval(e, origin)
		if err != nil {
			return errCalc(err), nil
		}
		if ce := walk(v); ce != nil {
			return ce, nil
		}
	}

	if !found {
		return NewCalcError(ErrorCodeValue, "no boolean argument found"), nil
	}
	if combine == logicalXor {
		return Boolean(xorCount%2 == 1), nil
	}
	return Boolean(result), nil
}

func fnNot(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 1 {
		return newArgsNumberError("NOT"), nil
	}
	v, err := args[0].Eval(e, origin)
	if err != nil {
		return errCalc(err), nil
	}
	if ce, ok := AsError(v); ok {
		return ce, nil
	}
	b, cerr := CoerceToBool(e, v, origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	return Boolean(!b), nil
}

// fnSwitch implements SWITCH(expr, val1, result1, [val2, result2, ...],
// [default]), evaluating only the matched branch.
func fnSwitch(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 3 {
		return newArgsNumberError("SWITCH"), nil
	}
	exprVal, err := args[0].Eval(e, origin)
	if err != nil {
		return errCalc(err), nil
	}
	if ce, ok := AsError(exprVal); ok {
		return ce, nil
	}
	i := 1
	for ; i+1 < len(args); i += 2 {
		candidate, err := args[i].Eval(e, origin)
		if err != nil {
			return errCalc(err), nil
		}
		if ce, ok := AsError(candidate); ok {
			return ce, nil
		}
		if compareValues(exprVal, candidate) == 0 {
			return evalOrCalc(e, args[i+1], origin)
		}
	}
	if i < len(args) {
		return evalOrCalc(e, args[i], origin)
	}
	return NewCalcError(ErrorCodeNA, "no match found in SWITCH"), nil
}

// fnIfs implements IFS(cond1, val1, [cond2, val2, ...]), returning the first
// matched value and evaluating nothing beyond that pair.
func fnIfs(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 2 || len(args)%2 != 0 {
		return newArgsNumberError("IFS"), nil
	}
	for i := 0; i+1 < len(args); i += 2 {
		condVal, err := args[i].Eval(e, origin)
		if err != nil {
			return errCalc(err), nil
		}
		if ce, ok := AsError(condVal); ok {
			return ce, nil
		}
		cond, cerr := CoerceToBool(e, condVal, origin)
		if cerr != nil {
			return cerr.(*CalcError), nil
		}
		if cond {
			return evalOrCalc(e, args[i+1], origin)
		}
	}
	return NewCalcError(ErrorCodeNA, "no condition matched in IFS"), nil
}
