package calc

// fnIsX implements the family of single-argument IS* predicates. Unlike most
// functions, these consume errors rather than propagating them.
func fnIsX(e *Evaluator, kind FunctionKind, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 1 {
		return newArgsNumberError("IS*"), nil
	}
	v, err := args[0].Eval(e, origin)
	if err != nil {
		v = errCalc(err)
	}
	scalar := v
	if r, ok := v.(*RangeValue); ok {
		s, serr := intersect(e, r, origin)
		if serr == nil {
			scalar = s
		}
	}

	switch kind {
	case FnIsError:
		_, ok := AsError(v)
		if !ok {
			_, ok = AsError(scalar)
		}
		return Boolean(ok), nil
	case FnIsErr:
		ce, ok := AsError(scalar)
		if !ok {
			ce, ok = AsError(v)
		}
		return Boolean(ok && ce.ErrorCode != ErrorCodeNA), nil
	case FnIsNa:
		ce, ok := AsError(scalar)
		if !ok {
			ce, ok = AsError(v)
		}
		return Boolean(ok && ce.ErrorCode == ErrorCodeNA), nil
	}

	if _, ok := AsError(scalar); ok {
		return Boolean(false), nil
	}
	switch kind {
	case FnIsNumber:
		_, ok := scalar.(Number)
		return Boolean(ok), nil
	case FnIsText:
		_, ok := scalar.(String)
		return Boolean(ok), nil
	case FnIsNonText:
		_, ok := scalar.(String)
		return Boolean(!ok), nil
	case FnIsLogical:
		_, ok := scalar.(Boolean)
		return Boolean(ok), nil
	case FnIsBlank:
		_, ok := scalar.(EmptyCell)
		return Boolean(ok), nil
	case FnIsOdd:
		n, cerr := CoerceToNumberNoBools(e, scalar, origin)
		if cerr != nil {
			return cerr.(*CalcError), nil
		}
		return Boolean(int64(n)%2 != 0), nil
	case FnIsEven:
		n, cerr := CoerceToNumberNoBools(e, scalar, origin)
		if cerr != nil {
			return cerr.(*CalcError), nil
		}
		return Boolean(int64(n)%2 == 0), nil
	}
	return NewCalcError(ErrorCodeNimpl, "unimplemented information function"), nil
}

// fnIsRef inspects the parsed node directly without evaluating it.
func fnIsRef(args []Node) (CalcValue, error) {
	if len(args) != 1 {
		return newArgsNumberError("ISREF"), nil
	}
	switch args[0].(type) {
	case *ReferenceNode, *RangeNode, *OpRangeNode, *NamedRangeNode:
		return Boolean(true), nil
	default:
		return Boolean(false), nil
	}
}

func fnIsFormula(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 1 {
		return newArgsNumberError("ISFORMULA"), nil
	}
	ref, ok := args[0].(*ReferenceNode)
	if !ok {
		return NewCalcError(ErrorCodeValue, "ISFORMULA requires a cell reference"), nil
	}
	target := ref.Ref.Resolve(origin)
	ws, id, found := e.worksheetByName(target.Sheet)
	if !found {
		return NewCalcError(ErrorCodeRef, "unknown worksheet"), nil
	}
	addr := target.ToCellAddress(id)
	_, hasFormula := ws.storage.formulas.GetFormulaAtCell(addr)
	return Boolean(hasFormula), nil
}

func fnErrorType(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 1 {
		return newArgsNumberError("ERROR.TYPE"), nil
	}
	v, err := args[0].Eval(e, origin)
	if err != nil {
		v = errCalc(err)
	}
	if sv, serr := scalarize(e, v, origin); serr == nil {
		v = sv
	}
	ce, ok := AsError(v)
	if !ok {
		return NewCalcError(ErrorCodeNA, "ERROR.TYPE of a non-error value"), nil
	}
	code, ok := ce.ErrorCode.ErrorTypeCode()
	if !ok {
		return NewCalcError(ErrorCodeNA, ""), nil
	}
	return Number(code), nil
}

func fnType(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 1 {
		return newArgsNumberError("TYPE"), nil
	}
	v, err := args[0].Eval(e, origin)
	if err != nil {
		v = errCalc(err)
	}
	if sv, serr := scalarize(e, v, origin); serr == nil {
		v = sv
	} else if _, ok := AsError(v); !ok {
		return Number(16), nil
	}
	switch v.(type) {
	case Number:
		return Number(1), nil
	case String:
		return Number(2), nil
	case Boolean:
		return Number(4), nil
	case *CalcError:
		return Number(16), nil
	case *RangeValue:
		return Number(64), nil
	default:
		return Number(1), nil
	}
}

func fnSheet(args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) == 0 {
		return String(origin.Sheet), nil
	}
	if ref, ok := args[0].(*ReferenceNode); ok {
		target := ref.Ref.Resolve(origin)
		return String(target.Sheet), nil
	}
	return NewCalcError(ErrorCodeValue, "SHEET requires a reference argument"), nil
}
