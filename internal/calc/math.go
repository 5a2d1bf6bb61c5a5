package calc

import "math"

// numbersForAggregation flattens SUM/PRODUCT/AVERAGE/MIN/MAX-style argument
// lists: ranges contribute only their numeric cells (text/bool/empty inside
// a range are silently skipped), while a non-numeric scalar argument fails
// outright.
func numbersForAggregation(e *Evaluator, args []Node, origin CellRef3D) ([]float64, *CalcError) {
	var out []float64
	for _, a := range args {
		v, err := a.Eval(e, origin)
		if err != nil {
			return nil, errCalc(err)
		}
		if ce, ok := AsError(v); ok {
			return nil, ce
		}
		switch val := v.(type) {
		case EmptyArg:
			continue
		case *RangeValue:
			var rangeErr *CalcError
			val.Cells(e)(func(_, _ int32, cv CalcValue) bool {
				if ce, ok := AsError(cv); ok {
					rangeErr = ce
					return false
				}
				if n, ok := cv.(Number); ok {
					out = append(out, float64(n))
				}
				return true
			})
			if rangeErr != nil {
				return nil, rangeErr
			}
		default:
			n, cerr := coerceScalarToNumber(val, true)
			if cerr != nil {
				return nil, cerr.(*CalcError)
			}
			out = append(out, n)
		}
	}
	return out, nil
}

func fnSum(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) == 0 {
		return NewCalcError(ErrorCodeOther, "SUM requires at least one argument"), nil
	}
	nums, ce := numbersForAggregation(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return Number(total), nil
}

func fnProduct(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) == 0 {
		return NewCalcError(ErrorCodeOther, "PRODUCT requires at least one argument"), nil
	}
	nums, ce := numbersForAggregation(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	if len(nums) == 0 {
		return Number(0), nil
	}
	total := 1.0
	for _, n := range nums {
		total *= n
	}
	return Number(total), nil
}

func fnMinMax(e *Evaluator, args []Node, origin CellRef3D, wantMax bool) (CalcValue, error) {
	nums, ce := numbersForAggregation(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	if len(nums) == 0 {
		return Number(0), nil
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if (wantMax && n > best) || (!wantMax && n < best) {
			best = n
		}
	}
	return Number(best), nil
}

func fnAverage(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := numbersForAggregation(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	if len(nums) == 0 {
		return NewCalcError(ErrorCodeDiv0, "AVERAGE of no values"), nil
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return Number(total / float64(len(nums))), nil
}

func fnCount(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	count := 0
	for _, a := range args {
		v, err := a.Eval(e, origin)
		if err != nil {
			continue
		}
		if r, ok := v.(*RangeValue); ok {
			r.Cells(e)(func(_, _ int32, cv CalcValue) bool {
				if _, ok := cv.(Number); ok {
					count++
				}
				return true
			})
			continue
		}
		if _, ok := v.(Number); ok {
			count++
		}
	}
	return Number(float64(count)), nil
}

func fnCountA(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	count := 0
	for _, a := range args {
		v, err := a.Eval(e, origin)
		if err != nil {
			count++
			continue
		}
		if r, ok := v.(*RangeValue); ok {
			r.Cells(e)(func(_, _ int32, cv CalcValue) bool {
				if _, empty := cv.(EmptyCell); !empty {
					count++
				}
				return true
			})
			continue
		}
		if _, empty := v.(EmptyCell); !empty {
			count++
		}
	}
	return Number(float64(count)), nil
}

func oneNumber(e *Evaluator, args []Node, origin CellRef3D, name string, allowBool bool) (float64, *CalcError) {
	if len(args) != 1 {
		return 0, newArgsNumberError(name)
	}
	v, err := args[0].Eval(e, origin)
	if err != nil {
		return 0, errCalc(err)
	}
	if ce, ok := AsError(v); ok {
		return 0, ce
	}
	if allowBool {
		n, cerr := CoerceToNumber(e, v, origin)
		if cerr != nil {
			return 0, cerr.(*CalcError)
		}
		return n, nil
	}
	n, cerr := CoerceToNumberNoBools(e, v, origin)
	if cerr != nil {
		return 0, cerr.(*CalcError)
	}
	return n, nil
}

func fnMathUnary(e *Evaluator, kind FunctionKind, args []Node, origin CellRef3D) (CalcValue, error) {
	n, ce := oneNumber(e, args, origin, "math function", true)
	if ce != nil {
		return ce, nil
	}
	switch kind {
	case FnAbs:
		return Number(math.Abs(n)), nil
	case FnSqrt:
		if n < 0 {
			return NewCalcError(ErrorCodeNum, "SQRT of a negative number"), nil
		}
		return Number(math.Sqrt(n)), nil
	case FnSqrtPi:
		if n < 0 {
			return NewCalcError(ErrorCodeNum, "SQRTPI of a negative number"), nil
		}
		return Number(math.Sqrt(n * math.Pi)), nil
	case FnSin:
		return Number(math.Sin(n)), nil
	case FnCos:
		return Number(math.Cos(n)), nil
	case FnTan:
		return Number(math.Tan(n)), nil
	case FnAsin:
		return Number(math.Asin(n)), nil
	case FnAcos:
		return Number(math.Acos(n)), nil
	case FnAtan:
		return Number(math.Atan(n)), nil
	case FnSinh:
		return Number(math.Sinh(n)), nil
	case FnCosh:
		return Number(math.Cosh(n)), nil
	case FnTanh:
		return Number(math.Tanh(n)), nil
	case FnExp:
		return Number(math.Exp(n)), nil
	case FnLn:
		if n <= 0 {
			return NewCalcError(ErrorCodeNum, "LN of a non-positive number"), nil
		}
		return Number(math.Log(n)), nil
	case FnLog10:
		if n <= 0 {
			return NewCalcError(ErrorCodeNum, "LOG10 of a non-positive number"), nil
		}
		return Number(math.Log10(n)), nil
	case FnInt:
		return Number(math.Floor(n)), nil
	case FnSign:
		switch {
		case n > 0:
			return Number(1), nil
		case n < 0:
			return Number(-1), nil
		default:
			return Number(0), nil
		}
	case FnErf:
		return Number(math.Erf(n)), nil
	case FnErfc:
		return Number(math.Erfc(n)), nil
	}
	return NewCalcError(ErrorCodeNimpl, "unimplemented math function"), nil
}

func fnPower(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 2 {
		return newArgsNumberError("POWER"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	base, cerr := CoerceToNumber(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	exp, cerr := CoerceToNumber(e, vals[1], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	result := math.Pow(base, exp)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return NewCalcError(ErrorCodeNum, "POWER produced an invalid result"), nil
	}
	return Number(result), nil
}

func fnPi(args []Node) (CalcValue, error) {
	if len(args) != 0 {
		return newArgsNumberError("PI"), nil
	}
	return Number(math.Pi), nil
}

func fnAtan2(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 2 {
		return newArgsNumberError("ATAN2"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	x, cerr := CoerceToNumber(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	y, cerr := CoerceToNumber(e, vals[1], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	return Number(math.Atan2(y, x)), nil
}

func fnLog(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 1 || len(args) > 2 {
		return newArgsNumberError("LOG"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	n, cerr := CoerceToNumber(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	base := 10.0
	if len(vals) == 2 {
		base, cerr = CoerceToNumber(e, vals[1], origin)
		if cerr != nil {
			return cerr.(*CalcError), nil
		}
	}
	if n <= 0 || base <= 0 || base == 1 {
		return NewCalcError(ErrorCodeNum, "LOG of an invalid argument"), nil
	}
	return Number(math.Log(n) / math.Log(base)), nil
}

func fnMod(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 2 {
		return newArgsNumberError("MOD"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	a, cerr := CoerceToNumber(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	b, cerr := CoerceToNumber(e, vals[1], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	if b == 0 {
		return NewCalcError(ErrorCodeDiv0, "MOD by zero"), nil
	}
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return Number(m), nil
}

// fnRound implements ROUND/ROUNDUP/ROUNDDOWN: a positive digit count rounds
// to the right of the decimal point, negative rounds to the left.
func fnRound(e *Evaluator, kind FunctionKind, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 2 {
		return newArgsNumberError("ROUND"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	n, cerr := CoerceToNumber(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	digits, cerr := CoerceToNumber(e, vals[1], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	scale := math.Pow(10, math.Floor(digits))
	scaled := n * scale
	switch kind {
	case FnRound:
		if scaled >= 0 {
			scaled = math.Floor(scaled + 0.5)
		} else {
			scaled = math.Ceil(scaled - 0.5)
		}
	case FnRoundUp:
		if scaled >= 0 {
			scaled = math.Ceil(scaled)
		} else {
			scaled = math.Floor(scaled)
		}
	case FnRoundDown:
		if scaled >= 0 {
			scaled = math.Floor(scaled)
		} else {
			scaled = math.Ceil(scaled)
		}
	}
	return Number(scaled / scale), nil
}

func fnTrunc(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 1 || len(args) > 2 {
		return newArgsNumberError("TRUNC"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	n, cerr := CoerceToNumber(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	digits := 0.0
	if len(vals) == 2 {
		digits, cerr = CoerceToNumber(e, vals[1], origin)
		if cerr != nil {
			return cerr.(*CalcError), nil
		}
	}
	scale := math.Pow(10, math.Floor(digits))
	scaled := n * scale
	if scaled >= 0 {
		scaled = math.Floor(scaled)
	} else {
		scaled = math.Ceil(scaled)
	}
	return Number(scaled / scale), nil
}

func fnRand(e *Evaluator, args []Node) (CalcValue, error) {
	if len(args) != 0 {
		return newArgsNumberError("RAND"), nil
	}
	return Number(e.options.random().Float64()), nil
}

func fnRandBetween(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 2 {
		return newArgsNumberError("RANDBETWEEN"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	lo, cerr := CoerceToNumber(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	hi, cerr := CoerceToNumber(e, vals[1], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	if lo > hi {
		return NewCalcError(ErrorCodeNum, "RANDBETWEEN bottom greater than top"), nil
	}
	span := math.Floor(hi) - math.Ceil(lo) + 1
	return Number(math.Ceil(lo) + math.Floor(e.options.random().Float64()*span)), nil
}
