package calc

import "math"

// financial helpers share the payment/future-value relation: fv + pv*(1+r)^n
// + pmt*(1+r*type)*((1+r)^n-1)/r = 0, the identity PMT/PV/FV/NPER are built
// on.

func financialArgs(e *Evaluator, args []Node, origin CellRef3D, min, max int) ([]float64, *CalcError) {
	if len(args) < min || len(args) > max {
		return nil, newArgsNumberError("financial function")
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return nil, ce
	}
	nums := make([]float64, len(vals))
	for i, v := range vals {
		n, cerr := CoerceToNumberNoBools(e, v, origin)
		if cerr != nil {
			return nil, cerr.(*CalcError)
		}
		nums[i] = n
	}
	return nums, nil
}

func fnPmt(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 3, 5)
	if ce != nil {
		return ce, nil
	}
	rate, nper, pv := nums[0], nums[1], nums[2]
	fv, typ := 0.0, 0.0
	if len(nums) > 3 {
		fv = nums[3]
	}
	if len(nums) > 4 {
		typ = nums[4]
	}
	return Number(pmt(rate, nper, pv, fv, typ)), nil
}

func pmt(rate, nper, pv, fv, typ float64) float64 {
	if rate == 0 {
		return -(pv + fv) / nper
	}
	factor := math.Pow(1+rate, nper)
	return -(pv*factor + fv) * rate / ((factor - 1) * (1 + rate*typ))
}

func fnPv(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 3, 5)
	if ce != nil {
		return ce, nil
	}
	rate, nper, payment := nums[0], nums[1], nums[2]
	fv, typ := 0.0, 0.0
	if len(nums) > 3 {
		fv = nums[3]
	}
	if len(nums) > 4 {
		typ = nums[4]
	}
	if rate == 0 {
		return Number(-(fv + payment*nper)), nil
	}
	factor := math.Pow(1+rate, nper)
	return Number(-(fv + payment*(1+rate*typ)*(factor-1)/rate) / factor), nil
}

func fnFv(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 3, 5)
	if ce != nil {
		return ce, nil
	}
	rate, nper, payment := nums[0], nums[1], nums[2]
	pv, typ := 0.0, 0.0
	if len(nums) > 3 {
		pv = nums[3]
	}
	if len(nums) > 4 {
		typ = nums[4]
	}
	if rate == 0 {
		return Number(-(pv + payment*nper)), nil
	}
	factor := math.Pow(1+rate, nper)
	return Number(-(pv*factor + payment*(1+rate*typ)*(factor-1)/rate)), nil
}

func fnNper(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 3, 5)
	if ce != nil {
		return ce, nil
	}
	rate, payment, pv := nums[0], nums[1], nums[2]
	fv, typ := 0.0, 0.0
	if len(nums) > 3 {
		fv = nums[3]
	}
	if len(nums) > 4 {
		typ = nums[4]
	}
	if rate == 0 {
		if payment == 0 {
			return NewCalcError(ErrorCodeDiv0, "NPER requires a non-zero payment"), nil
		}
		return Number(-(pv + fv) / payment), nil
	}
	num := payment*(1+rate*typ) - fv*rate
	den := pv*rate + payment*(1+rate*typ)
	if num <= 0 || den <= 0 {
		return NewCalcError(ErrorCodeNum, "NPER cannot converge for these arguments"), nil
	}
	return Number(math.Log(num/den) / math.Log(1+rate)), nil
}

// fnRate solves for the interest rate by Newton's method, seeded by the
// caller-supplied guess (default 0.1).
func fnRate(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 3 || len(args) > 6 {
		return newArgsNumberError("RATE"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	nums := make([]float64, len(vals))
	for i, v := range vals {
		n, cerr := CoerceToNumberNoBools(e, v, origin)
		if cerr != nil {
			return cerr.(*CalcError), nil
		}
		nums[i] = n
	}
	nper, payment, pv := nums[0], nums[1], nums[2]
	fv, typ, guess := 0.0, 0.0, 0.1
	if len(nums) > 3 {
		fv = nums[3]
	}
	if len(nums) > 4 {
		typ = nums[4]
	}
	if len(nums) > 5 {
		guess = nums[5]
	}

	rate := guess
	f := func(r float64) float64 {
		if r == 0 {
			return pv + payment*nper + fv
		}
		factor := math.Pow(1+r, nper)
		return pv*factor + payment*(1+r*typ)*(factor-1)/r + fv
	}
	const h = 1e-6
	for i := 0; i < 100; i++ {
		fr := f(rate)
		deriv := (f(rate+h) - f(rate-h)) / (2 * h)
		if deriv == 0 {
			break
		}
		next := rate - fr/deriv
		if math.Abs(next-rate) < 1e-8 {
			rate = next
			break
		}
		rate = next
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return NewCalcError(ErrorCodeNum, "RATE did not converge"), nil
	}
	return Number(rate), nil
}

func fnIpmt(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 4, 6)
	if ce != nil {
		return ce, nil
	}
	rate, per, nper, pv := nums[0], nums[1], nums[2], nums[3]
	fv, typ := 0.0, 0.0
	if len(nums) > 4 {
		fv = nums[4]
	}
	if len(nums) > 5 {
		typ = nums[5]
	}
	totalPmt := pmt(rate, nper, pv, fv, typ)
	balance := pv
	var interest float64
	for p := 1.0; p <= per; p++ {
		interest = -balance * rate
		principal := totalPmt - interest
		balance += principal
	}
	return Number(interest), nil
}

func fnPpmt(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 4, 6)
	if ce != nil {
		return ce, nil
	}
	rate, per, nper, pv := nums[0], nums[1], nums[2], nums[3]
	fv, typ := 0.0, 0.0
	if len(nums) > 4 {
		fv = nums[4]
	}
	if len(nums) > 5 {
		typ = nums[5]
	}
	totalPmt := pmt(rate, nper, pv, fv, typ)
	balance := pv
	var principal float64
	for p := 1.0; p <= per; p++ {
		interest := -balance * rate
		principal = totalPmt - interest
		balance += principal
	}
	return Number(principal), nil
}

func fnNpv(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 2 {
		return newArgsNumberError("NPV"), nil
	}
	rateVal, err := args[0].Eval(e, origin)
	if err != nil {
		return errCalc(err), nil
	}
	if ce, ok := AsError(rateVal); ok {
		return ce, nil
	}
	rate, cerr := CoerceToNumberNoBools(e, rateVal, origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	flows, ce := numbersForAggregation(e, args[1:], origin)
	if ce != nil {
		return ce, nil
	}
	total := 0.0
	for i, cf := range flows {
		total += cf / math.Pow(1+rate, float64(i+1))
	}
	return Number(total), nil
}

// fnIrr solves NPV(rate, flows...) = 0 via Newton's method.
func fnIrr(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 1 || len(args) > 2 {
		return newArgsNumberError("IRR"), nil
	}
	rangeVal, err := args[0].Eval(e, origin)
	if err != nil {
		return errCalc(err), nil
	}
	if ce, ok := AsError(rangeVal); ok {
		return ce, nil
	}
	var flows []float64
	switch v := rangeVal.(type) {
	case *RangeValue:
		var rangeErr *CalcError
		v.Cells(e)(func(_, _ int32, cv CalcValue) bool {
			if ce, ok := AsError(cv); ok {
				rangeErr = ce
				return false
			}
			if n, ok := cv.(Number); ok {
				flows = append(flows, float64(n))
			}
			return true
		})
		if rangeErr != nil {
			return rangeErr, nil
		}
	default:
		return NewCalcError(ErrorCodeValue, "IRR requires a range of cash flows"), nil
	}
	guess := 0.1
	if len(args) == 2 {
		gv, err := args[1].Eval(e, origin)
		if err != nil {
			return errCalc(err), nil
		}
		guess, err = CoerceToNumberNoBools(e, gv, origin)
		if err != nil {
			return err.(*CalcError), nil
		}
	}
	npv := func(r float64) float64 {
		total := 0.0
		for i, cf := range flows {
			total += cf / math.Pow(1+r, float64(i))
		}
		return total
	}
	rate := guess
	const h = 1e-6
	for i := 0; i < 100; i++ {
		fr := npv(rate)
		deriv := (npv(rate+h) - npv(rate-h)) / (2 * h)
		if deriv == 0 {
			break
		}
		next := rate - fr/deriv
		if math.Abs(next-rate) < 1e-8 {
			rate = next
			break
		}
		rate = next
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return NewCalcError(ErrorCodeNum, "IRR did not converge"), nil
	}
	return Number(rate), nil
}

// datedCashFlows evaluates a values range and a parallel dates range,
// pairing cf[i] with a day offset from the first date (dates[0] itself
// maps to offset 0). Returns #NUM! if any date falls before dates[0], or if
// the two ranges don't have matching lengths.
func datedCashFlows(e *Evaluator, valuesNode, datesNode Node, origin CellRef3D) ([]float64, []float64, *CalcError) {
	flows, ce := numbersForAggregation(e, []Node{valuesNode}, origin)
	if ce != nil {
		return nil, nil, ce
	}
	dates, ce := numbersForAggregation(e, []Node{datesNode}, origin)
	if ce != nil {
		return nil, nil, ce
	}
	if len(flows) != len(dates) || len(flows) == 0 {
		return nil, nil, NewCalcError(ErrorCodeNum, "XNPV/XIRR require values and dates of equal, non-zero length")
	}
	first := dates[0]
	offsets := make([]float64, len(dates))
	for i, d := range dates {
		if d < first {
			return nil, nil, NewCalcError(ErrorCodeNum, "a date earlier than the first date is not allowed")
		}
		offsets[i] = d - first
	}
	return flows, offsets, nil
}

// xnpv computes the date-weighted net present value: cf[i] discounted by
// (1+rate)^(days[i]/365), the daily-compounding convention XNPV/XIRR use
// (as opposed to NPV's whole-period compounding).
func xnpv(rate float64, flows, dayOffsets []float64) float64 {
	total := 0.0
	for i, cf := range flows {
		total += cf / math.Pow(1+rate, dayOffsets[i]/365)
	}
	return total
}

func fnXnpv(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 3 {
		return newArgsNumberError("XNPV"), nil
	}
	rateVal, err := args[0].Eval(e, origin)
	if err != nil {
		return errCalc(err), nil
	}
	if ce, ok := AsError(rateVal); ok {
		return ce, nil
	}
	rate, cerr := CoerceToNumberNoBools(e, rateVal, origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	if rate <= -1 {
		return NewCalcError(ErrorCodeNum, "XNPV requires a rate greater than -1"), nil
	}
	flows, offsets, ce := datedCashFlows(e, args[1], args[2], origin)
	if ce != nil {
		return ce, nil
	}
	return Number(xnpv(rate, flows, offsets)), nil
}

// fnXirr solves xnpv(rate, flows, offsets) = 0 via Newton's method, the
// same bounded-iteration shape as fnRate/fnIrr (tolerance 1e-8, 100 steps).
func fnXirr(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 2 || len(args) > 3 {
		return newArgsNumberError("XIRR"), nil
	}
	flows, offsets, ce := datedCashFlows(e, args[0], args[1], origin)
	if ce != nil {
		return ce, nil
	}
	guess := 0.1
	if len(args) == 3 {
		gv, err := args[2].Eval(e, origin)
		if err != nil {
			return errCalc(err), nil
		}
		g, cerr := CoerceToNumberNoBools(e, gv, origin)
		if cerr != nil {
			return cerr.(*CalcError), nil
		}
		guess = g
	}

	rate := guess
	const h = 1e-6
	for i := 0; i < 100; i++ {
		if rate <= -1 {
			return NewCalcError(ErrorCodeNum, "XIRR did not converge"), nil
		}
		fr := xnpv(rate, flows, offsets)
		deriv := (xnpv(rate+h, flows, offsets) - xnpv(rate-h, flows, offsets)) / (2 * h)
		if deriv == 0 {
			break
		}
		next := rate - fr/deriv
		if math.Abs(next-rate) < 1e-8 {
			rate = next
			break
		}
		rate = next
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= -1 {
		return NewCalcError(ErrorCodeNum, "XIRR did not converge"), nil
	}
	return Number(rate), nil
}

func fnSln(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 3, 3)
	if ce != nil {
		return ce, nil
	}
	cost, salvage, life := nums[0], nums[1], nums[2]
	if life == 0 {
		return NewCalcError(ErrorCodeDiv0, "SLN requires a non-zero life"), nil
	}
	return Number((cost - salvage) / life), nil
}

func fnSyd(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 4, 4)
	if ce != nil {
		return ce, nil
	}
	cost, salvage, life, per := nums[0], nums[1], nums[2], nums[3]
	if life == 0 {
		return NewCalcError(ErrorCodeDiv0, "SYD requires a non-zero life"), nil
	}
	sumOfYears := life * (life + 1) / 2
	return Number((cost - salvage) * (life - per + 1) / sumOfYears), nil
}

func fnDb(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 4, 5)
	if ce != nil {
		return ce, nil
	}
	cost, salvage, life, period := nums[0], nums[1], nums[2], nums[3]
	month := 12.0
	if len(nums) > 4 {
		month = nums[4]
	}
	if cost == 0 || life == 0 {
		return Number(0), nil
	}
	rate := math.Round((1-math.Pow(salvage/cost, 1/life))*1000) / 1000

	accumulated := 0.0
	depreciation := cost * rate * month / 12
	for p := 2.0; p <= period; p++ {
		accumulated += depreciation
		depreciation = (cost - accumulated) * rate
		if p == life+1 {
			depreciation = (cost - accumulated) * rate * (12 - month) / 12
		}
	}
	return Number(depreciation), nil
}

func fnDdb(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 4, 5)
	if ce != nil {
		return ce, nil
	}
	cost, salvage, life, period := nums[0], nums[1], nums[2], nums[3]
	factor := 2.0
	if len(nums) > 4 {
		factor = nums[4]
	}
	if life == 0 {
		return NewCalcError(ErrorCodeDiv0, "DDB requires a non-zero life"), nil
	}
	rate := factor / life
	bookValue := cost
	var depreciation float64
	for p := 1.0; p <= period; p++ {
		depreciation = bookValue * rate
		if bookValue-depreciation < salvage {
			depreciation = bookValue - salvage
		}
		bookValue -= depreciation
	}
	return Number(depreciation), nil
}

func fnNominal(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 2, 2)
	if ce != nil {
		return ce, nil
	}
	effectRate, npery := nums[0], nums[1]
	if npery < 1 {
		return NewCalcError(ErrorCodeNum, "NOMINAL requires at least one compounding period"), nil
	}
	return Number(npery * (math.Pow(effectRate+1, 1/npery) - 1)), nil
}

func fnEffect(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	nums, ce := financialArgs(e, args, origin, 2, 2)
	if ce != nil {
		return ce, nil
	}
	nominalRate, npery := nums[0], nums[1]
	if npery < 1 {
		return NewCalcError(ErrorCodeNum, "EFFECT requires at least one compounding period"), nil
	}
	return Number(math.Pow(1+nominalRate/npery, npery) - 1), nil
}
