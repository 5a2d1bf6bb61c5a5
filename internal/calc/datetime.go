package calc

import "time"

// serialEpoch is 1899-12-30: spreadsheet serial date 1 is 1900-01-01, and
// the historical "1900 was a leap year" bug is absorbed by this offset
// rather than modeled explicitly.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

func serialToTime(serial float64) time.Time {
	days := int(serial)
	frac := serial - float64(days)
	return serialEpoch.AddDate(0, 0, days).Add(time.Duration(frac * 24 * float64(time.Hour)))
}

func timeToSerial(t time.Time) float64 {
	days := t.Sub(serialEpoch).Hours() / 24
	return float64(int(days))
}

func fnDate(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 3 {
		return newArgsNumberError("DATE"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	y, cerr := CoerceToNumberNoBools(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	m, cerr := CoerceToNumberNoBools(e, vals[1], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	d, cerr := CoerceToNumberNoBools(e, vals[2], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	t := time.Date(int(y), time.Month(1), 1, 0, 0, 0, 0, time.UTC)
	t = t.AddDate(0, int(m)-1, int(d)-1)
	return Number(timeToSerial(t)), nil
}

type datePart int

const (
	datePartDay datePart = iota
	datePartMonth
	datePartYear
)

func fnDatePart(e *Evaluator, args []Node, origin CellRef3D, part datePart) (CalcValue, error) {
	n, ce := oneNumber(e, args, origin, "date part function", false)
	if ce != nil {
		return ce, nil
	}
	t := serialToTime(n)
	switch part {
	case datePartDay:
		return Number(float64(t.Day())), nil
	case datePartMonth:
		return Number(float64(t.Month())), nil
	case datePartYear:
		return Number(float64(t.Year())), nil
	}
	return NewCalcError(ErrorCodeNimpl, "unimplemented date part"), nil
}

func fnEdate(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 2 {
		return newArgsNumberError("EDATE"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	serial, cerr := CoerceToNumberNoBools(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	months, cerr := CoerceToNumberNoBools(e, vals[1], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	t := serialToTime(serial).AddDate(0, int(months), 0)
	return Number(timeToSerial(t)), nil
}

func fnEomonth(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 2 {
		return newArgsNumberError("EOMONTH"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	serial, cerr := CoerceToNumberNoBools(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	months, cerr := CoerceToNumberNoBools(e, vals[1], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	t := serialToTime(serial)
	firstOfTarget := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, int(months)+1, 0)
	lastOfMonth := firstOfTarget.AddDate(0, 0, -1)
	return Number(timeToSerial(lastOfMonth)), nil
}

func fnToday(e *Evaluator, args []Node) (CalcValue, error) {
	if len(args) != 0 {
		return newArgsNumberError("TODAY"), nil
	}
	now := e.options.clock().Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Number(timeToSerial(midnight)), nil
}

func fnNow(e *Evaluator, args []Node) (CalcValue, error) {
	if len(args) != 0 {
		return newArgsNumberError("NOW"), nil
	}
	now := e.options.clock().Now()
	days := now.Sub(serialEpoch).Hours() / 24
	return Number(days), nil
}
