package calc

import "strings"

// FunctionKind is the closed enum of every built-in function name this
// engine recognizes. Adding a function is two edits: a constant here and a
// case in Dispatch.
type FunctionKind int

const (
	FnUnknown FunctionKind = iota

	// logical
	FnIf
	FnIfError
	FnIfNa
	FnAnd
	FnOr
	FnXor
	FnNot
	FnSwitch
	FnIfs
	FnTrue
	FnFalse
	FnNa

	// math
	FnSum
	FnProduct
	FnMin
	FnMax
	FnAbs
	FnRound
	FnRoundUp
	FnRoundDown
	FnSqrt
	FnSqrtPi
	FnPower
	FnPi
	FnAtan2
	FnSin
	FnCos
	FnTan
	FnAsin
	FnAcos
	FnAtan
	FnSinh
	FnCosh
	FnTanh
	FnExp
	FnLn
	FnLog
	FnLog10
	FnMod
	FnRand
	FnRandBetween
	FnAverage
	FnCount
	FnCountA
	FnInt
	FnSign
	FnTrunc

	// date/time
	FnDate
	FnDay
	FnMonth
	FnYear
	FnEdate
	FnEomonth
	FnToday
	FnNow

	// engineering
	FnBesselI
	FnBesselJ
	FnBesselK
	FnBesselY
	FnErf
	FnErfc
	FnBitAnd
	FnBitOr
	FnBitXor
	FnBitLShift
	FnBitRShift
	FnDelta
	FnGestep

	// financial
	FnPmt
	FnPv
	FnFv
	FnNper
	FnRate
	FnIpmt
	FnPpmt
	FnNpv
	FnIrr
	FnSln
	FnSyd
	FnDb
	FnDdb
	FnNominal
	FnEffect
	FnXnpv
	FnXirr

	// information
	FnIsNumber
	FnIsText
	FnIsNonText
	FnIsLogical
	FnIsBlank
	FnIsError
	FnIsErr
	FnIsNa
	FnIsRef
	FnIsOdd
	FnIsEven
	FnIsFormula
	FnErrorType
	FnType
	FnSheet

	// text
	FnConcatenate
	FnUpper
	FnLower
	FnProper
	FnLen
	FnTrim
	FnLeft
	FnRight
	FnMid
	FnText
	FnValue

	// lookup
	FnIndex
	FnMatch
	FnVlookup
	FnHlookup

	// ifs engine consumers
	FnSumIf
	FnSumIfs
	FnCountIf
	FnCountIfs
	FnAverageIf
	FnAverageIfs
	FnMaxIfs
	FnMinIfs
	FnSubtotal
)

var functionNames = map[string]FunctionKind{
	"IF": FnIf, "IFERROR": FnIfError, "IFNA": FnIfNa, "AND": FnAnd, "OR": FnOr,
	"XOR": FnXor, "NOT": FnNot, "SWITCH": FnSwitch, "IFS": FnIfs,
	"TRUE": FnTrue, "FALSE": FnFalse, "NA": FnNa,

	"SUM": FnSum, "PRODUCT": FnProduct, "MIN": FnMin, "MAX": FnMax, "ABS": FnAbs,
	"ROUND": FnRound, "ROUNDUP": FnRoundUp, "ROUNDDOWN": FnRoundDown,
	"SQRT": FnSqrt, "SQRTPI": FnSqrtPi, "POWER": FnPower, "PI": FnPi,
	"ATAN2": FnAtan2, "SIN": FnSin, "COS": FnCos, "TAN": FnTan,
	"ASIN": FnAsin, "ACOS": FnAcos, "ATAN": FnAtan,
	"SINH": FnSinh, "COSH": FnCosh, "TANH": FnTanh,
	"EXP": FnExp, "LN": FnLn, "LOG": FnLog, "LOG10": FnLog10, "MOD": FnMod,
	"RAND": FnRand, "RANDBETWEEN": FnRandBetween,
	"AVERAGE": FnAverage, "COUNT": FnCount, "COUNTA": FnCountA,
	"INT": FnInt, "SIGN": FnSign, "TRUNC": FnTrunc,

	"DATE": FnDate, "DAY": FnDay, "MONTH": FnMonth, "YEAR": FnYear,
	"EDATE": FnEdate, "EOMONTH": FnEomonth, "TODAY": FnToday, "NOW": FnNow,

	"BESSELI": FnBesselI, "BESSELJ": FnBesselJ, "BESSELK": FnBesselK, "BESSELY": FnBesselY,
	"ERF": FnErf, "ERFC": FnErfc,
	"BITAND": FnBitAnd, "BITOR": FnBitOr, "BITXOR": FnBitXor,
	"BITLSHIFT": FnBitLShift, "BITRSHIFT": FnBitRShift,
	"DELTA": FnDelta, "GESTEP": FnGestep,

	"PMT": FnPmt, "PV": FnPv, "FV": FnFv, "NPER": FnNper, "RATE": FnRate,
	"IPMT": FnIpmt, "PPMT": FnPpmt, "NPV": FnNpv, "IRR": FnIrr,
	"SLN": FnSln, "SYD": FnSyd, "DB": FnDb, "DDB": FnDdb,
	"NOMINAL": FnNominal, "EFFECT": FnEffect,
	"XNPV": FnXnpv, "XIRR": FnXirr,

	"ISNUMBER": FnIsNumber, "ISTEXT": FnIsText, "ISNONTEXT": FnIsNonText,
	"ISLOGICAL": FnIsLogical, "ISBLANK": FnIsBlank, "ISERROR": FnIsError,
	"ISERR": FnIsErr, "ISNA": FnIsNa, "ISREF": FnIsRef,
	"ISODD": FnIsOdd, "ISEVEN": FnIsEven, "ISFORMULA": FnIsFormula,
	"ERROR.TYPE": FnErrorType, "TYPE": FnType, "SHEET": FnSheet,

	"CONCATENATE": FnConcatenate, "UPPER": FnUpper, "LOWER": FnLower,
	"PROPER": FnProper, "LEN": FnLen, "TRIM": FnTrim,
	"LEFT": FnLeft, "RIGHT": FnRight, "MID": FnMid, "TEXT": FnText, "VALUE": FnValue,

	"INDEX": FnIndex, "MATCH": FnMatch, "VLOOKUP": FnVlookup, "HLOOKUP": FnHlookup,

	"SUMIF": FnSumIf, "SUMIFS": FnSumIfs, "COUNTIF": FnCountIf, "COUNTIFS": FnCountIfs,
	"AVERAGEIF": FnAverageIf, "AVERAGEIFS": FnAverageIfs,
	"MAXIFS": FnMaxIfs, "MINIFS": FnMinIfs, "SUBTOTAL": FnSubtotal,
}

// LookupFunction resolves a formula-text function name (case-insensitive) to
// its FunctionKind.
func LookupFunction(name string) (FunctionKind, bool) {
	kind, ok := functionNames[strings.ToUpper(name)]
	return kind, ok
}

// isVolatileFunction reports whether a function must be re-evaluated on
// every pass regardless of memoisation (recreated from the function this
// engine's predecessor kept in builtin.go).
func isVolatileFunction(name string) bool {
	switch strings.ToUpper(name) {
	case "NOW", "TODAY", "RAND", "RANDBETWEEN":
		return true
	default:
		return false
	}
}

// newArgsNumberError is the #VALUE! returned when a function receives the
// wrong number of arguments, named after the source's new_args_number_error.
func newArgsNumberError(name string) *CalcError {
	return NewCalcError(ErrorCodeValue, name+": wrong number of arguments")
}

// evalArgs evaluates every argument node left-to-right, short-circuiting on
// the first error encountered (a Go error or an error CalcValue).
func evalArgs(e *Evaluator, args []Node, origin CellRef3D) ([]CalcValue, *CalcError) {
	out := make([]CalcValue, len(args))
	for i, a := range args {
		v, err := a.Eval(e, origin)
		if err != nil {
			if ce, ok := err.(*CalcError); ok {
				return nil, ce
			}
			return nil, NewCalcError(ErrorCodeValue, err.Error())
		}
		if ce, ok := AsError(v); ok {
			return nil, ce
		}
		out[i] = v
	}
	return out, nil
}

// Dispatch evaluates a function call's arguments against its FunctionKind
// handler. It is a flat switch by design (spec note: adding a function is
// two edits, an enum variant here and a case below).
func Dispatch(e *Evaluator, kind FunctionKind, args []Node, origin CellRef3D) (CalcValue, error) {
	switch kind {
	// logical
	case FnIf:
		return fnIf(e, args, origin)
	case FnIfError:
		return fnIfError(e, args, origin)
	case FnIfNa:
		return fnIfNa(e, args, origin)
	case FnAnd:
		return fnAndOrXor(e, args, origin, logicalAnd)
	case FnOr:
		return fnAndOrXor(e, args, origin, logicalOr)
	case FnXor:
		return fnAndOrXor(e, args, origin, logicalXor)
	case FnNot:
		return fnNot(e, args, origin)
	case FnSwitch:
		return fnSwitch(e, args, origin)
	case FnIfs:
		return fnIfs(e, args, origin)
	case FnTrue:
		return Boolean(true), nil
	case FnFalse:
		return Boolean(false), nil
	case FnNa:
		return NewCalcError(ErrorCodeNA, ""), nil

	// math
	case FnSum:
		return fnSum(e, args, origin)
	case FnProduct:
		return fnProduct(e, args, origin)
	case FnMin:
		return fnMinMax(e, args, origin, false)
	case FnMax:
		return fnMinMax(e, args, origin, true)
	case FnAbs, FnSqrt, FnSqrtPi, FnSin, FnCos, FnTan, FnAsin, FnAcos, FnAtan,
		FnSinh, FnCosh, FnTanh, FnExp, FnLn, FnLog10, FnInt, FnSign, FnErf, FnErfc:
		return fnMathUnary(e, kind, args, origin)
	case FnPower:
		return fnPower(e, args, origin)
	case FnPi:
		return fnPi(args)
	case FnAtan2:
		return fnAtan2(e, args, origin)
	case FnLog:
		return fnLog(e, args, origin)
	case FnMod:
		return fnMod(e, args, origin)
	case FnRound, FnRoundUp, FnRoundDown:
		return fnRound(e, kind, args, origin)
	case FnTrunc:
		return fnTrunc(e, args, origin)
	case FnRand:
		return fnRand(e, args)
	case FnRandBetween:
		return fnRandBetween(e, args, origin)
	case FnAverage:
		return fnAverage(e, args, origin)
	case FnCount:
		return fnCount(e, args, origin)
	case FnCountA:
		return fnCountA(e, args, origin)

	// date/time
	case FnDate:
		return fnDate(e, args, origin)
	case FnDay:
		return fnDatePart(e, args, origin, datePartDay)
	case FnMonth:
		return fnDatePart(e, args, origin, datePartMonth)
	case FnYear:
		return fnDatePart(e, args, origin, datePartYear)
	case FnEdate:
		return fnEdate(e, args, origin)
	case FnEomonth:
		return fnEomonth(e, args, origin)
	case FnToday:
		return fnToday(e, args)
	case FnNow:
		return fnNow(e, args)

	// engineering
	case FnBesselI, FnBesselJ, FnBesselK, FnBesselY:
		return fnBessel(e, kind, args, origin)
	case FnBitAnd, FnBitOr, FnBitXor:
		return fnBitOp(e, kind, args, origin)
	case FnBitLShift, FnBitRShift:
		return fnBitShift(e, kind, args, origin)
	case FnDelta:
		return fnDelta(e, args, origin)
	case FnGestep:
		return fnGestep(e, args, origin)

	// financial
	case FnPmt:
		return fnPmt(e, args, origin)
	case FnPv:
		return fnPv(e, args, origin)
	case FnFv:
		return fnFv(e, args, origin)
	case FnNper:
		return fnNper(e, args, origin)
	case FnRate:
		return fnRate(e, args, origin)
	case FnIpmt:
		return fnIpmt(e, args, origin)
	case FnPpmt:
		return fnPpmt(e, args, origin)
	case FnNpv:
		return fnNpv(e, args, origin)
	case FnIrr:
		return fnIrr(e, args, origin)
	case FnSln:
		return fnSln(e, args, origin)
	case FnSyd:
		return fnSyd(e, args, origin)
	case FnDb:
		return fnDb(e, args, origin)
	case FnDdb:
		return fnDdb(e, args, origin)
	case FnNominal:
		return fnNominal(e, args, origin)
	case FnEffect:
		return fnEffect(e, args, origin)
	case FnXnpv:
		return fnXnpv(e, args, origin)
	case FnXirr:
		return fnXirr(e, args, origin)

	// information
	case FnIsNumber, FnIsText, FnIsNonText, FnIsLogical, FnIsBlank,
		FnIsError, FnIsErr, FnIsNa, FnIsOdd, FnIsEven:
		return fnIsX(e, kind, args, origin)
	case FnIsRef:
		return fnIsRef(args)
	case FnIsFormula:
		return fnIsFormula(e, args, origin)
	case FnErrorType:
		return fnErrorType(e, args, origin)
	case FnType:
		return fnType(e, args, origin)
	case FnSheet:
		return fnSheet(args, origin)

	// text
	case FnConcatenate:
		return fnConcatenate(e, args, origin)
	case FnUpper, FnLower, FnProper:
		return fnCaseFold(e, kind, args, origin)
	case FnLen:
		return fnLen(e, args, origin)
	case FnTrim:
		return fnTrim(e, args, origin)
	case FnLeft, FnRight:
		return fnLeftRight(e, kind, args, origin)
	case FnMid:
		return fnMid(e, args, origin)
	case FnText:
		return fnText(e, args, origin)
	case FnValue:
		return fnValue(e, args, origin)

	// lookup
	case FnIndex:
		return fnIndex(e, args, origin)
	case FnMatch:
		return fnMatch(e, args, origin)
	case FnVlookup:
		return fnVlookup(e, args, origin)
	case FnHlookup:
		return fnHlookup(e, args, origin)

	// ifs family
	case FnSumIf:
		return fnSumIf(e, args, origin)
	case FnSumIfs:
		return fnSumIfs(e, args, origin)
	case FnCountIf:
		return fnCountIf(e, args, origin)
	case FnCountIfs:
		return fnCountIfs(e, args, origin)
	case FnAverageIf:
		return fnAverageIf(e, args, origin)
	case FnAverageIfs:
		return fnAverageIfs(e, args, origin)
	case FnMaxIfs:
		return fnMaxIfsMinIfs(e, args, origin, true)
	case FnMinIfs:
		return fnMaxIfsMinIfs(e, args, origin, false)
	case FnSubtotal:
		return fnSubtotal(e, args, origin)
	}
	e.options.logger().Printf("calc: function kind %d recognized but not implemented", kind)
	return NewCalcError(ErrorCodeNimpl, "function recognized but not implemented"), nil
}
