package calc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/nfp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var caseFolder = cases.Fold()
var titleCaser = cases.Title(language.Und)

func fnConcatenate(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	var b strings.Builder
	for _, a := range args {
		v, err := a.Eval(e, origin)
		if err != nil {
			return errCalc(err), nil
		}
		if ce, ok := AsError(v); ok {
			return ce, nil
		}
		s, cerr := CoerceToString(e, v, origin)
		if cerr != nil {
			return cerr.(*CalcError), nil
		}
		b.WriteString(s)
	}
	return String(b.String()), nil
}

func oneString(e *Evaluator, args []Node, origin CellRef3D, name string) (string, *CalcError) {
	if len(args) != 1 {
		return "", newArgsNumberError(name)
	}
	v, err := args[0].Eval(e, origin)
	if err != nil {
		return "", errCalc(err)
	}
	if ce, ok := AsError(v); ok {
		return "", ce
	}
	s, cerr := CoerceToString(e, v, origin)
	if cerr != nil {
		return "", cerr.(*CalcError)
	}
	return s, nil
}

// fnCaseFold implements UPPER/LOWER/PROPER: LOWER is golang.org/x/text/cases
// Unicode case folding, UPPER is strings.ToUpper of that folded text, and
// PROPER title-cases the lower-cased text.
func fnCaseFold(e *Evaluator, kind FunctionKind, args []Node, origin CellRef3D) (CalcValue, error) {
	s, ce := oneString(e, args, origin, "case fold function")
	if ce != nil {
		return ce, nil
	}
	switch kind {
	case FnUpper:
		return String(strings.ToUpper(caseFolder.String(s))), nil
	case FnLower:
		return String(caseFolder.String(s)), nil
	case FnProper:
		return String(titleCaser.String(strings.ToLower(s))), nil
	}
	return NewCalcError(ErrorCodeNimpl, "unimplemented case fold function"), nil
}

func fnLen(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	s, ce := oneString(e, args, origin, "LEN")
	if ce != nil {
		return ce, nil
	}
	return Number(float64(len([]rune(s)))), nil
}

func fnTrim(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	s, ce := oneString(e, args, origin, "TRIM")
	if ce != nil {
		return ce, nil
	}
	fields := strings.Fields(s)
	return String(strings.Join(fields, " ")), nil
}

func fnLeftRight(e *Evaluator, kind FunctionKind, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) < 1 || len(args) > 2 {
		return newArgsNumberError("LEFT/RIGHT"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	s, cerr := CoerceToString(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	n := 1.0
	if len(vals) == 2 {
		n, cerr = CoerceToNumber(e, vals[1], origin)
		if cerr != nil {
			return cerr.(*CalcError), nil
		}
	}
	runes := []rune(s)
	count := int(n)
	if count < 0 {
		return NewCalcError(ErrorCodeValue, "character count cannot be negative"), nil
	}
	if count > len(runes) {
		count = len(runes)
	}
	if kind == FnLeft {
		return String(string(runes[:count])), nil
	}
	return String(string(runes[len(runes)-count:])), nil
}

func fnMid(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 3 {
		return newArgsNumberError("MID"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	s, cerr := CoerceToString(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	start, cerr := CoerceToNumber(e, vals[1], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	length, cerr := CoerceToNumber(e, vals[2], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}
	runes := []rune(s)
	startIdx := int(start) - 1
	if startIdx < 0 || length < 0 {
		return NewCalcError(ErrorCodeValue, "MID requires a positive start and length"), nil
	}
	if startIdx >= len(runes) {
		return String(""), nil
	}
	end := startIdx + int(length)
	if end > len(runes) {
		end = len(runes)
	}
	return String(string(runes[startIdx:end])), nil
}

func fnValue(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	s, ce := oneString(e, args, origin, "VALUE")
	if ce != nil {
		return ce, nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return NewCalcError(ErrorCodeValue, "VALUE could not parse text as a number"), nil
	}
	return Number(n), nil
}

// fnText implements TEXT(value, format_text). Format parsing is delegated
// to github.com/xuri/nfp; this renderer supports the common numeric and
// date/time token set rather than reimplementing every Excel picture-format
// edge case.
func fnText(e *Evaluator, args []Node, origin CellRef3D) (CalcValue, error) {
	if len(args) != 2 {
		return newArgsNumberError("TEXT"), nil
	}
	vals, ce := evalArgs(e, args, origin)
	if ce != nil {
		return ce, nil
	}
	format, cerr := CoerceToString(e, vals[1], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}

	if s, ok := vals[0].(String); ok {
		return s, nil
	}
	n, cerr := CoerceToNumber(e, vals[0], origin)
	if cerr != nil {
		return cerr.(*CalcError), nil
	}

	sections := nfp.NumberFormatParser().Parse(format)
	if len(sections) == 0 {
		return String(formatNumber(n)), nil
	}
	sec := sections[0]
	if len(sections) > 1 && n < 0 {
		sec = sections[1]
	}

	isDate := false
	for _, tok := range sec.Items {
		if tok.TType == nfp.TokenTypeDateTimes || tok.TType == nfp.TokenTypeElapsedDateTimes {
			isDate = true
			break
		}
	}
	if isDate {
		return String(renderDateFormat(sec, n)), nil
	}
	return String(renderNumericFormat(sec, n)), nil
}

func renderDateFormat(sec nfp.Section, serial float64) string {
	t := serialToTime(serial)
	var b strings.Builder
	for _, tok := range sec.Items {
		switch tok.TType {
		case nfp.TokenTypeLiteral:
			b.WriteString(tok.TValue)
		case nfp.TokenTypeDateTimes, nfp.TokenTypeElapsedDateTimes:
			switch strings.ToUpper(tok.TValue) {
			case "YYYY":
				fmt.Fprintf(&b, "%04d", t.Year())
			case "YY":
				fmt.Fprintf(&b, "%02d", t.Year()%100)
			case "MMMM":
				b.WriteString(t.Month().String())
			case "MMM":
				b.WriteString(t.Month().String()[:3])
			case "MM":
				fmt.Fprintf(&b, "%02d", int(t.Month()))
			case "M":
				fmt.Fprintf(&b, "%d", int(t.Month()))
			case "DD":
				fmt.Fprintf(&b, "%02d", t.Day())
			case "D":
				fmt.Fprintf(&b, "%d", t.Day())
			case "HH":
				fmt.Fprintf(&b, "%02d", t.Hour())
			case "H":
				fmt.Fprintf(&b, "%d", t.Hour())
			case "SS":
				fmt.Fprintf(&b, "%02d", t.Second())
			case "S":
				fmt.Fprintf(&b, "%d", t.Second())
			}
		}
	}
	return b.String()
}

func renderNumericFormat(sec nfp.Section, n float64) string {
	percent := false
	thousands := false
	decZeros, decHashes := 0, 0
	afterDecimal := false
	for _, tok := range sec.Items {
		switch tok.TType {
		case nfp.TokenTypePercent:
			percent = true
		case nfp.TokenTypeThousandsSeparator:
			thousands = true
		case nfp.TokenTypeDecimalPoint:
			afterDecimal = true
		case nfp.TokenTypeZeroPlaceHolder:
			if afterDecimal {
				decZeros += len(tok.TValue)
			}
		case nfp.TokenTypeHashPlaceHolder:
			if afterDecimal {
				decHashes += len(tok.TValue)
			}
		}
	}
	decimals := decZeros + decHashes

	value := n
	if percent {
		value *= 100
	}
	rendered := strconv.FormatFloat(value, 'f', decimals, 64)
	if decHashes > 0 {
		if dot := strings.IndexByte(rendered, '.'); dot >= 0 {
			frac := rendered[dot+1:]
			trimTo := len(frac)
			for trimTo > decZeros && trimTo > 0 && frac[trimTo-1] == '0' {
				trimTo--
			}
			rendered = rendered[:dot+1+trimTo]
			if trimTo == 0 {
				rendered = rendered[:dot]
			}
		}
	}
	if thousands {
		rendered = insertThousandsSeparators(rendered)
	}
	if percent {
		rendered += "%"
	}
	return rendered
}

func insertThousandsSeparators(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, hasFrac := s, "", false
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart, hasFrac = s[:idx], s[idx+1:], true
	}
	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)
	out := strings.Join(groups, ",")
	if hasFrac {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}
