package calc

import "log"

// Logger is the minimal diagnostic sink the evaluator writes to. It is never
// consulted for control flow: every error still travels as a CalcValue or a
// Go error, this only records things a host operator might want to see.
type Logger interface {
	Printf(format string, v ...any)
}

// stdLogger adapts the standard log package, the way broyeztony-karl's
// spreadsheet server logs its own diagnostics.
type stdLogger struct{}

func (stdLogger) Printf(format string, v ...any) { log.Printf(format, v...) }

// defaultLogger is used whenever a WorkbookOptions doesn't supply its own.
var defaultLogger Logger = stdLogger{}

func (o *WorkbookOptions) logger() Logger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}
	return defaultLogger
}

// logCircular records a circular-reference detection. Non-fatal: the
// evaluator still returns #CIRC! to the caller regardless of logging.
func (e *Evaluator) logCircular(addr CellAddress) {
	e.options.logger().Printf("calc: circular reference detected at worksheet %d row %d col %d", addr.WorksheetID, addr.Row, addr.Column)
}

// logUnknownFunction records a formula calling a name the dispatcher does
// not recognize; the cell still evaluates to #NAME? either way.
func logUnknownFunction(opts *WorkbookOptions, name string) {
	opts.logger().Printf("calc: unknown function %q, returning #NAME?", name)
}
