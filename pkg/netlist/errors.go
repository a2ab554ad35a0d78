package netlist

import "fmt"

// ParseError reports a malformed netlist line.
type ParseError struct {
	Line   int    // 1-based line number
	Text   string // offending line, trimmed
	Reason string
}

func newParseError(line int, text, reason string) *ParseError {
	return &ParseError{Line: line, Text: text, Reason: reason}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s (%q)", e.Line, e.Reason, e.Text)
}
