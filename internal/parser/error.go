package parser

import "fmt"

// Error reports an unexpected token, matching spec §4.2:
// ParseError{file, line, column, expected, found}.
type Error struct {
	File     string
	Line     int
	Column   int
	Expected string
	Found    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: expected %s, found %s", e.File, e.Line, e.Column, e.Expected, e.Found)
}

// maxErrors bounds how many errors a single parse records; later errors
// are dropped, and parsing still runs to the end of the input.
const maxErrors = 50
