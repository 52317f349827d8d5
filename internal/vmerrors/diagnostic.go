// Package vmerrors collects the host-facing diagnostic formatting shared
// across the compile pipeline's typed errors (lexer.LexicalError,
// parser.Error, bytecode.CompileError/LinkError) and the interpreter's
// runtime faults (spec §7: "every error carries a file, line, and a
// classifier").
package vmerrors

import (
	"fmt"
	"strings"

	"github.com/magoolation/intmud.net-sub002/internal/lexer"
)

// Diagnostic renders any positioned error against its source text with a
// caret pointing at the offending column, for terminal-facing host output.
// It does not replace the typed errors themselves (those remain the
// values a caller inspects with errors.As); it is purely a presentation
// layer over one.
type Diagnostic struct {
	Message string
	Source  string
	File    string
	Pos     lexer.Position
}

// NewDiagnostic builds a Diagnostic for message at pos, scoped to file.
func NewDiagnostic(pos lexer.Position, message, source, file string) *Diagnostic {
	return &Diagnostic{Pos: pos, Message: message, Source: source, File: file}
}

func (d *Diagnostic) Error() string { return d.Format(false) }

// Format renders the diagnostic with a one-line source excerpt and caret.
// When color is true, ANSI escapes highlight the caret and message.
func (d *Diagnostic) Format(color bool) string {
	var sb strings.Builder
	if d.File != "" {
		fmt.Fprintf(&sb, "%s:%d:%d: ", d.File, d.Pos.Line, d.Pos.Column)
	} else {
		fmt.Fprintf(&sb, "%d:%d: ", d.Pos.Line, d.Pos.Column)
	}
	sb.WriteString(d.Message)

	line := d.sourceLine(d.Pos.Line)
	if line == "" {
		return sb.String()
	}
	sb.WriteString("\n")
	prefix := fmt.Sprintf("%4d | ", d.Pos.Line)
	sb.WriteString(prefix)
	sb.WriteString(line)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", len(prefix)+d.Pos.Column-1))
	if color {
		sb.WriteString("\033[1;31m")
	}
	sb.WriteString("^")
	if color {
		sb.WriteString("\033[0m")
	}
	return sb.String()
}

func (d *Diagnostic) sourceLine(n int) string {
	if d.Source == "" {
		return ""
	}
	lines := strings.Split(d.Source, "\n")
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

// FormatAll renders a batch of diagnostics (spec §4.2: parse recovery
// accumulates up to maxErrors before abort) as one host-facing report.
func FormatAll(diags []*Diagnostic, color bool) string {
	if len(diags) == 0 {
		return ""
	}
	if len(diags) == 1 {
		return diags[0].Format(color)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d error(s):\n\n", len(diags))
	for i, d := range diags {
		fmt.Fprintf(&sb, "[%d/%d] ", i+1, len(diags))
		sb.WriteString(d.Format(color))
		if i < len(diags)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
