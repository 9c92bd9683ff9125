// Package ui provides styled terminal output for the annostore CLI, with a
// plain fallback when stdout is not a terminal (CI, pipes).
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Printer writes user-facing CLI output.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter creates a printer for out. Styling is enabled only when out is
// a terminal.
func NewPrinter(out io.Writer) *Printer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{out: out, color: color}
}

// Successf prints a success line.
func (p *Printer) Successf(format string, args ...any) {
	p.printf(successStyle, "✓ "+format, args...)
}

// Errorf prints an error line.
func (p *Printer) Errorf(format string, args ...any) {
	p.printf(errorStyle, "✗ "+format, args...)
}

// Warnf prints a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	p.printf(warnStyle, "! "+format, args...)
}

// Plainf prints an unstyled line.
func (p *Printer) Plainf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) printf(style lipgloss.Style, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if p.color {
		line = style.Render(line)
	}
	_, _ = fmt.Fprintln(p.out, line)
}
