package ui

import (
	"fmt"
	"io"
)

// Printer writes styled user-facing output to a single writer. Commands
// and the clone engine share one instance so tests can capture output
// without touching os.Stdout.
type Printer struct {
	out    io.Writer
	styles Styles
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer, styles Styles) *Printer {
	return &Printer{out: out, styles: styles}
}

// Styles returns the printer's style set.
func (p *Printer) Styles() Styles {
	return p.styles
}

// Printf writes unstyled formatted output.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Println writes an unstyled line.
func (p *Printer) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}

// Titlef writes a bold title line.
func (p *Printer) Titlef(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.Title.Render(fmt.Sprintf(format, args...)))
}

// Successf writes a line marked with a check.
func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.Success.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// Errorf writes a line marked as failed.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.out, "❌ "+p.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// Warnf writes a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintln(p.out, "⚠️  "+p.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Infof writes an informational line.
func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.Info.Render(fmt.Sprintf(format, args...)))
}

// Mutedf writes a de-emphasized line.
func (p *Printer) Mutedf(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.Muted.Render(fmt.Sprintf(format, args...)))
}

// Table renders a table.
func (p *Printer) Table(t *Table) {
	fmt.Fprint(p.out, t.View(p.styles))
}
