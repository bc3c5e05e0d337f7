package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinterStatusLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, NewStyles(LightTheme()))

	p.Successf("cloned role to %s", "acme-prod")
	p.Errorf("tenant %s failed", "acme-eu")
	p.Warnf("skipping unknown tenant")
	p.Mutedf("3 scopes")

	out := buf.String()
	for _, want := range []string{"✓", "acme-prod", "❌", "acme-eu", "⚠️", "3 scopes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, NewStyles(LightTheme()))

	table := NewTable("", []string{"NAME"})
	table.AddRow("Support Agent")
	p.Table(table)

	if !strings.Contains(buf.String(), "Support Agent") {
		t.Errorf("table output missing row: %q", buf.String())
	}
}
