package parser

import "testing"

func TestPlainText_RichContents(t *testing.T) {
	rc := `<?xml version="1.0"?><body xmlns="http://www.w3.org/1999/xhtml" xmlns:xfa="http://www.xfa.org/schema/xfa-data/1.0/">` +
		`<p dir="ltr"><span style="font-weight:bold">Check</span> this   figure</p><p>Second line</p></body>`
	got := PlainText(rc)
	want := "Check this figure\nSecond line"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPlainText_LineBreaks(t *testing.T) {
	got := PlainText("<body>one<br/>two</body>")
	if got != "one\ntwo" {
		t.Errorf("expected %q, got %q", "one\ntwo", got)
	}
}

func TestPlainText_SkipsStyle(t *testing.T) {
	got := PlainText("<html><head><style>p{color:red}</style></head><body><p>visible</p></body></html>")
	if got != "visible" {
		t.Errorf("expected %q, got %q", "visible", got)
	}
}

func TestPlainText_PlainInput(t *testing.T) {
	if got := PlainText("  just text  "); got != "just text" {
		t.Errorf("expected %q, got %q", "just text", got)
	}
	if got := PlainText(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
