package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"

	"ember/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	noteColor    = color.New(color.Faint)
)

// Renderer writes diagnostics to a terminal or plain writer.
type Renderer struct {
	Files    *source.FileSet
	Color    bool
	MaxWidth int // 0 means no truncation
}

// Render writes every diagnostic in the bag, one per line, with notes
// indented underneath.
func (r *Renderer) Render(w io.Writer, bag *Bag) {
	if bag == nil {
		return
	}
	for _, d := range bag.Items() {
		r.renderOne(w, d)
	}
}

func (r *Renderer) renderOne(w io.Writer, d Diagnostic) {
	head := fmt.Sprintf("%s[%s]", strings.ToLower(d.Severity.String()), d.Code)
	if r.Color {
		switch d.Severity {
		case SevError:
			head = errorColor.Sprint(head)
		case SevWarning:
			head = warningColor.Sprint(head)
		default:
			head = infoColor.Sprint(head)
		}
	}
	loc := r.location(d.Primary)
	line := head + " " + r.clip(d.Message)
	if loc != "" {
		line += " (" + loc + ")"
	}
	fmt.Fprintln(w, line)
	for _, n := range d.Notes {
		note := "  note: " + r.clip(n.Msg)
		if r.Color {
			note = noteColor.Sprint(note)
		}
		fmt.Fprintln(w, note)
	}
}

func (r *Renderer) location(s source.Span) string {
	if s.File == source.NoFileID {
		return ""
	}
	path := ""
	if r.Files != nil {
		path = r.Files.Path(s.File)
	}
	if path == "" {
		path = fmt.Sprintf("file#%d", s.File)
	}
	return fmt.Sprintf("%s:%d-%d", path, s.Start, s.End)
}

// clip truncates a message to MaxWidth display cells. Messages are
// normalized to NFC first so width measurement sees composed runes.
func (r *Renderer) clip(msg string) string {
	if r.MaxWidth <= 0 {
		return msg
	}
	msg = norm.NFC.String(msg)
	if runewidth.StringWidth(msg) <= r.MaxWidth {
		return msg
	}
	return runewidth.Truncate(msg, r.MaxWidth, "…")
}
