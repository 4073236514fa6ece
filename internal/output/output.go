// Package output renders search responses, extracted blocks and errors
// for the command line, as styled text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Aman-CERP/codegrip/internal/document"
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/extract"
	"github.com/Aman-CERP/codegrip/internal/search"
)

// Format selects how results are written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	format Format
	styles Styles
}

// New creates a Writer. Colors are used only for text written to a
// terminal without NO_COLOR set.
func New(out io.Writer, format Format) *Writer {
	if format == "" {
		format = FormatText
	}
	color := format == FormatText && IsTTY(out) && !DetectNoColor()
	return &Writer{out: out, format: format, styles: GetStyles(!color)}
}

// JSON reports whether the writer emits JSON.
func (w *Writer) JSON() bool { return w.format == FormatJSON }

// Response writes a Search or Query response.
func (w *Writer) Response(resp *search.Response) error {
	if w.JSON() {
		return w.encode(resp)
	}

	for i, r := range resp.Records {
		if i > 0 && r.Snippet != "" {
			w.println("")
		}
		w.println(w.header(r.Path, r.Range.StartLine, r.Range.EndLine, r.Kind, r.Score, r.Symbol, r.Bindings))
		if r.Snippet != "" {
			w.code(r.Snippet, r.Range.StartLine)
		}
	}

	for _, d := range resp.Diagnostics {
		w.println(w.styles.Warning.Render(fmt.Sprintf("skipped %s: %s", d.Path, d.Message)))
	}

	summary := fmt.Sprintf("%d results, %d/%d files, %d tokens", len(resp.Records), resp.FilesMatched, resp.FilesScanned, resp.TokensUsed)
	if resp.Truncated {
		summary += fmt.Sprintf(", truncated (%d dropped)", resp.Dropped)
	}
	if resp.Cancelled {
		summary += ", cancelled"
	}
	w.println("")
	w.println(w.styles.Summary.Render(summary))
	return nil
}

// Block writes an extracted block.
func (w *Writer) Block(b *document.ExtractedBlock) error {
	if w.JSON() {
		return w.encode(b)
	}
	header := w.styles.Path.Render(b.Path) + w.styles.Lines.Render(fmt.Sprintf(":%d-%d", b.StartLine, b.EndLine))
	kind := string(b.Kind)
	if b.Symbol != "" {
		kind += " " + b.Symbol
	}
	if b.Fallback {
		kind += " (line window)"
	}
	w.println(header + " " + w.styles.Kind.Render(kind))
	w.code(b.Source, b.StartLine)
	return nil
}

// Symbols writes the symbol outline of one file.
func (w *Writer) Symbols(path string, symbols []extract.Symbol) error {
	if w.JSON() {
		return w.encode(struct {
			Path    string           `json:"path"`
			Symbols []extract.Symbol `json:"symbols"`
		}{path, symbols})
	}
	w.println(w.styles.Path.Render(path))
	for _, s := range symbols {
		lines := w.styles.Lines.Render(fmt.Sprintf("%5d-%-5d", s.StartLine, s.EndLine))
		w.println(fmt.Sprintf("  %s %s %s", lines, w.styles.Kind.Render(fmt.Sprintf("%-10s", s.Kind)), s.Qualified))
	}
	return nil
}

// Error writes err with its suggestion. JSON output carries the structured form.
func (w *Writer) Error(err error, debug bool) {
	if w.JSON() {
		if data, jerr := cgerrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(w.out, string(data))
			return
		}
	}
	w.println(w.styles.Error.Render(cgerrors.FormatForUser(err, debug)))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.println(w.styles.Success.Render(msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.println(w.styles.Warning.Render(msg))
}

// Value writes v as JSON, or with fmt's %v in text mode.
func (w *Writer) Value(v any) error {
	if w.JSON() {
		return w.encode(v)
	}
	w.println(fmt.Sprint(v))
	return nil
}

func (w *Writer) header(path string, start, end int, kind document.MatchKind, score float64, symbol string, bindings map[string]string) string {
	var b strings.Builder
	b.WriteString(w.styles.Path.Render(path))
	b.WriteString(w.styles.Lines.Render(fmt.Sprintf(":%d-%d", start, end)))
	if score > 0 {
		b.WriteString(" " + w.styles.Score.Render(fmt.Sprintf("%.2f", score)))
	}
	if kind == document.KindStructural || symbol != "" {
		label := string(kind)
		if symbol != "" {
			label = symbol
		}
		b.WriteString(" " + w.styles.Kind.Render(label))
	}
	if len(bindings) > 0 {
		names := make([]string, 0, len(bindings))
		for name := range bindings {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString(" " + w.styles.Binding.Render("$"+name+"="+firstLine(bindings[name])))
		}
	}
	return b.String()
}

// code prints source with a line number gutter.
func (w *Writer) code(src string, firstLineNo int) {
	lines := strings.Split(strings.TrimRight(src, "\n"), "\n")
	width := len(fmt.Sprint(firstLineNo + len(lines) - 1))
	for i, line := range lines {
		gutter := w.styles.Gutter.Render(fmt.Sprintf("%*d │", width, firstLineNo+i))
		_, _ = fmt.Fprintf(w.out, "  %s %s\n", gutter, line)
	}
}

func (w *Writer) println(s string) {
	_, _ = fmt.Fprintln(w.out, s)
}

func (w *Writer) encode(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + "…"
	}
	return s
}
