// Package render highlights rule payloads and diffs for terminal output.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/cellbuf"
	"github.com/muesli/termenv"
)

const (
	wrapOnCharacters = " /-"

	// DefaultStyle is the chroma style used when none is given.
	DefaultStyle = "dracula"
)

var lineNumberStyle = lipgloss.NewStyle().Faint(true)

// Renderer highlights text with chroma.
type Renderer struct {
	lexer       chroma.Lexer
	formatter   chroma.Formatter
	style       *chroma.Style
	width       int
	lineNumbers bool
}

// Opt configures a [Renderer].
type Opt func(*Renderer)

// WithLanguage selects the lexer by name, e.g. "markdown" or "diff".
// Unknown names fall back to plain text.
func WithLanguage(name string) Opt {
	return func(r *Renderer) {
		l := lexers.Get(name)
		if l == nil {
			l = lexers.Fallback
		}

		r.lexer = chroma.Coalesce(l)
	}
}

// WithStyle selects the chroma style by name.
func WithStyle(name string) Opt {
	return func(r *Renderer) {
		r.style = styles.Get(name)
	}
}

// WithProfile selects the formatter for a terminal color profile.
func WithProfile(p termenv.Profile) Opt {
	return func(r *Renderer) {
		r.formatter = formatterFor(p)
	}
}

// WithLineNumbers prefixes each line with its number.
func WithLineNumbers(v bool) Opt {
	return func(r *Renderer) {
		r.lineNumbers = v
	}
}

// WithWidth wraps lines longer than width. Zero disables wrapping.
func WithWidth(width int) Opt {
	return func(r *Renderer) {
		r.width = width
	}
}

// New creates a [Renderer] for markdown, using the color profile of stdout.
func New(opts ...Opt) *Renderer {
	r := &Renderer{
		lexer:     chroma.Coalesce(lexers.Get("markdown")),
		formatter: formatterFor(termenv.ColorProfile()),
		style:     styles.Get(DefaultStyle),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func formatterFor(p termenv.Profile) chroma.Formatter {
	name := "noop"

	switch p {
	case termenv.TrueColor:
		name = "terminal16m"
	case termenv.ANSI256:
		name = "terminal256"
	case termenv.ANSI:
		name = "terminal8"
	case termenv.Ascii:
	}

	return formatters.Get(name)
}

// Render highlights content.
func (r *Renderer) Render(content string) (string, error) {
	iterator, err := r.lexer.Tokenise(nil, content)
	if err != nil {
		return "", fmt.Errorf("lexer tokenize: %w", err)
	}

	buf := &bytes.Buffer{}

	err = r.formatter.Format(buf, r.style, iterator)
	if err != nil {
		return "", fmt.Errorf("format: %w", err)
	}

	return r.postProcess(buf.String()), nil
}

func (r *Renderer) postProcess(content string) string {
	content = strings.TrimRight(content, "\n")

	lines := strings.Split(content, "\n")

	var sb strings.Builder

	for i, line := range lines {
		if r.width > 0 {
			line = cellbuf.Wrap(line, r.width, wrapOnCharacters)
		}

		if r.lineNumbers {
			line = numbered(line, i+1)
		}

		sb.WriteString(line)
		sb.WriteRune('\n')
	}

	return sb.String()
}

func numbered(line string, n int) string {
	wrapped := strings.Split(line, "\n")
	for i, ln := range wrapped {
		prefix := fmt.Sprintf("%4d  ", n)
		if i > 0 {
			prefix = "   -  "
		}

		wrapped[i] = lineNumberStyle.Render(prefix) + ln
	}

	return strings.Join(wrapped, "\n")
}
