package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	clrBrand  = lipgloss.Color("214")
	clrGreen  = lipgloss.Color("114")
	clrRed    = lipgloss.Color("203")
	clrYellow = lipgloss.Color("220")
	clrDim    = lipgloss.Color("245")
)

// styles renders CLI output. Every style is a no-op unless the target
// writer is a terminal and --json is off, so piped output stays plain.
type styles struct {
	enabled bool

	Dim     lipgloss.Style
	Header  lipgloss.Style
	Tool    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
}

func newStyles(w io.Writer, jsonMode bool) styles {
	if jsonMode || !isTerminalWriter(w) {
		plain := lipgloss.NewStyle()
		return styles{
			Dim: plain, Header: plain, Tool: plain,
			Warning: plain, Error: plain, Success: plain,
		}
	}
	return styles{
		enabled: true,
		Dim:     lipgloss.NewStyle().Foreground(clrDim),
		Header:  lipgloss.NewStyle().Bold(true).Foreground(clrBrand),
		Tool:    lipgloss.NewStyle().Bold(true),
		Warning: lipgloss.NewStyle().Foreground(clrYellow).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(clrRed).Bold(true),
		Success: lipgloss.NewStyle().Foreground(clrGreen),
	}
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s styles) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

func (s styles) sectionHeader(title string) string { return s.render(s.Header, title) }
func (s styles) dim(text string) string            { return s.render(s.Dim, text) }
func (s styles) tool(name string) string           { return s.render(s.Tool, name) }
func (s styles) errPrefix() string                 { return s.render(s.Error, "ERROR:") }
func (s styles) warnPrefix() string                { return s.render(s.Warning, "WARNING:") }

// indexStatus renders the built / not built column of `list`.
func (s styles) indexStatus(built bool) string {
	if built {
		return s.render(s.Success, "(built)")
	}
	return s.dim("(not built)")
}

// stat formats a labeled value like "chunks=412".
func (s styles) stat(label string, value any) string {
	return fmt.Sprintf("%s=%v", s.dim(label), value)
}
