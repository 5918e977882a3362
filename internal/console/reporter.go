// Package console renders agent progress and tool results as terminal text.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/wagiedev/mcp-depscore-agent/internal/manifest"
	"github.com/wagiedev/mcp-depscore-agent/internal/mcp"
)

// Reporter writes human-readable agent output.
//
// Headings and tool names are styled when color is enabled. Tool result
// text is always written unstyled so it can be piped or compared verbatim.
type Reporter struct {
	out io.Writer

	heading lipgloss.Style
	name    lipgloss.Style
	dim     lipgloss.Style
	err     lipgloss.Style
}

// NewReporter creates a reporter writing to w.
//
// With color false the output is plain text regardless of the terminal.
// With color true the profile is detected from w and the environment, so
// redirected output still degrades to plain text.
func NewReporter(w io.Writer, color bool) *Reporter {
	var renderer *lipgloss.Renderer

	if color {
		renderer = lipgloss.NewRenderer(w)
	} else {
		renderer = lipgloss.NewRenderer(w, termenv.WithProfile(termenv.Ascii))
		renderer.SetColorProfile(termenv.Ascii)
	}

	return &Reporter{
		out:     w,
		heading: renderer.NewStyle().Bold(true),
		name:    renderer.NewStyle().Foreground(lipgloss.Color("6")),
		dim:     renderer.NewStyle().Faint(true),
		err:     renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (r *Reporter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Status prints a single progress line.
func (r *Reporter) Status(message string) {
	r.printf("%s\n", message)
}

// Tools prints the discovered tools as a numbered list.
func (r *Reporter) Tools(tools []mcp.Tool) {
	r.printf("\n%s\n\n", r.heading.Render(fmt.Sprintf("Found %d tool(s):", len(tools))))

	for i, tool := range tools {
		r.printf("%d. %s\n", i+1, r.name.Render(tool.Name))

		if tool.HasDescription && tool.Description != "" {
			r.printf("   %s %s\n", r.dim.Render("Description:"), tool.Description)
		}

		r.printf("\n")
	}
}

// Packages prints the packages about to be scored.
func (r *Reporter) Packages(packages []manifest.Package) {
	r.printf("%s\n\n", r.heading.Render(fmt.Sprintf("Found %d package(s) to check:", len(packages))))

	for i, pkg := range packages {
		r.printf("%d. %s\n", i+1, pkg.String())
	}

	r.printf("\n")
}

// Result prints a tool result under a heading.
func (r *Reporter) Result(title string, raw json.RawMessage) {
	r.printf("%s\n\n", r.heading.Render(title))
	r.RenderResult(raw)
}

// RenderResult writes the text content of a tool result, or the raw JSON
// when the result does not carry a content list.
func (r *Reporter) RenderResult(raw json.RawMessage) {
	_, _ = io.WriteString(r.out, mcp.RenderText(raw))
}

// RawResult prints a tool result on one line without interpreting it.
func (r *Reporter) RawResult(label string, raw json.RawMessage) {
	r.printf("%s %s\n", r.dim.Render(label), strings.TrimSpace(string(raw)))
}

// Error prints err followed by each wrapped cause on its own line.
func (r *Reporter) Error(err error) {
	if err == nil {
		return
	}

	r.printf("%s %v\n", r.err.Render("Error:"), err)

	for i, cause := range Causes(err) {
		r.printf("  %s %v\n", r.dim.Render(fmt.Sprintf("cause %d:", i+1)), cause)
	}
}

// Causes returns the chain of errors wrapped by err, outermost first,
// excluding err itself. Joined errors contribute each of their members.
func Causes(err error) []error {
	var causes []error

	queue := unwrap(err)
	for len(queue) > 0 {
		next := queue[0]
		queue = append(queue[1:], unwrap(next)...)

		causes = append(causes, next)
	}

	return causes
}

func unwrap(err error) []error {
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		return e.Unwrap()
	case interface{ Unwrap() error }:
		if inner := e.Unwrap(); inner != nil {
			return []error{inner}
		}
	}

	return nil
}
