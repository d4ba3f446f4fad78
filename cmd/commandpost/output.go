package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/response"
)

const (
	colorAuto   = "auto"
	colorAlways = "always"
	colorNever  = "never"

	urlColumnWidth = 60
)

// printer renders responses and listings. Colour follows the output's
// terminal profile unless forced.
type printer struct {
	out      io.Writer
	errOut   io.Writer
	renderer *lipgloss.Renderer
	color    bool
	style    string
}

func (a *app) printer(mode string) (printer, error) {
	r := lipgloss.NewRenderer(a.out)
	p := printer{out: a.out, errOut: a.errOut, renderer: r, style: a.settings.HighlightStyle}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", colorAuto:
		p.color = !termenv.EnvNoColor() && r.ColorProfile() != termenv.Ascii
	case colorAlways:
		p.color = true
		r.SetColorProfile(termenv.ANSI256)
	case colorNever:
		r.SetColorProfile(termenv.Ascii)
	default:
		return printer{}, errdef.New(errdef.CodeValidation, "--color must be auto, always or never")
	}
	return p, nil
}

type responseView struct {
	includeHeaders bool
	raw            bool
}

// response writes the status line to stderr and the body to stdout so the
// body can be piped.
func (p printer) response(resp response.Descriptor, view responseView) error {
	fmt.Fprintln(p.errOut, p.status(resp))

	if view.includeHeaders {
		keys := make([]string, 0, len(resp.Headers))
		for k := range resp.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(p.out, "%s: %s\n", k, resp.Headers[k])
		}
		fmt.Fprintln(p.out)
	}

	text := resp.Body
	if !view.raw {
		text = response.Format(resp)
	}
	if text == "" {
		return nil
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if p.color {
		if err := response.Highlight(p.out, text, response.Lexer(resp), p.style); err == nil {
			return nil
		}
	}
	_, err := io.WriteString(p.out, text)
	return err
}

func (p printer) status(resp response.Descriptor) string {
	line := fmt.Sprintf("HTTP %d (%d ms, %d B)", resp.StatusCode, resp.ElapsedMs, resp.SizeBytes)
	return p.renderer.NewStyle().Bold(true).Foreground(statusColor(resp.StatusCode)).Render(line)
}

func statusColor(code int) lipgloss.Color {
	switch {
	case code >= 500:
		return lipgloss.Color("9")
	case code >= 400:
		return lipgloss.Color("11")
	case code >= 300:
		return lipgloss.Color("14")
	default:
		return lipgloss.Color("10")
	}
}

func (p printer) table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.out, t.String())
}

func (p printer) notice(format string, args ...any) {
	fmt.Fprintf(p.errOut, "notice: "+format+"\n", args...)
}

func truncateURL(u string) string {
	return ansi.Truncate(u, urlColumnWidth, "…")
}
