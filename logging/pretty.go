package logging

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// PrettyLogger writes short notices for the acting participant: what a
// command changed, and why a change was refused or rolled back. Unlike the
// structured loggers it is never written to files.
type PrettyLogger struct {
	w      io.Writer
	styles PrettyStyles
}

type PrettyStyles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Domain  lipgloss.Style
}

func DefaultPrettyStyles() PrettyStyles {
	return PrettyStyles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		Domain:  lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	}
}

// NewPrettyLogger writes to the global output.
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{w: GetGlobalOutput(), styles: DefaultPrettyStyles()}
}

// PrettyFrom writes to the notice writer attached to ctx.
func PrettyFrom(ctx context.Context) *PrettyLogger {
	return NewPrettyLogger().WithWriter(GetWriter(ctx))
}

func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.w = w
	return p
}

func (p *PrettyLogger) Success(message string) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Success.Render("✓"), p.styles.Success.Render(message))
}

func (p *PrettyLogger) Info(message string) {
	fmt.Fprintln(p.w, p.styles.Info.Render(message))
}

func (p *PrettyLogger) Warn(message string) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Warning.Render("⚠"), p.styles.Warning.Render(message))
}

func (p *PrettyLogger) Error(message string, err error) {
	fmt.Fprintf(p.w, "%s %s", p.styles.Error.Render("✗"), p.styles.Error.Render(message))
	if err != nil {
		fmt.Fprintf(p.w, ": %s", p.styles.Error.Render(err.Error()))
	}
	fmt.Fprintln(p.w)
}

// Change reports a broadcast the participant made.
func (p *PrettyLogger) Change(domain, action, detail string) {
	line := fmt.Sprintf("%s %s %s", p.styles.Success.Render("✓"), p.styles.Domain.Render(domain), p.styles.Info.Render(action))
	if detail != "" {
		line += " " + detail
	}
	fmt.Fprintln(p.w, line)
}

func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.w, "%s: %s\n", p.styles.Key.Render(key), p.styles.Value.Render(fmt.Sprint(value)))
}
