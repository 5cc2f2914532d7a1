package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mschirtzinger/td/internal/conflict"
	"github.com/mschirtzinger/td/internal/record"
)

// DefaultColumnWidth is the width of each side of the conflict view.
const DefaultColumnWidth = 40

var columnStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorMuted).
	Padding(0, 1)

// SideBySide renders the two sides of a conflict block as columns.
type SideBySide struct {
	Out   io.Writer
	Width int
}

var _ conflict.Renderer = (*SideBySide)(nil)

// RenderSideBySide implements conflict.Renderer.
func (s *SideBySide) RenderSideBySide(local, incoming []record.Record) error {
	_, err := fmt.Fprintln(s.Out, s.render(local, incoming))
	return err
}

func (s *SideBySide) render(local, incoming []record.Record) string {
	width := s.Width
	if width <= 0 {
		width = DefaultColumnWidth
	}
	style := columnStyle.Width(width)

	left := style.Render(column("Local", local))
	right := style.Render(column("Incoming", incoming))
	return RenderWarn(IconWarn+" Conflicting changes") + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func column(title string, records []record.Record) string {
	lines := []string{RenderHeader(title)}
	if len(records) == 0 {
		lines = append(lines, RenderMuted("(nothing)"))
	}
	for _, r := range records {
		lines = append(lines, RenderRecord(r))
	}
	return strings.Join(lines, "\n")
}

// choiceLabels are shown next to each resolver option.
var choiceLabels = map[string]string{
	conflict.KeepLocal.String():    "Keep local",
	conflict.KeepIncoming.String(): "Keep incoming",
	conflict.KeepBoth.String():     "Keep both",
}

func choiceLabel(option string) string {
	if label, ok := choiceLabels[option]; ok {
		return label
	}
	return option
}

// HuhPrompter asks with an interactive select form.
type HuhPrompter struct {
	Title string
}

var _ conflict.Prompter = (*HuhPrompter)(nil)

// PromptChoice implements conflict.Prompter. Aborting the form
// (ctrl+c, esc) ends the resolution.
func (p *HuhPrompter) PromptChoice(ctx context.Context, options []string) (string, error) {
	title := p.Title
	if title == "" {
		title = "How should this conflict be resolved?"
	}

	opts := make([]huh.Option[string], 0, len(options))
	for _, o := range options {
		opts = append(opts, huh.NewOption(choiceLabel(o), o))
	}

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(opts...).
				Value(&choice),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", conflict.ErrConflictUnresolved
		}
		return "", err
	}
	return choice, nil
}

// LinePrompter reads answers one line at a time. It accepts an option
// name or its 1-based number. Used when stdin is not a terminal.
type LinePrompter struct {
	in  *lineReader
	out io.Writer
}

var _ conflict.Prompter = (*LinePrompter)(nil)

// NewLinePrompter reads answers from in and writes the menu to out.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: newLineReader(in), out: out}
}

// PromptChoice implements conflict.Prompter. End of input ends the
// resolution.
func (p *LinePrompter) PromptChoice(ctx context.Context, options []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	for i, o := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, choiceLabel(o))
	}
	fmt.Fprint(p.out, "Choice: ")

	line, err := p.in.readLine(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: end of input", conflict.ErrConflictUnresolved)
		}
		return "", err
	}

	answer := strings.TrimSpace(line)
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], nil
	}
	return answer, nil
}

// NewPrompter picks an interactive prompter when in is a terminal.
func NewPrompter(in io.Reader, out io.Writer) conflict.Prompter {
	if f, ok := in.(*os.File); ok && IsInteractive(f) {
		return &HuhPrompter{}
	}
	return NewLinePrompter(in, out)
}
