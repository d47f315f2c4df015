package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/micromdm/nanoprobe/mode"

	"github.com/charmbracelet/lipgloss"
)

// Dracula palette.
const (
	colorForeground = "#f8f8f2"
	colorComment    = "#6272a4"
	colorCyan       = "#8be9fd"
	colorGreen      = "#50fa7b"
	colorOrange     = "#ffb86c"
	colorPink       = "#ff79c6"
	colorRed        = "#ff5555"
	colorYellow     = "#f1fa8c"
)

type styles struct {
	title, section, label, ok, fail, hint, warn, token lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().
			Padding(0, 2).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color(colorCyan)).
			Foreground(lipgloss.Color(colorForeground)).
			Bold(true),
		section: r.NewStyle().
			Foreground(lipgloss.Color(colorYellow)).
			Bold(true),
		label: r.NewStyle().
			Foreground(lipgloss.Color(colorPink)),
		ok: r.NewStyle().
			Foreground(lipgloss.Color(colorGreen)),
		fail: r.NewStyle().
			Foreground(lipgloss.Color(colorRed)).
			Bold(true),
		hint: r.NewStyle().
			Foreground(lipgloss.Color(colorComment)),
		warn: r.NewStyle().
			Foreground(lipgloss.Color(colorOrange)),
		token: r.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color(colorGreen)).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorPink)),
	}
}

// Console is the operator's line-oriented terminal.
// Prompts block until a full line is entered.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	styles styles
}

// NewConsole creates a console reading lines from in and writing to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:     bufio.NewReader(in),
		out:    out,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

func (c *Console) Println(a ...interface{}) {
	fmt.Fprintln(c.out, a...)
}

func (c *Console) Printf(format string, a ...interface{}) {
	fmt.Fprintf(c.out, format, a...)
}

func (c *Console) Title(s string) {
	c.Println(c.styles.title.Render(s))
}

func (c *Console) Section(s string) {
	c.Println()
	c.Println(c.styles.section.Render(s))
	c.Println(c.styles.hint.Render(strings.Repeat("-", 40)))
}

func (c *Console) Hint(s string) {
	c.Println(c.styles.hint.Render(s))
}

func (c *Console) Warn(s string) {
	c.Println(c.styles.warn.Render(s))
}

func (c *Console) Success(s string) {
	c.Println(c.styles.ok.Render(s))
}

func (c *Console) Error(s string) {
	c.Println(c.styles.fail.Render(s))
}

// Item prints one attribute line with a resolved/unresolved mark.
func (c *Console) Item(ok bool, label, value string) {
	mark := c.styles.ok.Render("✓")
	if !ok {
		mark = c.styles.fail.Render("✗")
	}
	c.Printf("%s %s: %s\n", mark, c.styles.label.Render(fmt.Sprintf("%-18s", label)), value)
}

// Prompt prints label and reads one trimmed line. It returns io.EOF once
// input is exhausted.
func (c *Console) Prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	line, err := c.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a question that accepts want (case-insensitively) as the
// only affirmative answer.
func (c *Console) Confirm(question, want string) (bool, error) {
	answer, err := c.Prompt(question)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, want), nil
}

// Number prompts until the operator enters an integer in [1, max].
func (c *Console) Number(label string, max int) (int, error) {
	for {
		answer, err := c.Prompt(label)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= max {
			return n, nil
		}
		c.Error(fmt.Sprintf("Please enter a number from 1 to %d.", max))
	}
}

// Required prompts until check accepts a non-empty answer. An empty answer
// takes def when def is not empty.
func (c *Console) Required(label, def string, check func(string) error) (string, error) {
	if def != "" {
		label = fmt.Sprintf("%s[%s] ", label, def)
	}
	for {
		answer, err := c.Prompt(label)
		if err != nil {
			return "", err
		}
		if answer == "" {
			answer = def
		}
		if answer == "" {
			c.Error("This field is required.")
			continue
		}
		if check != nil {
			if err = check(answer); err != nil {
				c.Error(err.Error())
				continue
			}
		}
		return answer, nil
	}
}

// Choose implements mode.Chooser. It lists candidates and blocks until
// the operator picks one.
func (c *Console) Choose(_ context.Context, candidates []mode.Mode) (mode.Mode, error) {
	c.Warn("The device answers in more than one mode. Which one is current?")
	for i, m := range candidates {
		c.Printf("%d. %s\n", i+1, m.Label())
	}
	n, err := c.Number(fmt.Sprintf("Choose (1-%d): ", len(candidates)), len(candidates))
	if err != nil {
		return mode.Unreachable, err
	}
	return candidates[n-1], nil
}

// NetworkAddress implements mode.Addresser.
func (c *Console) NetworkAddress(context.Context) (string, error) {
	c.Warn("No device found over USB.")
	return c.Prompt("Device IP address for a network connection (Enter to skip): ")
}
