// Package testutils provides assertion helpers for comparing lifecycle
// transcripts and event snapshots in tests.
package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT matches the methods we need from testing.T
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// TranscriptAssertOptions controls transcript normalization before diffing.
// Transcripts are line-oriented, so the defaults trim the noise YAML-embedded
// expectations tend to carry.
type TranscriptAssertOptions struct {
	TrimSpace        bool `default:"true"`
	IgnoreEmptyLines bool `default:"true"`
	EnableColors     bool `default:"false"`
}

// TranscriptOption is a functional option for configuring TranscriptAsserter
type TranscriptOption func(*TranscriptAssertOptions)

// TranscriptAsserter compares event transcripts and reports differences as a
// unified diff instead of two unreadable blobs.
type TranscriptAsserter struct {
	t       TestingT
	options TranscriptAssertOptions
}

// NewTranscriptAsserter creates an asserter with default options.
func NewTranscriptAsserter(t TestingT) *TranscriptAsserter {
	opts := TranscriptAssertOptions{}
	defaults.SetDefaults(&opts)
	return &TranscriptAsserter{t: t, options: opts}
}

// WithOptions applies functional options to the asserter.
func (ta *TranscriptAsserter) WithOptions(opts ...TranscriptOption) *TranscriptAsserter {
	for _, opt := range opts {
		opt(&ta.options)
	}
	return ta
}

// Assert compares an actual transcript against the expected one.
func (ta *TranscriptAsserter) Assert(actual, expected string) {
	ta.t.Helper()
	if diff := ta.diff(actual, expected); diff != "" {
		ta.t.Errorf("Transcript mismatch - unified diff:\n%s", diff)
	}
}

func (ta *TranscriptAsserter) diff(actual, expected string) string {
	normActual := ta.normalize(actual)
	normExpected := ta.normalize(expected)

	if normActual == normExpected {
		return ""
	}

	edits := myers.ComputeEdits("", normExpected, normActual)
	unified := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", normExpected, edits))
	return ta.colorize(unified)
}

func (ta *TranscriptAsserter) normalize(text string) string {
	if ta.options.TrimSpace {
		text = strings.TrimSpace(text)
	}

	lines := strings.Split(text, "\n")
	var result []string
	for _, line := range lines {
		if ta.options.IgnoreEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		result = append(result, strings.TrimRight(line, " \t"))
	}
	// Trailing newline keeps gotextdiff hunks well-formed.
	return strings.Join(result, "\n") + "\n"
}

func (ta *TranscriptAsserter) colorize(diff string) string {
	if !ta.options.EnableColors {
		return diff
	}

	red := color.New(color.FgRed)
	red.EnableColor()
	green := color.New(color.FgGreen)
	green.EnableColor()
	cyan := color.New(color.FgCyan)
	cyan.EnableColor()

	lines := strings.Split(diff, "\n")
	colorized := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			colorized = append(colorized, cyan.Sprint(line))
		case strings.HasPrefix(line, "-"):
			colorized = append(colorized, red.Sprint(line))
		case strings.HasPrefix(line, "+"):
			colorized = append(colorized, green.Sprint(line))
		default:
			colorized = append(colorized, line)
		}
	}
	return strings.Join(colorized, "\n")
}

// WithEnableColors sets whether to colorize diff output.
func WithEnableColors(enable bool) TranscriptOption {
	return func(opts *TranscriptAssertOptions) {
		opts.EnableColors = enable
	}
}

// WithTrimSpace sets whether surrounding whitespace is ignored.
func WithTrimSpace(trim bool) TranscriptOption {
	return func(opts *TranscriptAssertOptions) {
		opts.TrimSpace = trim
	}
}
