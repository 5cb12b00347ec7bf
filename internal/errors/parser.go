// Package errors provides the structured error types of the build pipeline
// and a parser that turns external tool output into located errors.
//
// Every failure that reaches the orchestrator is a *BuildError carrying a
// Kind (filesystem, validation, tool, manifest), a stable code, the stage it
// surfaced in, and where possible the offending file and line. The parser
// understands the diagnostics printed by the sass CLI and the generic
// "file:line:col: message" shape used by most compilers.
package errors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParsedError represents a diagnostic extracted from tool output.
type ParsedError struct {
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Message  string   `json:"message"`
	RawError string   `json:"raw_error"`
	Context  []string `json:"context,omitempty"`
}

// ErrorParser parses preprocessor and bundler output into structured errors.
type ErrorParser struct {
	messagePatterns  []*regexp.Regexp
	locationPatterns []locationPattern
}

type locationPattern struct {
	regex       *regexp.Regexp
	parseFields func(matches []string) (file string, line int, column int, message string)
}

// NewErrorParser creates a new error parser
func NewErrorParser() *ErrorParser {
	return &ErrorParser{
		messagePatterns:  buildMessagePatterns(),
		locationPatterns: buildLocationPatterns(),
	}
}

// ParseError parses tool output into structured errors. A sass diagnostic
// spans several lines: the "Error: ..." message line is paired with the
// "path line:col" trailer that follows it.
func (ep *ErrorParser) ParseError(output string) []*ParsedError {
	var parsed []*ParsedError
	var pending *ParsedError

	lines := strings.Split(output, "\n")

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if msg, ok := ep.matchMessage(line); ok {
			if pending != nil {
				parsed = append(parsed, pending)
			}
			pending = &ParsedError{
				Message:  msg,
				RawError: line,
				Context:  ep.getContextLines(lines, i, 2),
			}
			continue
		}

		file, lineNum, column, msg, ok := ep.matchLocation(line)
		if !ok {
			continue
		}

		if pending != nil && pending.File == "" {
			pending.File = file
			pending.Line = lineNum
			pending.Column = column
			parsed = append(parsed, pending)
			pending = nil
			continue
		}

		parsed = append(parsed, &ParsedError{
			File:     file,
			Line:     lineNum,
			Column:   column,
			Message:  msg,
			RawError: line,
			Context:  ep.getContextLines(lines, i, 2),
		})
	}

	if pending != nil {
		parsed = append(parsed, pending)
	}

	return parsed
}

func (ep *ErrorParser) matchMessage(line string) (string, bool) {
	for _, re := range ep.messagePatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func (ep *ErrorParser) matchLocation(line string) (string, int, int, string, bool) {
	for _, pattern := range ep.locationPatterns {
		if m := pattern.regex.FindStringSubmatch(line); m != nil {
			file, lineNum, column, msg := pattern.parseFields(m)
			return file, lineNum, column, msg, true
		}
	}
	return "", 0, 0, "", false
}

func (ep *ErrorParser) getContextLines(lines []string, index int, radius int) []string {
	start := max(0, index-radius)
	end := min(len(lines), index+radius+1)

	var context []string
	for i := start; i < end; i++ {
		prefix := "  "
		if i == index {
			prefix = "→ "
		}
		context = append(context, fmt.Sprintf("%s%s", prefix, lines[i]))
	}

	return context
}

func buildMessagePatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^Error: (.+)$`),
		regexp.MustCompile(`^✘ \[ERROR\] (.+)$`),
	}
}

func buildLocationPatterns() []locationPattern {
	return []locationPattern{
		{
			// file:line:col: message
			regex: regexp.MustCompile(`^(.+?):(\d+):(\d+): (.+)$`),
			parseFields: func(matches []string) (string, int, int, string) {
				line, _ := strconv.Atoi(matches[2])
				column, _ := strconv.Atoi(matches[3])
				return matches[1], line, column, matches[4]
			},
		},
		{
			// sass trailer: "src/site.scss 3:13  root stylesheet"
			regex: regexp.MustCompile(`^(\S+\.(?:scss|sass|css)) (\d+):(\d+)\s*(.*)$`),
			parseFields: func(matches []string) (string, int, int, string) {
				line, _ := strconv.Atoi(matches[2])
				column, _ := strconv.Atoi(matches[3])
				return matches[1], line, column, strings.TrimSpace(matches[4])
			},
		},
		{
			// file:line: message
			regex: regexp.MustCompile(`^(.+?):(\d+): (.+)$`),
			parseFields: func(matches []string) (string, int, int, string) {
				line, _ := strconv.Atoi(matches[2])
				return matches[1], line, 0, matches[3]
			},
		},
	}
}

// FormatError formats a parsed error for display
func (pe *ParsedError) FormatError() string {
	var builder strings.Builder

	builder.WriteString("[ERROR]")

	if pe.File != "" {
		builder.WriteString(fmt.Sprintf(" in %s", pe.File))
		if pe.Line > 0 {
			builder.WriteString(fmt.Sprintf(":%d", pe.Line))
			if pe.Column > 0 {
				builder.WriteString(fmt.Sprintf(":%d", pe.Column))
			}
		}
	}

	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf("  %s\n", pe.Message))

	if len(pe.Context) > 0 {
		builder.WriteString("  Context:\n")
		for _, line := range pe.Context {
			builder.WriteString(fmt.Sprintf("    %s\n", line))
		}
	}

	return builder.String()
}

// ToBuildError converts the first parsed diagnostic into a located tool
// error. When nothing could be parsed the raw output is kept as the message.
func (ep *ErrorParser) ToBuildError(code, file, output string, cause error) *BuildError {
	parsed := ep.ParseError(output)
	if len(parsed) == 0 {
		msg := strings.TrimSpace(output)
		if msg == "" {
			msg = "tool reported failure"
		}
		return NewToolInvocationError(code, msg, cause).WithLocation(file, 0, 0)
	}

	first := parsed[0]
	location := first.File
	if location == "" {
		location = file
	}

	return NewToolInvocationError(code, first.Message, cause).
		WithLocation(location, first.Line, first.Column).
		WithContext("diagnostics", len(parsed))
}
