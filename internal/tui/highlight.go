// Package tui renders kernel sources, build logs and run reports for the
// terminal.
package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

var (
	// line:column positions as printed by the OpenCL, naga and Go compilers
	positionRegex = regexp.MustCompile(`(?m)(?:^|[\s<>\w./-]:)(\d+):(\d+)`)
	ansiRegex     = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// LexerName returns the chroma lexer used for sources in lang.
func LexerName(lang driver.Language) string {
	switch lang {
	case driver.LanguageOpenCLC:
		return "c"
	case driver.LanguageGo:
		return "go"
	case driver.LanguageWGSL:
		return "rust"
	}
	return "text"
}

// HighlightSource applies syntax highlighting to kernel source.
func HighlightSource(code string, lang driver.Language) string {
	return highlightCodeBlock(code, LexerName(lang))
}

// highlightCodeBlock highlights a single code block
func highlightCodeBlock(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	// monokai reads well on dark terminals
	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf bytes.Buffer
	err = formatter.Format(&buf, style, iterator)
	if err != nil {
		return code
	}

	return strings.TrimSuffix(buf.String(), "\n")
}

// LogLines returns the source lines a build log points at, in order.
func LogLines(log string) []int {
	seen := map[int]bool{}
	for _, m := range positionRegex.FindAllStringSubmatch(log, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			seen[n] = true
		}
	}
	lines := make([]int, 0, len(seen))
	for n := range seen {
		lines = append(lines, n)
	}
	sort.Ints(lines)
	return lines
}

// FormatListing numbers the lines of code and marks the ones in marked.
// The code may already carry ANSI colors.
func FormatListing(code, title string, marked []int) string {
	marks := make(map[int]bool, len(marked))
	for _, n := range marked {
		marks[n] = true
	}

	lines := strings.Split(strings.TrimSuffix(code, "\n"), "\n")
	width := len(strconv.Itoa(len(lines)))

	var sb strings.Builder
	sb.WriteString("┌─ " + title + " ─\n")
	for i, line := range lines {
		gutter := "│"
		if marks[i+1] {
			gutter = "▶"
		}
		fmt.Fprintf(&sb, "%s %*d  %s\n", gutter, width, i+1, line)
	}
	sb.WriteString("└─\n")
	return sb.String()
}

// StripANSI removes ANSI color codes from text
func StripANSI(text string) string {
	return ansiRegex.ReplaceAllString(text, "")
}
