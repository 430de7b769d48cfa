package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const ansiReset = "\x1b[0m"

// statusStyles is indexed by statusKind.
var statusStyles = [...]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const statusLabelWidth = 20

var titleCaser = cases.Title(language.English)

func (k statusKind) style() (label, color string) {
	if k < 0 || int(k) >= len(statusStyles) {
		k = statusInfo
	}
	s := statusStyles[k]
	return s.label, s.color
}

// renderStatusLine formats "  Label:   [KIND] message".
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag, color := kind.style()
	text := "[" + tag + "]"
	if message != "" {
		text += " " + message
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", text)
	return paint(line, color, colorize)
}

func statusFromBool(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

func printSection(w io.Writer, title string, colorize bool) {
	_, color := statusInfo.style()
	header := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	fmt.Fprintln(w, paint(header, color, colorize))
	fmt.Fprintln(w, paint(strings.Repeat("-", len(header)), color, colorize))
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

// displayLabel turns snake_case identifiers into title-cased labels.
func displayLabel(value string) string {
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}

// shouldColorize is true for terminals unless NO_COLOR is set.
func shouldColorize(writer io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
