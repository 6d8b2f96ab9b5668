package terminal

import "strings"

// boxDrawingChars are the Unicode box-drawing / rule characters TUIs use to
// frame panels. These are stripped from line edges by StripTuiBorders.
const boxDrawingChars = "│┃║|─━═┌┐└┘├┤┬┴┼╭╮╰╯"

// StripTuiBorders removes leading/trailing box-drawing characters from each
// line, drops lines that are pure decoration (entirely border characters or
// whitespace), and preserves plain "---" separators (which some runtimes use
// as meaningful content dividers, not decoration).
func StripTuiBorders(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			out = append(out, "")
			continue
		}
		if isDashSeparator(trimmed) {
			out = append(out, trimmed)
			continue
		}
		if isPureDecoration(trimmed) {
			continue
		}
		out = append(out, strings.Trim(line, boxDrawingChars+" \t"))
	}
	return strings.Join(out, "\n")
}

// isDashSeparator reports whether s is composed entirely of ASCII hyphens
// (a meaningful "---" divider, distinct from box-drawing decoration).
func isDashSeparator(s string) bool {
	if len(s) < 2 {
		return false
	}
	for _, r := range s {
		if r != '-' {
			return false
		}
	}
	return true
}

// isPureDecoration reports whether s contains only box-drawing characters
// and whitespace (a decorative border line with no content).
func isPureDecoration(s string) bool {
	hasBorderChar := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			continue
		}
		if strings.ContainsRune(boxDrawingChars, r) {
			hasBorderChar = true
			continue
		}
		return false
	}
	return hasBorderChar
}

// NormalizeWhitespace collapses runs of interior spaces to a single space
// and caps consecutive blank lines at two.
func NormalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blankRun := 0
	for _, line := range lines {
		collapsed := collapseSpaces(line)
		if strings.TrimSpace(collapsed) == "" {
			blankRun++
			if blankRun > 2 {
				continue
			}
			out = append(out, "")
			continue
		}
		blankRun = 0
		out = append(out, collapsed)
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}
