package terminal

import (
	"regexp"
	"strings"
)

// PromptChars are the characters a runtime's ready prompt may end with.
var PromptChars = []rune{'❯', '>', '⏵', '$'}

// PromptStream matches the tail of a pane when a fresh prompt has appeared,
// used by readiness polling to avoid reacting to a partial/in-progress frame.
var PromptStream = regexp.MustCompile(`(?m)(❯❯?|⏵|\$)\s*$`)

// ProcessingIndicators are lower-cased words that indicate the runtime is
// still working on a request.
var ProcessingIndicators = []string{
	"thinking", "analyzing", "processing", "generating",
	"reading", "searching", "registering",
}

// processingIndicatorRe matches any ProcessingIndicators word, case-insensitive.
var processingIndicatorRe = regexp.MustCompile(`(?i)\b(` + strings.Join(ProcessingIndicators, "|") + `)\b`)

// PasteIndicator matches bracketed-paste start/end markers that can leak
// into captured pane text when a runtime echoes raw escape sequences.
var PasteIndicator = regexp.MustCompile(`\x1b\[20[01]~`)

// ShellModePromptPattern matches Gemini-CLI's shell-mode prompt ("! ").
var ShellModePromptPattern = regexp.MustCompile(`(?m)^!(\s|$)`)

// deliveryKeywordRe is the broader keyword set the TUI delivery-verification
// path falls back to when length/diff heuristics are
// inconclusive.
var deliveryKeywordRe = regexp.MustCompile(`(?i)\b(received|got it|on it|working on|let me|sure|okay|understood)\b`)

// IsAtPrompt is true iff the last non-empty line (after
// border-stripping) equals a single prompt char or starts with one of the
// recognized multi-char prompt prefixes.
func IsAtPrompt(pane string) bool {
	line := lastNonEmptyLine(StripTuiBorders(pane))
	if line == "" {
		return false
	}
	trimmed := strings.TrimSpace(line)
	for _, c := range PromptChars {
		if trimmed == string(c) {
			return true
		}
	}
	for _, prefix := range []string{"❯❯ ", "> ", "! "} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// IsShellModePrompt reports whether the pane's tail shows Gemini-CLI's
// shell-mode ("!") prompt.
func IsShellModePrompt(pane string) bool {
	line := lastNonEmptyLine(StripTuiBorders(pane))
	return ShellModePromptPattern.MatchString(line)
}

// HasProcessingIndicator reports whether any of the recognized
// processing-in-progress words appear in pane.
func HasProcessingIndicator(pane string) bool {
	return processingIndicatorRe.MatchString(pane)
}

// HasDeliveryKeyword reports whether pane contains one of the broader
// acknowledgement keywords used as a last-resort TUI delivery signal.
func HasDeliveryKeyword(pane string) bool {
	return deliveryKeywordRe.MatchString(pane)
}

// lastNonEmptyLine returns the final non-blank line of s, or "".
func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

// LastNonEmptyLines returns up to n trailing non-empty lines of s, in order,
// after border-stripping. Used by stuck-prompt detection, which inspects
// the last 20 non-empty pane lines.
func LastNonEmptyLines(s string, n int) []string {
	cleaned := StripTuiBorders(s)
	lines := strings.Split(cleaned, "\n")
	var nonEmpty []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonEmpty = append(nonEmpty, l)
		}
	}
	if len(nonEmpty) > n {
		nonEmpty = nonEmpty[len(nonEmpty)-n:]
	}
	return nonEmpty
}

// StuckToken derives the 40-char search token used for stuck-prompt
// detection: strip a "[CHAT:uuid]" prefix if present, then take up to the
// first 40 characters.
func StuckToken(message string) string {
	trimmed := message
	if strings.HasPrefix(trimmed, "[CHAT:") {
		if idx := strings.Index(trimmed, "]"); idx >= 0 {
			trimmed = strings.TrimSpace(trimmed[idx+1:])
		}
	}
	if len(trimmed) > 40 {
		trimmed = trimmed[:40]
	}
	return trimmed
}

// IsStuck reports whether token is still visible in the last 20 non-empty
// lines of pane.
func IsStuck(pane, token string) bool {
	if token == "" {
		return false
	}
	for _, line := range LastNonEmptyLines(pane, 20) {
		if strings.Contains(line, token) {
			return true
		}
	}
	return false
}
