// Package terminal provides pure, side-effect-free cleanup functions over
// raw pane text: ANSI/CSI/OSC stripping, carriage-return folding, TUI
// box-drawing border removal, and whitespace normalization.
// Every function here is total and idempotent on its own output.
package terminal

import "strings"

// StripAnsi removes SGR/cursor/CSI sequences and OSC-terminated-by-BEL
// sequences from s. Cursor-forward (ESC[nC) becomes n spaces (capped);
// cursor-down (ESC[nB) becomes n newlines (capped). Orphan CSI fragments
// (a digit-prefixed run ending in one of the recognized final bytes, missing
// its leading ESC) are also removed, since partial PTY reads can split a
// sequence across chunks and leave a headless fragment behind.
func StripAnsi(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == 0x1B && i+1 < len(runes) && runes[i+1] == '[':
			j, count, final := readCSI(runes, i+2)
			switch final {
			case 'C':
				b.WriteString(strings.Repeat(" ", capRepeat(count)))
			case 'B':
				b.WriteString(strings.Repeat("\n", capRepeat(count)))
			default:
				// all other CSI sequences (SGR color, cursor position, erase, etc.) are dropped
			}
			i = j
		case r == 0x1B && i+1 < len(runes) && runes[i+1] == ']':
			// OSC sequence, terminated by BEL (0x07) or ST (ESC \).
			j := i + 2
			for j < len(runes) && runes[j] != 0x07 {
				if runes[j] == 0x1B && j+1 < len(runes) && runes[j+1] == '\\' {
					j += 2
					goto oscDone
				}
				j++
			}
			if j < len(runes) {
				j++ // consume BEL
			}
		oscDone:
			i = j
		case r == 0x1B:
			// Lone escape or unrecognized two-char sequence; drop just the ESC.
			i++
		default:
			b.WriteRune(r)
			i++
		}
	}
	return stripOrphanCSI(b.String())
}

// readCSI scans a CSI parameter+final-byte sequence starting at idx (just
// past "ESC ["). Returns the index past the sequence, the numeric parameter
// (1 if absent, the ANSI default), and the final byte.
func readCSI(runes []rune, idx int) (next int, param int, final rune) {
	start := idx
	for idx < len(runes) && runes[idx] >= '0' && runes[idx] <= '9' {
		idx++
	}
	numStr := string(runes[start:idx])
	if idx < len(runes) {
		final = runes[idx]
		idx++
	}
	if numStr == "" {
		param = 1
	} else {
		for _, c := range numStr {
			param = param*10 + int(c-'0')
		}
	}
	return idx, param, final
}

func capRepeat(n int) int {
	if n < 0 {
		return 0
	}
	if n > 500 {
		return 500
	}
	return n
}

// orphanCSIFinals are the final bytes recognized for a headless CSI fragment
// (digit-prefixed, no leading ESC) left behind by a split PTY read.
const orphanCSIFinals = "mABKJHf"

// stripOrphanCSI removes "[<digits><final>" fragments where final is one of
// orphanCSIFinals and the fragment isn't preceded by an ESC (those were
// already consumed by StripAnsi's main loop).
func stripOrphanCSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); {
		if runes[i] == '[' {
			j := i + 1
			for j < len(runes) && runes[j] >= '0' && runes[j] <= '9' {
				j++
			}
			if j > i+1 && j < len(runes) && strings.ContainsRune(orphanCSIFinals, runes[j]) {
				i = j + 1
				continue
			}
		}
		b.WriteRune(runes[i])
		i++
	}
	return b.String()
}

// FoldCarriageReturns models terminal overwrite semantics: within each
// logical (newline-delimited) line, after a \r only the last non-empty
// segment survives.
func FoldCarriageReturns(s string) string {
	lines := strings.Split(s, "\n")
	for li, line := range lines {
		if !strings.Contains(line, "\r") {
			continue
		}
		segs := strings.Split(line, "\r")
		result := ""
		for _, seg := range segs {
			if seg != "" {
				result = seg
			}
		}
		lines[li] = result
	}
	return strings.Join(lines, "\n")
}
