package pdf

import (
	"regexp"
	"strings"
)

var (
	reHorizontalSpace = regexp.MustCompile(`[ \t]+`)
	reExcessNewlines  = regexp.MustCompile(`\n{3,}`)
	reTrailingSpace   = regexp.MustCompile(`[ \t]+\n`)
	reControl         = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	// Page-number artifacts: "- 1 -" lines, "3/10" pagination, "ページ 2"
	// markers and standalone "Page 4 of 9" lines.
	reDashedPageLine = regexp.MustCompile(`(?m)^[- \t]*\d+[- \t]*$`)
	rePageFraction   = regexp.MustCompile(`\d+\s*/\s*\d+`)
	rePageJA         = regexp.MustCompile(`ページ\s*\d+`)
	rePageLineEN     = regexp.MustCompile(`(?im)^[ \t]*page[ \t]+\d+([ \t]+of[ \t]+\d+)?[ \t]*$`)
)

// Clean normalises text extracted from a PDF: whitespace runs are
// collapsed, control characters and page-number artifacts are removed and
// the result is trimmed. Clean is idempotent.
func Clean(text string) string {
	// Removing an artifact can leave a new whitespace run behind, so passes
	// repeat until nothing changes. A pass never adds runes.
	for {
		next := cleanPass(text)
		if next == text {
			return text
		}
		text = next
	}
}

// cleanPass applies the normalisation steps once, in order.
func cleanPass(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = reHorizontalSpace.ReplaceAllString(s, " ")
	s = reExcessNewlines.ReplaceAllString(s, "\n\n")
	s = reTrailingSpace.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "　", " ")
	s = reControl.ReplaceAllString(s, "")

	s = reDashedPageLine.ReplaceAllString(s, "")
	s = rePageFraction.ReplaceAllString(s, "")
	s = rePageJA.ReplaceAllString(s, "")
	s = rePageLineEN.ReplaceAllString(s, "")

	return strings.TrimSpace(s)
}
