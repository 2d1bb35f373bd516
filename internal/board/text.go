package board

import "strings"

const bulletPrefix = "• "

// WithBullets renders stored plain text in its bulleted display form. The
// glyphs live only in the edit buffer, never in the persisted text.
func WithBullets(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = bulletPrefix + line
	}
	return strings.Join(lines, "\n")
}

// StripBullets undoes WithBullets before the buffer is saved.
func StripBullets(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, bulletPrefix) {
			lines[i] = line[len(bulletPrefix):]
		} else if strings.HasPrefix(line, "•") {
			lines[i] = line[len("•"):]
		}
	}
	return strings.Join(lines, "\n")
}

// DisplayText is what the edit buffer is seeded with for a given list style.
func DisplayText(text, listStyle string) string {
	if listStyle == "bullet" {
		return WithBullets(text)
	}
	return text
}
