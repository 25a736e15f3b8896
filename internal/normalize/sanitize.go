package normalize

import "strings"

// NULEscape is the visible text stored in place of a NUL byte. The target
// stores reject raw NULs in text columns.
const NULEscape = `\x00`

// Text replaces every NUL in s with NULEscape.
func Text(s string) string {
	if strings.IndexByte(s, 0) < 0 {
		return s
	}
	return strings.ReplaceAll(s, "\x00", NULEscape)
}

// TextPtr is Text for optional values; nil passes through.
func TextPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := Text(*p)
	return &s
}
