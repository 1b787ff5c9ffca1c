package encoder

import "strings"

// LabelSize is the width of a FAT volume label.
const LabelSize = 11

// Label is a normalized volume label, as stored in both the VBR and the root
// directory entry.
type Label [LabelSize]byte

// NormalizeLabel keeps the first 11 bytes of s, uppercases ASCII letters and pads
// with spaces. Other characters pass through unchecked.
func NormalizeLabel(s string) Label {
	var l Label
	for i := range l {
		l[i] = ' '
	}
	if len(s) > LabelSize {
		s = s[:LabelSize]
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		l[i] = c
	}
	return l
}

// String returns all 11 bytes, padding included.
func (l Label) String() string {
	return string(l[:])
}

// Trimmed is the label without its space padding.
func (l Label) Trimmed() string {
	return strings.TrimRight(string(l[:]), " ")
}
