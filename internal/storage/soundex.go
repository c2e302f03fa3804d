package storage

import "strings"

var soundexCodes = map[rune]byte{
	'b': '1', 'f': '1', 'p': '1', 'v': '1',
	'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
	'd': '3', 't': '3',
	'l': '4',
	'm': '5', 'n': '5',
	'r': '6',
}

// Soundex returns the American Soundex key of s, used for fuzzy term
// lookup. Characters outside a-z are skipped; a term without any gives "".
func Soundex(s string) string {
	var key strings.Builder
	var last byte

	for _, r := range strings.ToLower(s) {
		if r < 'a' || r > 'z' {
			continue
		}
		code := soundexCodes[r]

		if key.Len() == 0 {
			key.WriteRune(r - 'a' + 'A')
			last = code
			continue
		}

		switch {
		case code == 0:
			// h and w do not separate equal codes, vowels do.
			if r != 'h' && r != 'w' {
				last = 0
			}
		case code != last:
			key.WriteByte(code)
			last = code
		}

		if key.Len() == 4 {
			break
		}
	}

	if key.Len() == 0 {
		return ""
	}
	for key.Len() < 4 {
		key.WriteByte('0')
	}
	return key.String()
}
