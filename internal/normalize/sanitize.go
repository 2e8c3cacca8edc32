package normalize

import "bytes"

var nonFinite = [][]byte{[]byte("-Infinity"), []byte("Infinity"), []byte("NaN")}

// Sanitize rewrites the NaN, Infinity and -Infinity tokens that Python's json
// encoder emits into null. Occurrences inside string literals are left alone.
// changed reports whether anything was rewritten.
func Sanitize(raw []byte) (out []byte, changed bool) {
	var buf bytes.Buffer
	inString, escaped := false, false
	last := 0

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}
		for _, tok := range nonFinite {
			if bytes.HasPrefix(raw[i:], tok) {
				buf.Write(raw[last:i])
				buf.WriteString("null")
				i += len(tok) - 1
				last = i + 1
				changed = true
				break
			}
		}
	}
	if !changed {
		return raw, false
	}
	buf.Write(raw[last:])
	return buf.Bytes(), true
}
