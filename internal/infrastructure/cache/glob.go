package cache

// MatchPattern reports whether key matches a Redis-style glob pattern.
// Supported: '*', '?', '[...]' classes with ranges and '^' negation, '\' escapes.
func MatchPattern(pattern, key string) bool {
	p, k := 0, 0
	starP, starK := -1, 0
	for k < len(key) {
		if p < len(pattern) {
			switch pattern[p] {
			case '*':
				starP, starK = p, k
				p++
				continue
			case '?':
				p++
				k++
				continue
			case '[':
				if next, ok := matchClass(pattern, p, key[k]); next > 0 {
					if ok {
						p = next
						k++
						continue
					}
					break
				}
				if key[k] == '[' {
					p++
					k++
					continue
				}
			case '\\':
				if p+1 < len(pattern) && pattern[p+1] == key[k] {
					p += 2
					k++
					continue
				}
			default:
				if pattern[p] == key[k] {
					p++
					k++
					continue
				}
			}
		}
		if starP < 0 {
			return false
		}
		starK++
		p, k = starP+1, starK
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// matchClass evaluates the class starting at pattern[start] == '['.
// It returns the index after the closing ']' (0 when unterminated).
func matchClass(pattern string, start int, c byte) (int, bool) {
	i := start + 1
	negate := false
	if i < len(pattern) && pattern[i] == '^' {
		negate = true
		i++
	}
	matched := false
	first := true
	for i < len(pattern) && (first || pattern[i] != ']') {
		first = false
		lo := pattern[i]
		if lo == '\\' && i+1 < len(pattern) {
			i++
			lo = pattern[i]
		}
		hi := lo
		if i+2 < len(pattern) && pattern[i+1] == '-' && pattern[i+2] != ']' {
			hi = pattern[i+2]
			i += 2
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		if c >= lo && c <= hi {
			matched = true
		}
		i++
	}
	if i >= len(pattern) {
		return 0, false
	}
	return i + 1, matched != negate
}
