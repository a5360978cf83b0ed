package policy

import "strings"

// match reports whether r matches fullMethod and how many characters it
// covered; longer matches of the same kind win.
func (r rule) match(fullMethod string) (bool, int) {
	switch r.kind {
	case kindExact:
		return fullMethod == r.pattern, len(r.pattern)
	case kindPrefix:
		return strings.HasPrefix(fullMethod, r.pattern), len(r.pattern)
	case kindRegex:
		if loc := r.re.FindStringIndex(fullMethod); loc != nil {
			return true, loc[1] - loc[0]
		}
	}
	return false, 0
}
