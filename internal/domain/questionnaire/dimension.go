package questionnaire

import "strings"

// Dimension returns the substring of key before the first ".".
// A key with no "." has no dimension. The prefix is not normalised,
// so " 1.2" yields " 1" and ".2" yields "".
func Dimension(key string) (string, bool) {
	i := strings.IndexByte(key, '.')
	if i < 0 {
		return "", false
	}
	return key[:i], true
}
