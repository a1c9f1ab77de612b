package llm

import "strings"

var quotePairs = [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"‘", "’"}, {"«", "»"}}

// Unquote removes the quotes models like to wrap short answers in. Only
// matching outer pairs are removed, so quoted names inside the text survive.
func Unquote(text string) string {
	text = strings.TrimSpace(text)
	for {
		stripped := false
		for _, q := range quotePairs {
			if len(text) > len(q[0])+len(q[1]) && strings.HasPrefix(text, q[0]) && strings.HasSuffix(text, q[1]) {
				text = strings.TrimSpace(text[len(q[0]) : len(text)-len(q[1])])
				stripped = true
			}
		}
		if !stripped {
			return text
		}
	}
}
