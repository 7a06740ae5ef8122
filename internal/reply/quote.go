package reply

import "strings"

// Unwrap removes an inline quoted block from a reply body. When a run of
// quoted lines sits between unquoted text, the text above and below it is
// joined with a newline. A body that is entirely quoted is returned with one
// quote level removed. Anything else is returned unchanged.
func Unwrap(body string) string {
	lines := strings.Split(body, "\n")

	start := -1
	for i, l := range lines {
		if isQuoted(l) {
			start = i
			break
		}
	}
	if start < 0 {
		return body
	}

	end := start
	for j := start + 1; j < len(lines); j++ {
		if isQuoted(lines[j]) {
			end = j
			continue
		}
		if strings.TrimSpace(lines[j]) != "" {
			break
		}
	}

	top := strings.TrimSpace(strings.Join(lines[:start], "\n"))
	bottom := strings.TrimSpace(strings.Join(lines[end+1:], "\n"))
	if top == "" && bottom == "" {
		for i, l := range lines {
			lines[i] = dequote(l, 1)
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}
	if bottom == "" {
		return top
	}
	if top == "" {
		return bottom
	}
	return top + "\n" + bottom
}

func isQuoted(s string) bool {
	return strings.HasPrefix(strings.TrimLeft(s, " \t"), ">")
}
