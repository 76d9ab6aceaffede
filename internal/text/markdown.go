package text

import (
	"regexp"
	"strings"
)

var (
	fenceLineRe    = regexp.MustCompile("^\\s*```[a-zA-Z0-9_-]*\\s*$")
	listEmphasisRe = regexp.MustCompile(`^(\s*)(?:[-*+]\s+)?(?:\*\*|__)?(\d+\.)(?:\*\*|__)?\s*`)
	trailingBoldRe = regexp.MustCompile(`(?:\*\*|__)\s*$`)
)

// CleanModelResponse removes markdown decoration that models commonly wrap
// around numbered lists: code fences, bullet markers before the number and
// bold markers around it.
func CleanModelResponse(response string) string {
	response = strings.ReplaceAll(response, "\r\n", "\n")
	lines := strings.Split(response, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if fenceLineRe.MatchString(line) {
			continue
		}
		if loc := listEmphasisRe.FindStringSubmatchIndex(line); loc != nil {
			num := line[loc[4]:loc[5]]
			rest := strings.TrimSpace(line[loc[1]:])
			rest = strings.TrimPrefix(rest, "**")
			rest = strings.TrimPrefix(rest, "__")
			rest = trailingBoldRe.ReplaceAllString(rest, "")
			line = num + " " + strings.TrimSpace(rest)
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
