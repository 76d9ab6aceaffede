package text

import (
	"regexp"
	"strings"
)

var (
	numberedLineRe   = regexp.MustCompile(`^\d+\.\s*.+$`)
	numberedPrefixRe = regexp.MustCompile(`^\d+\.\s*`)
)

// ParseNumberedList extracts at most limit items from lines shaped like
// "1. item", in order, with the numeric prefix removed. Lines that do not
// match are ignored.
func ParseNumberedList(response string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	var items []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !numberedLineRe.MatchString(line) {
			continue
		}
		item := strings.TrimSpace(numberedPrefixRe.ReplaceAllString(line, ""))
		if item == "" {
			continue
		}
		items = append(items, item)
		if len(items) == limit {
			break
		}
	}
	return items
}
