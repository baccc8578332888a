package github

import (
	"net/url"
	"strconv"
	"strings"
)

// ParseLastPage extracts the rel="last" page number from a Link header.
// Returns 1 when the header is absent or carries no last-page hint; the
// caller's empty-page short-circuit covers both cases.
func ParseLastPage(linkHeader string) int {
	if linkHeader == "" {
		return 1
	}

	lastPage := 1
	for _, link := range strings.Split(linkHeader, ",") {
		parts := strings.Split(link, ";")
		if len(parts) < 2 {
			continue
		}
		urlPart := strings.Trim(strings.TrimSpace(parts[0]), "<>")
		relPart := strings.TrimSpace(parts[1])
		if relPart != `rel="last"` {
			continue
		}
		parsed, err := url.Parse(urlPart)
		if err != nil {
			continue
		}
		if pageVal := parsed.Query().Get("page"); pageVal != "" {
			if n, err := strconv.Atoi(pageVal); err == nil && n > 0 {
				lastPage = n
			}
		}
	}
	return lastPage
}
