package scraper

import (
	"net/url"
	"strconv"
	"strings"
)

const searchBaseURL = "https://www.ebay.com/sch/i.html"

// BuildSearchURL constructs one search-results page URL for a query, a
// marketplace category id and a 1-based page number.
func BuildSearchURL(query, categoryID string, page int) string {
	values := url.Values{}
	values.Set("_nkw", query)
	values.Set("_sacat", categoryID)
	if page < 1 {
		page = 1
	}
	values.Set("_pgn", strconv.Itoa(page))
	return searchBaseURL + "?" + values.Encode()
}

// NormalizeListingURL strips query and fragment from a listing URL so the
// same item always dedups to the same key. Unparseable input falls back to
// trimming at the first '?'.
func NormalizeListingURL(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.SplitN(strings.TrimSpace(raw), "?", 2)[0]
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}
