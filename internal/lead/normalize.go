package lead

import (
	"net/url"
	"regexp"
	"strings"
)

// UntitledName is the fallback name when no domain can be derived.
const UntitledName = "Untitled lead"

var (
	// schemeRegex matches an explicit http or https scheme
	schemeRegex = regexp.MustCompile(`(?i)^https?://`)

	// wwwRegex matches a leading "www." label
	wwwRegex = regexp.MustCompile(`^www\.`)
)

// NormalizeURL trims s and prefixes https:// when it has no http(s) scheme.
// Empty input stays empty.
func NormalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if schemeRegex.MatchString(s) {
		return s
	}
	return "https://" + s
}

// ParseTags splits a comma-separated string into tags.
func ParseTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return CleanTags(strings.Split(s, ","))
}

// CleanTags trims and lowercases tags and drops empty entries.
// Order and duplicates are kept.
func CleanTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}

// ExtractDomain returns the hostname of link without a leading "www.".
// When link has no parsable host, the link minus its scheme is returned.
func ExtractDomain(link string) string {
	if link == "" {
		return ""
	}
	if u, err := url.Parse(link); err == nil && u.Hostname() != "" {
		return wwwRegex.ReplaceAllString(strings.ToLower(u.Hostname()), "")
	}
	return schemeRegex.ReplaceAllString(link, "")
}

// DeriveTitle returns a display name for link, falling back to UntitledName.
func DeriveTitle(link string) string {
	if domain := ExtractDomain(link); domain != "" {
		return domain
	}
	return UntitledName
}
