package arxiv

import "regexp"

var (
	urlPattern      = regexp.MustCompile(`^https?://arxiv\.org/(?:abs|pdf)/(\d{4,}\.\d{4,}(?:v\d+)?)(?:\.pdf)?$`)
	newStylePattern = regexp.MustCompile(`^(\d{4,}\.\d{4,}(?:v\d+)?)$`)
	oldStylePattern = regexp.MustCompile(`^[a-z-]+(?:\.[A-Z]{2})?/\d{7}$`)
)

// ExtractID returns the canonical arXiv identifier for a bare ID or an
// arxiv.org abs/pdf URL. The second result is false when nothing matches.
func ExtractID(argument string) (string, bool) {
	if m := urlPattern.FindStringSubmatch(argument); m != nil {
		return m[1], true
	}
	if m := newStylePattern.FindStringSubmatch(argument); m != nil {
		return m[1], true
	}
	if oldStylePattern.MatchString(argument) {
		return argument, true
	}
	return "", false
}
