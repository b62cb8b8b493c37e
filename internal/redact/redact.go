// Package redact scrubs credentials, personal data and precise locations from
// text before it reaches a log line or an activation event.
package redact

import (
	"fmt"
	"log"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

const masked = "[REDACTED]"

// rule replaces the second capture group of re, keeping the first as a label.
type rule struct {
	re *regexp.Regexp
}

var rules = []rule{
	{regexp.MustCompile(`(?i)(authorization\s*[:=]\s*bearer\s+)([A-Za-z0-9._\-+/=]+)`)},
	{regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._\-+/=]+)`)},
	{regexp.MustCompile(`(?i)("?password"?\s*[:=]\s*"?)([^"\s,}]+)`)},
	{regexp.MustCompile(`(?i)((?:set-)?cookie\s*[:=]\s*)([^\r\n]+)`)},
	{regexp.MustCompile(`(?i)(upload_preset\s*[:=]\s*)([^\s&"]+)`)},
	{regexp.MustCompile(`(?i)(api[_-]?(?:key|secret)s?\s*[:=]\s*)([A-Za-z0-9._\-+/=]+)`)},
	{regexp.MustCompile(`(?i)((?:key|token|secret)\s*[:=]\s*)([A-Za-z0-9._\-+/=]{6,})`)},
}

var (
	coordRe = regexp.MustCompile(`(?i)("?(?:lat|latitude|lon|lng|longitude)"?\s*[:=]\s*)(-?\d+\.\d{3,})`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	urlRe   = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// String redacts known secret patterns from free-form strings. Coordinates
// keep two decimals, which is roughly neighbourhood precision.
func String(s string) string {
	if s == "" {
		return s
	}
	out := s
	for _, r := range rules {
		out = r.re.ReplaceAllStringFunc(out, func(m string) string {
			if strings.Contains(m, masked) {
				return m
			}
			sub := r.re.FindStringSubmatch(m)
			return sub[1] + masked
		})
	}
	out = coordRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := coordRe.FindStringSubmatch(m)
		v, err := strconv.ParseFloat(sub[2], 64)
		if err != nil {
			return sub[1] + masked
		}
		return sub[1] + strconv.FormatFloat(v, 'f', 2, 64)
	})
	out = urlRe.ReplaceAllStringFunc(out, redactURL)
	return emailRe.ReplaceAllString(out, "[REDACTED_EMAIL]")
}

// Sprintf formats like fmt.Sprintf and redacts the result.
func Sprintf(format string, args ...any) string {
	return String(fmt.Sprintf(format, args...))
}

// Logf prints a redacted log line.
func Logf(format string, args ...any) {
	log.Print(Sprintf(format, args...))
}

// redactURL keeps scheme, host and the last path segment. Query strings can
// carry upload signatures, so they never survive.
func redactURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "[REDACTED_URL]"
	}
	origin := u.Scheme + "://" + u.Host
	if strings.HasSuffix(u.Path, "/") && u.Path != "/" {
		return origin + "/[REDACTED_PATH]"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return origin
	}
	return origin + "/" + base
}
