package sarif

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/scan-io-git/llmscan/internal/findings"
)

var (
	lineRegex = regexp.MustCompile(`(?i)\blines?\s*(\d+(?:\s*-\s*\d+)?)`)
	cweRegex  = regexp.MustCompile(`^CWE-(\d+)\b`)
	slugRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

// toSarifErrorLevel maps the threat scale onto SARIF levels.
func toSarifErrorLevel(level findings.ThreatLevel) string {
	switch level {
	case findings.LevelCritical, findings.LevelHigh:
		return "error"
	case findings.LevelMedium:
		return "warning"
	case findings.LevelLow:
		return "note"
	default:
		return "none"
	}
}

// parseLineRange parses line range from strings like "123" or "123-456".
// Returns (start, end) where end equals start for single line numbers.
func parseLineRange(value string) (int, int) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "-") {
		parts := strings.SplitN(value, "-", 2)
		if len(parts) == 2 {
			start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
			end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err1 == nil && err2 == nil {
				return start, end
			}
		}
	} else {
		if line, err := strconv.Atoi(value); err == nil {
			return line, line
		}
	}
	return 0, 0
}

// lineRangeFromLocation extracts "Line 12" or "Lines 12-15" from a finding location.
func lineRangeFromLocation(location string) (int, int) {
	m := lineRegex.FindStringSubmatch(location)
	if len(m) != 2 {
		return 0, 0
	}
	start, end := parseLineRange(m[1])
	if end < start {
		end = start
	}
	return start, end
}

// ruleID prefers the CWE identifier and falls back to a slug of the name.
func ruleID(f findings.Finding) string {
	if m := cweRegex.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(f.CWEID))); len(m) == 2 {
		return "CWE-" + m[1]
	}
	slug := strings.Trim(slugRegex.ReplaceAllString(strings.ToLower(f.VulnerabilityName), "-"), "-")
	if slug == "" {
		return "llmscan-finding"
	}
	return slug
}

func cweURI(cweID string) string {
	if m := cweRegex.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(cweID))); len(m) == 2 {
		return "https://cwe.mitre.org/data/definitions/" + m[1] + ".html"
	}
	return ""
}

// function that calculates md5 hash for a given text
func calculateMD5Hash(text string) string {
	hash := md5.New()
	io.WriteString(hash, text)
	return hex.EncodeToString(hash.Sum(nil))
}
