// Package contentfilter implements the content policy pipeline (C1):
// length check, dangerous-pattern rejection, forbidden-word rejection, a
// spam heuristic, an additive toxicity score, and finally HTML-escape plus
// character-whitelist sanitization. Grounded on original_source/src/security.rs's
// ContentFilter, SpamDetector and ToxicityDetector.
package contentfilter

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/chathub/sessionhub/internal/apperror"
)

const (
	maxContentLength = 4000

	repetitionThreshold = 0.7
	capsThreshold       = 0.5
	specialCharThreshold = 0.3

	toxicityThreshold = 0.6
)

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)setTimeout\s*\(`),
	regexp.MustCompile(`(?i)setInterval\s*\(`),
	regexp.MustCompile(`(?i)(union|select|insert|update|delete|drop|create|alter|exec)\s+`),
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`\.\.\\`),
	regexp.MustCompile(`[;|&` + "`" + `$(){}\[\]<>]`),
}

var forbiddenWords = []string{
	"free money", "click here now", "nigerian prince", "wire transfer scam",
	"union select", "drop table", "exec(", "<script",
}

var spamPhrases = []string{
	"click here now", "limited time offer", "act fast", "free free free",
	"!!!!!!", "buy now", "special offer",
}

var toxicityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bkill (yourself|you)\b`),
	regexp.MustCompile(`(?i)\bi will (hurt|kill) you\b`),
	regexp.MustCompile(`(?i)\bgo die\b`),
	regexp.MustCompile(`(?i)\bend your life\b`),
}

// whitelistPunctuation are the punctuation characters preserved (beyond
// letters/digits) after HTML-escaping during sanitize's final pass.
const whitelistPunctuation = " .,!?-_@#()[]{}"

// Sanitize validates and cleans user-authored content. It returns the
// cleaned text or a typed apperror (InvalidInput for shape problems,
// InappropriateContent for policy violations).
func Sanitize(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", apperror.New(apperror.InvalidInput, "content must not be empty")
	}
	if len(trimmed) > maxContentLength {
		return "", apperror.New(apperror.InvalidInput, "content exceeds maximum length")
	}

	lower := strings.ToLower(trimmed)

	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(lower) {
			return "", apperror.New(apperror.InappropriateContent, "content matched a disallowed pattern")
		}
	}

	for _, word := range forbiddenWords {
		if strings.Contains(lower, word) {
			return "", apperror.New(apperror.InappropriateContent, "content contains a forbidden phrase")
		}
	}

	if isSpam(trimmed) {
		return "", apperror.New(apperror.InappropriateContent, "content flagged as spam")
	}

	if toxicityScore(trimmed) > toxicityThreshold {
		return "", apperror.New(apperror.InappropriateContent, "content flagged as toxic")
	}

	return sanitizeCharacters(trimmed), nil
}

func isSpam(text string) bool {
	if len(text) < 10 {
		return false
	}
	if charRepetitionRatio(text) > repetitionThreshold {
		return true
	}
	if capsRatio(text) > capsThreshold {
		return true
	}
	if specialCharRatio(text) > specialCharThreshold {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range spamPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func charRepetitionRatio(text string) float64 {
	freq := make(map[rune]int)
	total := 0
	for _, r := range text {
		freq[r]++
		total++
	}
	if total == 0 {
		return 0
	}
	max := 0
	for _, count := range freq {
		if count > max {
			max = count
		}
	}
	return float64(max) / float64(total)
}

func capsRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			letters++
			if r >= 'A' && r <= 'Z' {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

func specialCharRatio(text string) float64 {
	total, special := 0, 0
	for _, r := range text {
		if r == ' ' {
			continue
		}
		total++
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum {
			special++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(special) / float64(total)
}

func toxicityScore(text string) float64 {
	score := 0.0
	for _, pattern := range toxicityPatterns {
		if pattern.MatchString(text) {
			score += 0.3
		}
	}
	if strings.Contains(text, "!!!") {
		score += 0.1
	}
	if capsRatio(text) > 0.5 {
		score += 0.1
	}
	return score
}

func sanitizeCharacters(text string) string {
	escaped := html.EscapeString(text)
	var b strings.Builder
	for _, r := range escaped {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || strings.ContainsRune(whitelistPunctuation, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var mentionPattern = regexp.MustCompile(`@(\d+)`)

// ExtractMentions parses @<user-id> tags out of sanitized content. There is
// no username directory in scope (see Non-goals), so mentions are written
// and parsed as raw numeric user ids rather than @username handles.
func ExtractMentions(text string) []int64 {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(matches))
	mentions := make([]int64, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		mentions = append(mentions, id)
	}
	return mentions
}

var roomNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,50}$`)

// ValidateRoomName normalizes and validates a room name: lowercased,
// 1-50 chars, [a-z0-9_-], and free of forbidden substrings.
func ValidateRoomName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if !roomNamePattern.MatchString(normalized) {
		return "", apperror.New(apperror.InvalidInput, "invalid room name")
	}
	for _, word := range forbiddenWords {
		if strings.Contains(normalized, word) {
			return "", apperror.New(apperror.InappropriateContent, "room name contains a forbidden phrase")
		}
	}
	return normalized, nil
}
