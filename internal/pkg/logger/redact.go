package logger

import (
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRegex = regexp.MustCompile(`\+?\d[\d\s().-]{6,}\d`)
)

// redactValue masks PII in a field value based on the field key and on
// patterns embedded in the value itself.
func redactValue(key, val string) string {
	lower := strings.ToLower(key)
	if strings.Contains(lower, "email") || strings.Contains(lower, "submitter") {
		return RedactEmail(val)
	}
	if strings.Contains(lower, "phone") {
		return RedactPhone(val)
	}
	val = emailRegex.ReplaceAllStringFunc(val, RedactEmail)
	return val
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactPhone masks a phone number, keeping only the last two digits.
// "(514) 775-6608" → "***08"
func RedactPhone(phone string) string {
	if !phoneRegex.MatchString(phone) {
		return phone
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) < 2 {
		return "***"
	}
	return "***" + digits[len(digits)-2:]
}
