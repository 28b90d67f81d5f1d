package logger

import "strings"

// SanitizedEmail masks an email address for logging: the first character of the
// local part and the top-level domain survive ("o****@********.com").
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	if len(local) > 1 {
		local = local[:1] + strings.Repeat("*", len(local)-1)
	}

	if dot := strings.LastIndexByte(domain, '.'); dot > 0 {
		masked := strings.Map(func(r rune) rune {
			if r == '.' {
				return r
			}
			return '*'
		}, domain[:dot])
		domain = masked + domain[dot:]
	}

	return local + "@" + domain
}

// SanitizedPhone keeps only the last three digits of a phone number.
func SanitizedPhone(phone string) string {
	if len(phone) <= 3 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}

var sensitiveParams = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"apikey",
	"email",
	"auth",
	"hub.verify_token",
	"phone",
}

// SanitizeQueryString reports whether the whole query string should be redacted.
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
