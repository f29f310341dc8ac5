package common

import (
	"log/slog"
	"regexp"
	"strings"
)

// MaskedValue replaces every secret the masker finds
const MaskedValue = "***"

// SensitivePattern represents a pattern to detect and mask sensitive information
type SensitivePattern struct {
	Name        string         // Pattern name (e.g., "password", "dsn")
	Regex       *regexp.Regexp // Regular expression to match sensitive data
	Replacement string         // Replacement expression
	Keys        []string       // Attribute keys whose value is always masked (case-insensitive)
}

// DefaultSensitivePatterns covers credentials that show up in database
// configuration, driver errors and HTTP headers.
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "dsn_credentials",
		Regex:       regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://[^:/@\s]+):([^@\s]*)@`),
		Replacement: "${1}:" + MaskedValue + "@",
	},
	{
		Name:        "mysql_dsn",
		Regex:       regexp.MustCompile(`(^|\s)([^:/@\s]+):([^@\s]+)@(tcp|unix)\(`),
		Replacement: "${1}${2}:" + MaskedValue + "@${4}(",
	},
	{
		Name:        "password",
		Regex:       regexp.MustCompile(`(?i)\b(password|passwd|pwd)(\s*[:=]\s*)("[^"]*"|'[^']*'|[^\s&,;}]+)`),
		Replacement: "${1}${2}" + MaskedValue,
		Keys:        []string{"password", "passwd", "pwd", "db_password"},
	},
	{
		Name:        "secret",
		Regex:       regexp.MustCompile(`(?i)\b(secret|client[_-]?secret|jwt[_-]?secret)(\s*[:=]\s*)("[^"]*"|'[^']*'|[^\s&,;}]+)`),
		Replacement: "${1}${2}" + MaskedValue,
		Keys:        []string{"secret", "client_secret", "jwt_secret"},
	},
	{
		Name:        "token",
		Regex:       regexp.MustCompile(`(?i)\b(token|access[_-]?token)(\s*[:=]\s*)("[^"]*"|'[^']*'|[^\s&,;}]+)`),
		Replacement: "${1}${2}" + MaskedValue,
		Keys:        []string{"token", "access_token", "authorization"},
	},
	{
		Name:        "bearer_token",
		Regex:       regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "Bearer " + MaskedValue,
	},
}

// Masker handles masking of sensitive information in logs and health output
type Masker struct {
	patterns []SensitivePattern
	enabled  bool
}

// NewMasker creates a new masker with default patterns
func NewMasker() *Masker {
	return NewMaskerWithPatterns(DefaultSensitivePatterns)
}

// NewMaskerWithPatterns creates a new masker with custom patterns
func NewMaskerWithPatterns(patterns []SensitivePattern) *Masker {
	return &Masker{
		patterns: patterns,
		enabled:  true,
	}
}

// SetEnabled enables or disables masking
func (m *Masker) SetEnabled(enabled bool) {
	m.enabled = enabled
}

// IsEnabled returns whether masking is enabled
func (m *Masker) IsEnabled() bool {
	return m.enabled
}

// MaskString masks sensitive information in a string
func (m *Masker) MaskString(input string) string {
	if !m.enabled || input == "" {
		return input
	}
	result := input
	for _, pattern := range m.patterns {
		if pattern.Regex == nil {
			continue
		}
		result = pattern.Regex.ReplaceAllString(result, pattern.Replacement)
	}
	return result
}

// IsSensitiveKey reports whether values stored under key must never be shown.
func (m *Masker) IsSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, pattern := range m.patterns {
		for _, k := range pattern.Keys {
			if lowerKey == k {
				return true
			}
		}
	}
	return false
}

// MaskAttr masks a slog attribute: sensitive keys are replaced outright,
// string and error values have the regex patterns applied.
func (m *Masker) MaskAttr(a slog.Attr) slog.Attr {
	if !m.enabled {
		return a
	}
	if m.IsSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskedValue)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, m.MaskString(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok && err != nil {
			return slog.String(a.Key, m.MaskString(err.Error()))
		}
	}
	return a
}

// MaskSecret removes one literal secret, plus anything the patterns catch.
func (m *Masker) MaskSecret(input, secret string) string {
	if secret != "" {
		input = strings.ReplaceAll(input, secret, MaskedValue)
	}
	return m.MaskString(input)
}

// Global masker instance
var globalMasker = NewMasker()

// SetGlobalMasker sets the global masker instance
func SetGlobalMasker(masker *Masker) {
	if masker == nil {
		return
	}
	globalMasker = masker
}

// GetGlobalMasker returns the global masker instance
func GetGlobalMasker() *Masker {
	return globalMasker
}

// MaskSensitiveData masks sensitive data using the global masker
func MaskSensitiveData(input string) string {
	return globalMasker.MaskString(input)
}

// MaskError renders err with the given secret and known patterns masked.
func MaskError(err error, secret string) string {
	if err == nil {
		return ""
	}
	return globalMasker.MaskSecret(err.Error(), secret)
}
