package common

import (
	"fmt"
	"regexp"
	"strings"
)

const maskedPlaceholder = "***MASKED***"

// SensitivePattern represents a pattern to detect and mask sensitive information
type SensitivePattern struct {
	Name        string         // Pattern name (e.g., "password", "jwt")
	Regex       *regexp.Regexp // Regular expression to match sensitive data
	Replacement string         // Replacement string
	Keys        []string       // Specific keys to mask (case-insensitive)
}

// DefaultSensitivePatterns covers the credentials migrado handles: database
// passwords on the arangosh command line, basic auth headers and JWTs.
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "arangosh_password",
		Regex:       regexp.MustCompile(`(--server\.password[ =])(\S+)`),
		Replacement: "${1}" + maskedPlaceholder,
		Keys:        []string{},
	},
	{
		Name:        "password",
		Regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}":"` + maskedPlaceholder + `"`,
		Keys:        []string{"password", "passwd", "pwd"},
	},
	{
		Name:        "jwt_secret",
		Regex:       regexp.MustCompile(`(?i)(jwt[_-]?secret)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}":"` + maskedPlaceholder + `"`,
		Keys:        []string{"jwt_secret", "jwt-secret", "secret"},
	},
	{
		Name:        "bearer_token",
		Regex:       regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "Bearer " + maskedPlaceholder,
		Keys:        []string{},
	},
	{
		Name:        "basic_auth",
		Regex:       regexp.MustCompile(`(?i)Basic\s+[A-Za-z0-9+/]+=*`),
		Replacement: "Basic " + maskedPlaceholder,
		Keys:        []string{},
	},
	{
		Name:        "authorization",
		Regex:       regexp.MustCompile(`(?i)(authorization)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}":"` + maskedPlaceholder + `"`,
		Keys:        []string{"authorization", "token"},
	},
	{
		Name:        "dsn_password",
		Regex:       regexp.MustCompile(`(://[^:/@\s]+:)([^@\s]+)(@)`),
		Replacement: "${1}" + maskedPlaceholder + "${3}",
		Keys:        []string{},
	},
}

// Masker handles masking of sensitive information in logs
type Masker struct {
	patterns []SensitivePattern
	enabled  bool
}

// NewMasker creates a new masker with default patterns
func NewMasker() *Masker {
	return &Masker{
		patterns: DefaultSensitivePatterns,
		enabled:  true,
	}
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

// AddPattern adds a new sensitive pattern. A pattern without a regex gets one
// built from its keys.
func (m *Masker) AddPattern(pattern SensitivePattern) {
	if pattern.Regex == nil && len(pattern.Keys) > 0 {
		keyPattern := strings.Join(pattern.Keys, "|")
		regexPattern := fmt.Sprintf("(?i)\\b(%s)\\s*[:=]\\s*['\"]?([^'\",\\s}\\]]+)['\"]?", keyPattern)
		pattern.Regex = regexp.MustCompile(regexPattern)
		if pattern.Replacement == "" {
			pattern.Replacement = "$1:\"" + maskedPlaceholder + "\""
		}
	}
	m.patterns = append(m.patterns, pattern)
}

// MaskString masks sensitive information in a string
func (m *Masker) MaskString(input string) string {
	if !m.enabled {
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

// MaskValue masks sensitive information based on key-value context
func (m *Masker) MaskValue(key string, value interface{}) interface{} {
	if !m.enabled {
		return value
	}

	lowerKey := strings.ToLower(key)
	for _, pattern := range m.patterns {
		for _, sensitiveKey := range pattern.Keys {
			if lowerKey == strings.ToLower(sensitiveKey) {
				return maskedPlaceholder
			}
		}
	}

	strValue, ok := value.(string)
	if !ok {
		strValue = strings.TrimSpace(toString(value))
		if strValue == "" {
			return value
		}
	}
	return m.MaskString(strValue)
}

// toString converts various types to string representation
func toString(v interface{}) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case error:
		return val.Error()
	case []string:
		return strings.Join(val, " ")
	default:
		return ""
	}
}

// Global masker instance
var globalMasker = NewMasker()

// MaskSensitiveData masks sensitive data using the global masker
func MaskSensitiveData(input string) string {
	return globalMasker.MaskString(input)
}

// EnableMasking enables/disables global masking
func EnableMasking(enabled bool) {
	globalMasker.SetEnabled(enabled)
}

// IsMaskingEnabled returns whether global masking is enabled
func IsMaskingEnabled() bool {
	return globalMasker.IsEnabled()
}
