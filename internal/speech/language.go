package speech

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguages are the course languages the app ships with.
var DefaultLanguages = []string{
	"en-US", "en-GB", "es-ES", "es-MX", "fr-FR", "de-DE", "it-IT", "pt-BR", "pt-PT",
	"nl-NL", "pl-PL", "sv-SE", "tr-TR", "ru-RU", "ja-JP", "ko-KR", "zh-CN", "hi-IN", "ar-SA",
}

// Languages is the set of language codes the resolver accepts.
type Languages struct {
	codes map[string]struct{}
}

// NewLanguages builds a set from BCP 47 codes. Codes are stored in canonical
// form, so "en-us" and "en-US" are the same entry.
func NewLanguages(codes []string) (*Languages, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("no languages configured")
	}
	set := &Languages{codes: make(map[string]struct{}, len(codes))}
	for _, code := range codes {
		canonical, err := CanonicalLanguage(code)
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", code, err)
		}
		set.codes[canonical] = struct{}{}
	}
	return set, nil
}

// Canonical returns the canonical form of code when it is supported, and an
// *UnsupportedLanguageError otherwise.
func (l *Languages) Canonical(code string) (string, error) {
	canonical, err := CanonicalLanguage(code)
	if err != nil {
		return "", &UnsupportedLanguageError{Language: code}
	}
	if _, ok := l.codes[canonical]; !ok {
		return "", &UnsupportedLanguageError{Language: code}
	}
	return canonical, nil
}

// List returns the supported codes in sorted order.
func (l *Languages) List() []string {
	out := make([]string, 0, len(l.codes))
	for code := range l.codes {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// CanonicalLanguage returns the canonical BCP 47 form of code without
// checking it against any supported set.
func CanonicalLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("empty language code")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}
