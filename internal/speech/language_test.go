package speech

import (
	"errors"
	"testing"
)

func TestLanguagesCanonical(t *testing.T) {
	langs, err := NewLanguages([]string{"en-us", "pt-BR", "zh-CN"})
	if err != nil {
		t.Fatalf("new languages: %v", err)
	}
	for in, want := range map[string]string{
		"en-US": "en-US",
		"EN-us": "en-US",
		"pt-br": "pt-BR",
		"zh-CN": "zh-CN",
	} {
		got, err := langs.Canonical(in)
		if err != nil {
			t.Fatalf("Canonical(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLanguagesRejects(t *testing.T) {
	langs, err := NewLanguages([]string{"en-US"})
	if err != nil {
		t.Fatalf("new languages: %v", err)
	}
	for _, code := range []string{"fr-FR", "en-GB", "", "not a tag!"} {
		_, err := langs.Canonical(code)
		var unsupported *UnsupportedLanguageError
		if !errors.As(err, &unsupported) {
			t.Fatalf("Canonical(%q) = %v, want UnsupportedLanguageError", code, err)
		}
		if unsupported.Language != code {
			t.Fatalf("expected offending code %q, got %q", code, unsupported.Language)
		}
	}
}

func TestNewLanguagesValidation(t *testing.T) {
	if _, err := NewLanguages(nil); err == nil {
		t.Fatal("expected error for empty set")
	}
	if _, err := NewLanguages([]string{"en-US", "!!"}); err == nil {
		t.Fatal("expected error for malformed code")
	}
}

func TestDefaultLanguagesParse(t *testing.T) {
	langs, err := NewLanguages(DefaultLanguages)
	if err != nil {
		t.Fatalf("default languages: %v", err)
	}
	if got := len(langs.List()); got != len(DefaultLanguages) {
		t.Fatalf("expected %d languages, got %d", len(DefaultLanguages), got)
	}
}
