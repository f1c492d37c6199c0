// Package mock provides a translator for testing and DB-less dev mode
// without provider credentials.
package mock

import (
	"context"
	"fmt"
	"sync"

	"call-translation-service/internal/translate"
)

// Translator implements translate.Translator with canned responses.
// By default it returns "[targetLang] <text>"; fixed translations and
// failures can be scripted per input text.
type Translator struct {
	mu           sync.Mutex
	translations map[string]string
	failAll      bool
	failTexts    map[string]error
	calls        []string
}

// Compile-time interface check.
var _ translate.Translator = (*Translator)(nil)

// New creates a new mock translator.
func New() *Translator {
	return &Translator{
		translations: make(map[string]string),
		failTexts:    make(map[string]error),
	}
}

// Set fixes the translation returned for the given input text.
func (t *Translator) Set(text, translated string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.translations[text] = translated
}

// FailAll makes every Translate call return an error.
func (t *Translator) FailAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failAll = true
}

// FailOn makes Translate return the given error for one input text.
func (t *Translator) FailOn(text string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failTexts[text] = err
}

// Calls returns the input texts translated so far, in call order.
func (t *Translator) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.calls))
	copy(out, t.calls)
	return out
}

// Translate implements translate.Translator.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, text)

	if t.failAll {
		return "", fmt.Errorf("mock: translation provider unavailable")
	}
	if err, ok := t.failTexts[text]; ok {
		return "", err
	}
	if translated, ok := t.translations[text]; ok {
		return translated, nil
	}
	return fmt.Sprintf("[%s] %s", targetLang, text), nil
}
