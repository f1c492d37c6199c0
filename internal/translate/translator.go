// Package translate defines the interface for translation providers.
package translate

import "context"

// Translator turns one text span from the source language into the target
// language. Any machine-translation or LLM backend satisfies this interface;
// implementations must be safe for concurrent use.
type Translator interface {
	// Translate returns the translated text. Callers bound the context;
	// implementations must respect cancellation.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// FallbackPrefix marks a segment whose translation failed. The original text
// is stored behind the marker so the live feed keeps progressing and the
// operator sees something rather than a silent gap.
const FallbackPrefix = "[translation unavailable] "

// Fallback returns the fallback-marked text for a failed translation.
func Fallback(text string) string {
	return FallbackPrefix + text
}
