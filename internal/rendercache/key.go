package rendercache

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// keyDomain separates render-cache hashes from any other content-addressed
// identity in the application. Version suffix enables algorithm migration.
const keyDomain = "scadstudio/render/v1"

// Key computes the content-addressed cache key for a render request.
//
// The key folds in every caller-visible input that changes the output:
// source text, backend identifier, and view mode. Fields are separated by
// null bytes so no concatenation of differing inputs can collide on the
// same byte stream. Source text is NFC normalized first so visually
// identical code hashes identically regardless of Unicode representation.
func Key(source, backend, view string) string {
	return KeyWithDefines(source, backend, view, nil)
}

// KeyWithDefines is Key with variable-override definitions folded in.
// Parameter presets change the produced geometry, so two renders of the
// same source under different presets must never share an entry.
func KeyWithDefines(source, backend, view string, defines []string) string {
	h := sha256.New()
	h.Write([]byte(keyDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(norm.NFC.String(source)))
	h.Write([]byte{0x00})
	h.Write([]byte(backend))
	h.Write([]byte{0x00})
	h.Write([]byte(view))
	for _, d := range defines {
		h.Write([]byte{0x00})
		h.Write([]byte(d))
	}
	return hex.EncodeToString(h.Sum(nil))
}
