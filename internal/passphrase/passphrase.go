// Package passphrase offers a convenience generator for a policy-compliant
// ignition passphrase, for callers that would rather mint one than choose
// their own.
package passphrase

import (
	"fmt"
	"strings"

	"github.com/sethvargo/go-password/password"
)

// Length is long enough to clear both the Validator's 8-character floor and
// the ignition wrap's stricter 12-character floor with room to spare.
const Length = 24

// maxAttempts bounds the retry loop below; go-password's symbol alphabet can
// happen to place a "$" next to a "(" in an otherwise-fine draw, so Suggest
// redraws rather than hand-editing a generated passphrase.
const maxAttempts = 20

// suspectSubstrings mirrors the Validator's injection-pattern checks closely
// enough to reject an unlucky draw before it's ever handed back.
var suspectSubstrings = []string{"$(", "`", ";", "&&", "||"}

// Suggest generates a random passphrase of letters, digits, and symbols with
// no repeated character, redrawing if the result happens to contain a
// substring the Validator's passphrase policy would reject.
func Suggest() (string, error) {
	for i := 0; i < maxAttempts; i++ {
		p, err := password.Generate(Length, 6, 4, false, false)
		if err != nil {
			return "", fmt.Errorf("passphrase: generate: %w", err)
		}
		if clean(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("passphrase: failed to draw a clean passphrase in %d attempts", maxAttempts)
}

func clean(p string) bool {
	for _, s := range suspectSubstrings {
		if strings.Contains(p, s) {
			return false
		}
	}
	return true
}
