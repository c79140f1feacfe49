package slug

import (
	"fmt"
	"strings"

	gosimple "github.com/gosimple/slug"
)

// Make slugifies free text into a URL-safe shop slug. Returns "" when the
// input reduces to nothing.
func Make(value string) string {
	return gosimple.Make(strings.TrimSpace(value))
}

// WithSuffix appends the numeric disambiguation suffix used on collisions.
// Attempt 1 is the bare slug; attempt 2 becomes "<slug>-2" and so on.
func WithSuffix(base string, attempt int) string {
	if attempt <= 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, attempt)
}
