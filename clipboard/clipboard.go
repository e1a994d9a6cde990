// Package clipboard puts assistant text on the system clipboard.
package clipboard

import (
	"errors"

	cb "github.com/atotto/clipboard"
)

// ErrUnsupported is returned when no clipboard utility (xclip, xsel,
// wl-copy) could be found.
var ErrUnsupported = errors.New("clipboard unavailable")

func Copy(text string) error {
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}
