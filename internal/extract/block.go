// Package extract isolates the structured data block embedded in free-form
// model output.
package extract

import (
	"errors"
	"strings"
)

const (
	openBrace  = '{'
	closeBrace = '}'
)

var (
	// ErrNotFound is returned when the text holds no complete block.
	ErrNotFound = errors.New("no data block found")

	// ErrUnbalanced is returned when the text ends before the first block
	// closes. It matches ErrNotFound under errors.Is.
	ErrUnbalanced = &unbalancedError{}
)

type unbalancedError struct{}

func (e *unbalancedError) Error() string { return "data block is not closed" }

func (e *unbalancedError) Is(target error) bool { return target == ErrNotFound }

// Block returns the substring running from the first '{' in text to the '}'
// that closes it, inclusive. Leading and trailing prose is ignored. The
// contents of the block are not validated.
func Block(text string) (string, error) {
	start := strings.IndexByte(text, openBrace)
	if start < 0 {
		return "", ErrNotFound
	}

	depth := 1
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case openBrace:
			depth++
		case closeBrace:
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", ErrUnbalanced
}
