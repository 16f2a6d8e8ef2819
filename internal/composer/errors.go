package composer

import (
	"errors"

	"github.com/Conceptual-Machines/sparkle-api/internal/prompt"
)

// Failures of a compose call. All are terminal; nothing is retried.
var (
	ErrMissingCredential = errors.New("completion service credential not configured")
	ErrUpstream          = errors.New("completion service request failed")
	ErrEmptyResponse     = errors.New("completion service returned no text")
	ErrBlockNotFound     = errors.New("no complete data block in completion text")
	ErrDecode            = errors.New("data block is not a valid composition")
	ErrEncode            = errors.New("failed to encode composition as MIDI")
	ErrUnknownTemplate   = prompt.ErrUnknownTemplate
)

// Stable error codes, also used as compose outcomes in metrics
const (
	CodeMissingCredential = "missing_credential"
	CodeUpstream          = "upstream_error"
	CodeEmptyResponse     = "empty_response"
	CodeBlockNotFound     = "block_not_found"
	CodeDecode            = "decode_error"
	CodeEncode            = "encode_error"
	CodeUnknownTemplate   = "unknown_template"
	CodeInternal          = "internal_error"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrMissingCredential, CodeMissingCredential},
	{ErrUpstream, CodeUpstream},
	{ErrEmptyResponse, CodeEmptyResponse},
	{ErrBlockNotFound, CodeBlockNotFound},
	{ErrDecode, CodeDecode},
	{ErrEncode, CodeEncode},
	{ErrUnknownTemplate, CodeUnknownTemplate},
}

// ErrorCode maps a compose error to its stable code
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}
