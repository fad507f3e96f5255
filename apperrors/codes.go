// Package apperrors defines the error kinds that cross component boundaries
// in the recognition engine, and their mapping onto HTTP status codes.
package apperrors

import "net/http"

// Kind classifies an error by what failed, independent of the message text.
type Kind string

const (
	// InputMissing means the caller's request omitted the audio payload.
	InputMissing Kind = "input_missing"
	// UnsupportedFormat means the file extension is not in the accepted set.
	UnsupportedFormat Kind = "unsupported_format"
	// DecodeFailure means the decoder could not produce PCM from the input.
	DecodeFailure Kind = "decode_failure"
	// DspFailure means a numerical fault occurred during spectrogram, peak,
	// or hash generation (e.g. zero-length input).
	DspFailure Kind = "dsp_failure"
	// StoreFailure means persistence failed: aborted transaction, disk full,
	// schema mismatch. The caller's enrollment was rolled back.
	StoreFailure Kind = "store_failure"
	// NotFound is used only for the auxiliary file-serving endpoint and for
	// lookups of an unknown song id.
	NotFound Kind = "not_found"
)

// StatusCodeMap is the authoritative Kind -> HTTP status table.
var StatusCodeMap = map[Kind]int{
	InputMissing:      http.StatusBadRequest,
	UnsupportedFormat: http.StatusBadRequest,
	DecodeFailure:     http.StatusInternalServerError,
	DspFailure:        http.StatusInternalServerError,
	StoreFailure:      http.StatusInternalServerError,
	NotFound:          http.StatusNotFound,
}

// StatusCode returns the HTTP status this kind should be reported as,
// defaulting to 500 for an unregistered kind.
func (k Kind) StatusCode() int {
	if code, ok := StatusCodeMap[k]; ok {
		return code
	}
	return http.StatusInternalServerError
}
