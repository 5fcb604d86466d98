package core

import "errors"

var (
	// ErrInvalidArgument indicates a malformed argument such as a non-positive block limit.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInput indicates missing or malformed post data; no work is performed.
	ErrInput = errors.New("input error")
	// ErrPostNotFound indicates that no post exists for the requested id.
	ErrPostNotFound = errors.New("post not found")
	// ErrSynthesis indicates that the speech synthesizer rejected or failed a block.
	ErrSynthesis = errors.New("synthesis error")
	// ErrStorage indicates that the audio artifact could not be uploaded.
	ErrStorage = errors.New("storage error")
	// ErrRecordStore indicates that the post record could not be written.
	ErrRecordStore = errors.New("record store error")
	// ErrConversionInProgress indicates a concurrent conversion of the same post id.
	ErrConversionInProgress = errors.New("conversion already in progress")
)

// Kind returns a short classification of err for log lines.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInput):
		return "input"
	case errors.Is(err, ErrSynthesis):
		return "synthesis"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrRecordStore):
		return "record_store"
	case errors.Is(err, ErrConversionInProgress):
		return "in_progress"
	default:
		return "unknown"
	}
}
