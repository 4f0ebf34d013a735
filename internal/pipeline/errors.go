package pipeline

import "fmt"

// ValidationError reports bad, missing, or out-of-range request
// input. It is terminal for the request.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// SignatureError reports a missing or invalid request token while
// signing is enabled.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "signature check failed: " + e.Reason
}

// NotFoundError reports an origin resource that is absent or
// unreadable.
type NotFoundError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("source object %s/%s not found", e.Bucket, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// TransformError reports a decode or encode failure inside the
// transform engine.
type TransformError struct {
	Stage string
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s failed: %v", e.Stage, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// CacheError reports a cache lookup or write failure. It never
// escapes the processor: lookups downgrade to a miss, writes are
// logged and dropped.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s failed: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}
