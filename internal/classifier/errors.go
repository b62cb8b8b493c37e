package classifier

import "fmt"

// LoadError means the model assets could not be loaded. It is terminal for
// the predictor: nothing retries it.
type LoadError struct {
	Dir string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("classifier: load model from %s: %v", e.Dir, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) UserMessage() string {
	return "The classification model failed to load. Classification is unavailable."
}

// InferenceError is a per-attempt failure. Op is "decode" for images that
// could not be read and "run" for runtime failures.
type InferenceError struct {
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("classifier: %s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) UserMessage() string {
	if e.Op == "decode" {
		return "That file could not be read as an image. Try a JPEG, PNG, GIF or WebP photo."
	}
	return "Classification failed. Please try again."
}
