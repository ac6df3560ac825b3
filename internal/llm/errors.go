package llm

import "errors"

// ErrStreamingUnsupported is returned by ChatStream on backends that only
// expose a non-streaming content-only endpoint.
var ErrStreamingUnsupported = errors.New("llm: backend does not support streaming")

// ErrModelRequired is returned when neither the request nor the backend's
// default model configuration supplies a model name.
var ErrModelRequired = errors.New("llm: model is required")
