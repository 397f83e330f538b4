package domain

import "errors"

var (
	// ErrEmbeddingUnavailable signals that the embedding service could not produce a vector.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrIndexUnavailable signals that the vector index could not be searched.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrUpstreamUnavailable signals that the generation backend could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamTimeout signals that the generation backend did not answer in time.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrMalformedRequest signals an undecodable body on a generation route.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrEndpointUnsupported signals that a remote API does not expose the
	// requested endpoint, as opposed to a failed call to an existing one.
	ErrEndpointUnsupported = errors.New("endpoint unsupported")
)
