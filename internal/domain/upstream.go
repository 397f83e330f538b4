package domain

import "io"

// UpstreamResponse is a backend reply relayed to the caller. Body is
// streamed, not buffered, so the relay preserves chunk arrival order;
// the caller owns closing it.
type UpstreamResponse struct {
	Status int
	Header map[string][]string
	Body   io.ReadCloser
}
