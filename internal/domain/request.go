package domain

import (
	"encoding/json"
	"fmt"
)

// GenerationRequest is a decoded /api/generate or /api/chat body. The proxy
// interprets prompt, messages and stream; every other field (model, options,
// format, keep_alive, ...) is opaque and survives a rewrite untouched.
// Instances are immutable: rewrites return a copy.
type GenerationRequest struct {
	fields map[string]json.RawMessage
}

// ParseGenerationRequest decodes a generation route body. A body that is not
// a JSON object is a malformed request.
func ParseGenerationRequest(raw []byte) (*GenerationRequest, error) {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode body: %w", ErrMalformedRequest)
	}
	return &GenerationRequest{fields: fields}, nil
}

// Prompt returns the prompt field. ok is false when the field is absent or
// not a string.
func (r *GenerationRequest) Prompt() (string, bool) {
	raw, present := r.fields["prompt"]
	if !present {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Stream reports whether the caller asked for a streamed response.
// Absent or non-boolean means buffered.
func (r *GenerationRequest) Stream() bool {
	raw, present := r.fields["stream"]
	if !present {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

// LastUserContent returns the content of the last message with role "user",
// scanning turns in reverse. ok is false when no such turn exists or the
// messages field has an unexpected shape.
func (r *GenerationRequest) LastUserContent() (string, bool) {
	msgs, ok := r.rawMessages()
	if !ok {
		return "", false
	}
	idx := lastUserIndex(msgs)
	if idx < 0 {
		return "", false
	}
	var turn struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(msgs[idx], &turn); err != nil {
		return "", false
	}
	return turn.Content, true
}

// WithPrompt returns a copy of the request with the prompt field replaced.
// The receiver is not modified.
func (r *GenerationRequest) WithPrompt(text string) *GenerationRequest {
	out := r.clone()
	encoded, err := json.Marshal(text)
	if err != nil {
		return r
	}
	out.fields["prompt"] = encoded
	return out
}

// WithLastUserContent returns a copy of the request where only the content of
// the last user turn is replaced. Every other turn, and every other field of
// the rewritten turn, keeps its original bytes. ok is false when there is no
// user turn to rewrite.
func (r *GenerationRequest) WithLastUserContent(text string) (*GenerationRequest, bool) {
	msgs, ok := r.rawMessages()
	if !ok {
		return r, false
	}
	idx := lastUserIndex(msgs)
	if idx < 0 {
		return r, false
	}

	turn := make(map[string]json.RawMessage)
	if err := json.Unmarshal(msgs[idx], &turn); err != nil {
		return r, false
	}
	encoded, err := json.Marshal(text)
	if err != nil {
		return r, false
	}
	turn["content"] = encoded

	rewritten, err := json.Marshal(turn)
	if err != nil {
		return r, false
	}

	updated := make([]json.RawMessage, len(msgs))
	copy(updated, msgs)
	updated[idx] = rewritten

	encodedMsgs, err := json.Marshal(updated)
	if err != nil {
		return r, false
	}

	out := r.clone()
	out.fields["messages"] = encodedMsgs
	return out, true
}

// Encode serializes the request for forwarding.
func (r *GenerationRequest) Encode() ([]byte, error) {
	data, err := json.Marshal(r.fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return data, nil
}

func (r *GenerationRequest) rawMessages() ([]json.RawMessage, bool) {
	raw, present := r.fields["messages"]
	if !present {
		return nil, false
	}
	var msgs []json.RawMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, false
	}
	return msgs, true
}

func (r *GenerationRequest) clone() *GenerationRequest {
	fields := make(map[string]json.RawMessage, len(r.fields))
	for k, v := range r.fields {
		fields[k] = v
	}
	return &GenerationRequest{fields: fields}
}

func lastUserIndex(msgs []json.RawMessage) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		var turn struct {
			Role string `json:"role"`
		}
		if err := json.Unmarshal(msgs[i], &turn); err != nil {
			continue
		}
		if turn.Role == "user" {
			return i
		}
	}
	return -1
}
