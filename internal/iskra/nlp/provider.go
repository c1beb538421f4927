// Package nlp provides the completion layer for Iskra.
//
// The orchestrator assembles a prompt (persona system instruction, optional
// mood and memory steering, then the full turn history) and hands it to a
// Provider, which returns a single assistant turn. No streaming and no
// function calling — the contract is one ordered message list in, one
// generated message out.
package nlp

import "context"

// Roles used in completion messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged message in a completion request.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is the input to a single completion call. Messages must
// already be in the order the model should see them.
type CompletionRequest struct {
	Messages []Message
}

// CompletionResponse is the assistant turn produced by the provider.
type CompletionResponse struct {
	// Content is the generated assistant text.
	Content string

	// Usage holds the token counts reported by the underlying API. Nil when
	// the provider does not report usage data (e.g. stub implementations in
	// tests).
	Usage *TokenUsage
}

// TokenUsage carries the token counts reported by the upstream API for a
// single completion call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider generates assistant replies from conversation prompts.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// Calls are made with a bounded timeout and are never retried; a failure
// propagates to the caller as-is.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
