// Package llm is the wire adapter to an OpenAI-compatible Chat Completions
// endpoint. It speaks HTTP/SSE directly rather than through a
// vendor SDK, because the exact mechanics the Agent Loop depends on
// (buffering partial tool-call JSON by streaming index, tolerating
// out-of-order tool-call id delivery, a debug side channel, correlation
// headers impersonating an upstream compatibility client) are not
// expressible through a higher-level chat-model abstraction.
//
// Client.Stream does one HTTP attempt and returns a channel of Events; it
// does not retry. Retry policy (NewRetryBackoff) is exposed for the caller
// (internal/agentloop) to drive around each single completion attempt.
package llm
