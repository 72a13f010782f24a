// Package llm is the transport layer between HomeCode and a hosted
// completion endpoint. It defines the wire-level message types, a
// provider-agnostic Client that routes requests to registered adapters,
// an error taxonomy that classifies transport failures as retryable or
// not, and a RetryPolicy helper for the caller to wrap calls with
// bounded exponential backoff.
//
// Two adapters ship with the package:
//
//   - HTTPAdapter speaks the OpenAI chat-completions format and works
//     against any compatible host (OpenRouter, Ollama's OpenAI endpoint,
//     OpenAI itself).
//   - GollmAdapter wraps a gollm.LLM instance for providers that are
//     better served by their native SDK paths.
//
// The package does no orchestration: one Request in, one Response out.
// Retry is deliberately left to the caller so tests can inject a
// zero-delay policy.
package llm
