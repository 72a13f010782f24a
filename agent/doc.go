// Package agent implements the HomeCode orchestration loop.
//
// It pairs a language model with a fixed set of developer tools and
// drives one user input through model calls interleaved with tool
// executions until a final textual answer is produced or a hard
// iteration limit is hit.
//
// The package is organized around these concepts:
//
//   - Loop: the per-session orchestrator and state machine. It reads
//     the history, calls the model, decodes the response as either a
//     final answer or a tool-call batch, runs requested tools strictly
//     in issued order, and appends results back to the history.
//   - ConversationStore: the append-only conversation history. It
//     enforces the tool-call pairing invariant on every append and
//     compacts the oldest turn groups when the serialized history
//     exceeds a byte budget.
//   - ToolRegistry: registration and lookup of the fixed tool set
//     (read_file, write_file, edit_file, run_bash, grep, glob).
//   - Executor: the containment boundary around tool execution. It
//     validates arguments against the tool's JSON schema, recovers from
//     tool panics, bounds execution time, and truncates output. Every
//     failure becomes a ToolResult, never an escaping error.
//   - Environment: abstraction for where tools run, with a local
//     implementation rooted at the working directory.
//   - EventEmitter: typed event stream the host application renders.
//
// The loop itself is strictly sequential: no two model calls or tool
// executions for the same session are ever in flight concurrently,
// because later tool calls may depend on the file-system side effects
// of earlier ones.
package agent
