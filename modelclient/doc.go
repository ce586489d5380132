// Package modelclient is the model collaborator for the exploration core.
//
// It presents a provider-agnostic request/response interface over gollm:
// the core sends an ordered conversation plus tool definitions and receives
// either a final textual answer or proposed tool invocations. The wire
// format of each provider is owned by the adapter, not by callers.
//
// Errors follow a typed taxonomy with a retryable bit; Client.Complete
// applies the configured retry policy to retryable failures inside the
// caller's deadline.
package modelclient
