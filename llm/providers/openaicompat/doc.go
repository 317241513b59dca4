// Package openaicompat is the shared adapter for OpenAI-compatible chat
// completion APIs (OpenAI, DeepSeek, Qwen, GLM, Grok and friends embed or
// configure it). It is the reference reasoning adapter: reasoning arrives
// and is replayed through the `reasoning_content` side-channel field on
// messages and streaming deltas.
//
// Decode degradations on the reasoning field never fail a turn: absent or
// empty fields yield nothing, wrong-type fields are skipped with a
// diagnostic, oversized fields are truncated with a visible marker. The
// ordinary text and tool-call content of the message is always delivered.
package openaicompat
