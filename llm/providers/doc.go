// Package providers holds shared helpers for the concrete provider
// adapters: HTTP error mapping onto the llm.Error taxonomy and error-body
// parsing. The adapters themselves live in subpackages (openaicompat,
// anthropic, gemini).
package providers
