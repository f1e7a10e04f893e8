// Package llm is the generation service boundary.
//
// Generator is the interface the transform and roundup stages depend on. A
// Request carries system and user prompts plus a JSON Schema; a Response
// carries the structured payload and the token counts the usage ledger
// meters.
//
// Two providers implement it:
//   - Client talks to an OpenRouter-compatible chat completion endpoint,
//     sending the schema as a json_schema response_format and reading token
//     usage from the response body.
//   - Anthropic wraps a langchaingo model and embeds the schema in the system
//     prompt.
//
// # Retry Behaviour
//
// Client retries on HTTP 408/429/5xx errors, empty content, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default), honouring Retry-After. Context cancellation aborts retries
// immediately. The pipeline itself never retries a failed item within a run.
//
// DecodeLLMJSON tolerates code fences and leading prose around the payload.
package llm
