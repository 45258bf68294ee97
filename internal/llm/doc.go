// Package llm provides AI-backed FODMAP classification: provider clients for
// external generative-text APIs, prompt construction, response parsing, call
// rate limiting and result caching.
package llm
