// Package prompts contains all LLM prompt templates and fixed notice
// strings used by the orchestration loop.
//
// Prompt text is Go code rather than config files because it is program
// logic: templates use fmt.Sprintf interpolation, benefit from
// compile-time embedding, and can be validated by tests. User-facing
// configuration lives in config.yaml; this package holds the
// instructions we send to models and the synthetic turns the loop
// injects (gap markers, continuation prompts, limit notices).
//
// Convention: each prompt category gets its own file (system.go,
// compaction.go, loop.go) with exported functions that accept the
// dynamic parts and return the fully interpolated string.
package prompts
