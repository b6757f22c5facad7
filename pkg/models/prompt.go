package models

// User prompt columns.
const (
	PromptColumnText = "prompt_text"

	// Join columns between user_prompts and sdk_sessions. The current schema
	// uses content_session_id; the engram schema uses claude_session_id.
	PromptColumnContentSessionID = "content_session_id"
	PromptColumnClaudeSessionID  = "claude_session_id"
)
