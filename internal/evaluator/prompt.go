package evaluator

import (
	_ "embed"
)

// SystemPrompt is the system-level instruction for the vision model.
// Loaded from prompts/system.md at compile time.
//
//go:embed prompts/system.md
var SystemPrompt string

// UserPromptTemplate is the user-level prompt template. The specification
// text is appended after this template at runtime; the screenshot is
// attached as an inline image block.
// Loaded from prompts/user.md at compile time.
//
//go:embed prompts/user.md
var UserPromptTemplate string
