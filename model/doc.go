// Package model defines the language-model collaborator boundary. The core
// calls a Completer as an opaque function: prompt plus bound tool specs in,
// text out. Prompt construction details and provider tool-calling internals
// stay behind this interface; concrete adapters live in the anthropic and
// openai subpackages.
package model
