// Package prompt loads stage system prompts as Go text templates.
//
// Prompts are resolved in precedence order: project-local overrides in
// .reqflow/prompts/ and prompts/, then the defaults embedded in the binary.
// Templates may use helper functions (join, trim, upper, lower, title,
// contains, indent) and are cached after first load.
package prompt
