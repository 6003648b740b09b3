// Package registry provides the glue between recipe files and compiled step
// handlers.
//
// The Registry maps a step kind (the label of a `step "<kind>"` block, or
// the implicit "shell" kind of a `commands` entry) to the Go handler that
// executes it, together with the argument schema that handler accepts.
// During startup the loaded model is validated against the registry so that
// unknown kinds, missing required arguments and misspelled arguments are
// reported before any command runs.
package registry
