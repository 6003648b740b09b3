// Package executor runs recipes.
//
// A recipe is executed strictly sequentially: each step's arguments are
// evaluated against the invocation environment, the step is echoed, and its
// handler runs to completion before the next one starts. The first step that
// exits non-zero ends the recipe unless keep-going is enabled, in which case
// the remaining steps still run and the first failure is reported.
package executor
