// Package app contains the core application logic. It wires recipe loading,
// the step registry, the executor and the run ledger together, decoupled
// from any specific entrypoint like a CLI.
package app
