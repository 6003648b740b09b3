// Package hcl provides the HCL implementation of config.Loader. It parses
// recipe files, translates recipe and step blocks into the format-agnostic
// model, and wraps attribute expressions so they are evaluated against the
// invocation environment when a step runs.
package hcl
