// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package config defines the format-agnostic recipe model and the Loader
// interface that the concrete file formats (HCL, YAML) implement.
//
// A Model is the static recipe table of one invocation. It is built once by
// a Loader, validated against the step registry, and never mutated while a
// recipe runs. Argument values are kept as Expr so that they can be
// evaluated against the final environment of the invocation (process
// environment, dotenv overlay and recipe env) instead of the environment
// that happened to exist when the file was parsed.
package config
