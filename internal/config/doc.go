// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package config loads and validates Vigil's server configuration.
//
// Configuration is layered with koanf: struct defaults, then an optional
// YAML file (VIGIL_CONFIG_PATH or the DefaultConfigPaths search list), then
// VIGIL_* environment variables on top. Defaults mirror the pipeline
// packages, so an empty config runs the same pipeline an embedding caller
// gets from the library defaults.
//
// This package is pure data: it does not import the pipeline packages.
// cmd/vigil maps the loaded Config onto the component configs.
package config
