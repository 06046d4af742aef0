// Package main hosts the ctcurator CLI entrypoint and command graph.
//
// The Cobra-based command tree maps terminal invocations onto the
// pipeline stages: curation with export, surface extraction, the
// registration audit, journal reporting, and configuration
// scaffolding. It centralizes configuration resolution, the output
// lock, and structured logging setup so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the
// internal packages first, then surface it through dedicated commands
// or flags here.
package main
