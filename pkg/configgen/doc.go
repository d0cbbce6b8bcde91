// Package configgen is the configuration generator: deterministic
// synthesis of Docker-Compose files, application configuration,
// reference headers, and env files from aggregated registry state, with
// monotonically versioned upsert per (service, type, environment).
//
// YAML artifacts are built as yaml.Node trees so key order is exactly
// the specified document order; plain maps would alphabetize.
package configgen
