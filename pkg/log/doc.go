/*
Package log provides structured logging for the CodeOps registry using
zerolog.

The log package wraps the zerolog library to provide JSON-structured
logging with component-specific loggers and configurable log levels. All
logs include timestamps and support filtering by severity level.

# Architecture

	┌──────────────────── LOGGING SYSTEM ───────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐           │
	│  │            Global Logger                    │           │
	│  │  - Zerolog instance                         │           │
	│  │  - Initialized via log.Init()               │           │
	│  │  - Thread-safe for concurrent use           │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │           Component Loggers                 │           │
	│  │  registry / ports / graph / routes / api    │           │
	│  │  health / configgen / topology / seed       │           │
	│  └────────────────────────────────────────────┘           │
	│                                                            │
	└────────────────────────────────────────────────────────────┘

# Usage

Initialize once at startup:

	log.Init(log.Config{Level: "info", JSON: true})

Then derive component loggers:

	logger := log.WithComponent("ports")
	logger.Info().Str("team_id", teamID).Int("port", 8081).Msg("port allocated")

Console output (JSON: false) is intended for interactive runs; JSON
output for anything that ships logs.
*/
package log
