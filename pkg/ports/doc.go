// Package ports is the port allocation engine: range-partitioned,
// collision-free allocation per (team, environment, port type) with
// gap-filling, fallback to the local-environment range, range
// management, and post-hoc conflict detection.
package ports
