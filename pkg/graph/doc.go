// Package graph is the dependency graph engine: validated edge insertion
// under the team acyclicity invariant, impact analysis via reverse BFS,
// startup ordering via Kahn's algorithm, and cycle extraction.
//
// Adjacency is rebuilt per request from the edges loaded in the same
// transaction; there is no shared mutable graph.
package graph
