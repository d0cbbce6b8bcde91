// Package infra is the infrastructure resource ledger: typed external
// resources optionally linked to a service, with orphan tracking and
// reassignment.
package infra
