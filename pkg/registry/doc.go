// Package registry fronts the entity store for service records: creation
// with team-unique slugs and caps, lifecycle updates, guarded deletion
// with ownership cascades, cloning, and the full identity bundle.
package registry
