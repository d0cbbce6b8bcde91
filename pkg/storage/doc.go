/*
Package storage persists the registry's entities in a single bbolt file.

One bucket per entity holds JSON-encoded records keyed by id. Natural-key
lookups (slug, port, range key, edge key, member key, template key) are
in-transaction scans; teams are small enough that indexes would buy
nothing over a bucket walk.

# Transactions

The store exposes closure-scoped transactions:

	err := store.Update(func(tx *storage.Tx) error {
		svc, err := tx.GetService(id)
		if err != nil {
			return err
		}
		svc.Status = types.ServiceStatusInactive
		return tx.PutService(svc)
	})

bbolt admits one writer at a time, so every check-then-write sequence an
engine performs inside Update (slug-collision scan + insert, port scan +
insert, acyclicity check + edge insert, version read + bump) is
serializable. View transactions read from a consistent snapshot.

# Cascades

DeleteService removes the service's allocations, routes (owned or
gatewayed), env configs, templates, and dependency edges in the same
transaction, orphans its infra resources, and scrubs it from workstation
profiles. DeleteSolution removes its member rows. Callers enforce the
delete guards before cascading.

Lookup misses surface as apperrors.KindNotFound with the entity name and
id in the message.
*/
package storage
