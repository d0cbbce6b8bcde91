package storage

import (
	"encoding/json"

	"github.com/codeops-dev/registry/pkg/types"
)

// ForEachService walks every service record across teams.
func (t *Tx) ForEachService(fn func(*types.Service) error) error {
	return t.scan(bucketServices, func(v []byte) error {
		var svc types.Service
		if err := json.Unmarshal(v, &svc); err != nil {
			return err
		}
		return fn(&svc)
	})
}

// ForEachDependency walks every dependency edge across teams.
func (t *Tx) ForEachDependency(fn func(*types.ServiceDependency) error) error {
	return t.scan(bucketDependencies, func(v []byte) error {
		var d types.ServiceDependency
		if err := json.Unmarshal(v, &d); err != nil {
			return err
		}
		return fn(&d)
	})
}

// ForEachAllocation walks every port allocation across teams.
func (t *Tx) ForEachAllocation(fn func(*types.PortAllocation) error) error {
	return t.scan(bucketPortAllocations, func(v []byte) error {
		var a types.PortAllocation
		if err := json.Unmarshal(v, &a); err != nil {
			return err
		}
		return fn(&a)
	})
}
