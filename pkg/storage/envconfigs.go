package storage

import (
	"encoding/json"

	"github.com/codeops-dev/registry/pkg/types"
)

// PutEnvConfig writes (or overwrites) an environment-config row.
func (t *Tx) PutEnvConfig(c *types.EnvConfig) error {
	return t.put(bucketEnvConfigs, c.ID, c)
}

// GetEnvConfig loads a row by id.
func (t *Tx) GetEnvConfig(id string) (*types.EnvConfig, error) {
	var c types.EnvConfig
	found, err := t.load(bucketEnvConfigs, id, &c)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("env config", id)
	}
	return &c, nil
}

// DeleteEnvConfig removes a row.
func (t *Tx) DeleteEnvConfig(id string) error {
	return t.delete(bucketEnvConfigs, id)
}

// EnvConfigsByService returns every row of one service.
func (t *Tx) EnvConfigsByService(serviceID string) ([]*types.EnvConfig, error) {
	var configs []*types.EnvConfig
	err := t.scan(bucketEnvConfigs, func(v []byte) error {
		var c types.EnvConfig
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		if c.ServiceID == serviceID {
			configs = append(configs, &c)
		}
		return nil
	})
	return configs, err
}

// FindEnvConfig resolves (service, environment, key); nil when absent.
func (t *Tx) FindEnvConfig(serviceID, environment, key string) (*types.EnvConfig, error) {
	var match *types.EnvConfig
	err := t.scan(bucketEnvConfigs, func(v []byte) error {
		if match != nil {
			return nil
		}
		var c types.EnvConfig
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		if c.ServiceID == serviceID && c.Environment == environment && c.Key == key {
			match = &c
		}
		return nil
	})
	return match, err
}
