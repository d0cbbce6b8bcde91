package storage

import (
	"encoding/json"

	"github.com/codeops-dev/registry/pkg/types"
)

// PutTemplate writes (or overwrites) a config template.
func (t *Tx) PutTemplate(tpl *types.ConfigTemplate) error {
	return t.put(bucketTemplates, tpl.ID, tpl)
}

// GetTemplate loads a template by id.
func (t *Tx) GetTemplate(id string) (*types.ConfigTemplate, error) {
	var tpl types.ConfigTemplate
	found, err := t.load(bucketTemplates, id, &tpl)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("config template", id)
	}
	return &tpl, nil
}

// DeleteTemplate removes a template row.
func (t *Tx) DeleteTemplate(id string) error {
	return t.delete(bucketTemplates, id)
}

// TemplatesByService returns every template generated for one service.
func (t *Tx) TemplatesByService(serviceID string) ([]*types.ConfigTemplate, error) {
	var templates []*types.ConfigTemplate
	err := t.scan(bucketTemplates, func(v []byte) error {
		var tpl types.ConfigTemplate
		if err := json.Unmarshal(v, &tpl); err != nil {
			return err
		}
		if tpl.ServiceID == serviceID {
			templates = append(templates, &tpl)
		}
		return nil
	})
	return templates, err
}

// FindTemplate resolves (service, type, environment); nil before the
// first generation.
func (t *Tx) FindTemplate(serviceID string, tplType types.TemplateType, environment string) (*types.ConfigTemplate, error) {
	var match *types.ConfigTemplate
	err := t.scan(bucketTemplates, func(v []byte) error {
		if match != nil {
			return nil
		}
		var tpl types.ConfigTemplate
		if err := json.Unmarshal(v, &tpl); err != nil {
			return err
		}
		if tpl.ServiceID == serviceID && tpl.Type == tplType && tpl.Environment == environment {
			match = &tpl
		}
		return nil
	})
	return match, err
}
