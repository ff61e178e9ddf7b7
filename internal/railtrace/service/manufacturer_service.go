package service

import (
	"context"

	"github.com/bitfantasy/railtrace/internal/railtrace/authz"
	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
)

// ManufacturerService 制造商服务
type ManufacturerService struct {
	*base
}

// Me returns the profile of the calling manufacturer.
func (s *ManufacturerService) Me(ctx context.Context, actor authz.Actor) (*entity.Manufacturer, error) {
	if err := s.gate.Authorize(actor, authz.OpViewProfile, authz.Target{}); err != nil {
		return nil, err
	}
	m, err := s.store.FindManufacturerByUsername(ctx, actor.Username)
	if err != nil {
		return nil, storeError(err, "manufacturer profile %s", actor.Username)
	}
	return m, nil
}
