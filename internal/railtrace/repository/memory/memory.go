// Package memory provides a mutex-guarded in-memory Store with the same unique-key
// and conditional-update semantics as the postgres repositories.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"github.com/bitfantasy/railtrace/internal/railtrace/repository"
)

// Store 内存存储
type Store struct {
	mu            sync.RWMutex
	components    map[string]entity.Component
	byCode        map[string]string
	byQR          map[string]string
	byToken       map[string]string
	manufacturers map[string]entity.Manufacturer
	inspections   []entity.Inspection
	activities    []entity.ComponentActivity
	sequences     map[string]int64
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		components:    map[string]entity.Component{},
		byCode:        map[string]string{},
		byQR:          map[string]string{},
		byToken:       map[string]string{},
		manufacturers: map[string]entity.Manufacturer{},
		sequences:     map[string]int64{},
	}
}

// InTx runs fn directly; each call on the store is individually atomic.
func (s *Store) InTx(_ context.Context, fn func(tx repository.Store) error) error {
	return fn(s)
}

func (s *Store) InsertComponent(_ context.Context, c *entity.Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.components[c.ID]; ok {
		return repository.ErrDuplicateKey
	}
	if _, ok := s.byCode[c.ComponentID]; ok {
		return repository.ErrDuplicateKey
	}
	if _, ok := s.byQR[c.QRCode]; ok {
		return repository.ErrDuplicateKey
	}
	if _, ok := s.byToken[c.UUID]; ok {
		return repository.ErrDuplicateKey
	}
	s.components[c.ID] = *c
	s.byCode[c.ComponentID] = c.ID
	s.byQR[c.QRCode] = c.ID
	s.byToken[c.UUID] = c.ID
	return nil
}

func (s *Store) UpdateComponentIf(_ context.Context, id string, cond entity.ComponentCondition, patch entity.ComponentPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.components[id]
	if !ok || !cond.Matches(&c) {
		return false, nil
	}
	patch.Apply(&c)
	s.components[id] = c
	return true, nil
}

func (s *Store) FindComponent(_ context.Context, id string) (*entity.Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.components[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *Store) FindComponentByCode(ctx context.Context, code string) (*entity.Component, error) {
	s.mu.RLock()
	id, ok := s.byCode[code]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.FindComponent(ctx, id)
}

func (s *Store) ListComponents(_ context.Context, filter entity.ComponentFilter, page, pageSize int) ([]entity.Component, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []entity.Component
	for _, c := range s.components {
		if filter.ManufacturerID != "" && c.ManufacturerID != filter.ManufacturerID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.QCStatus != "" && c.QCStatus != filter.QCStatus {
			continue
		}
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].GeneratedAt.Equal(items[j].GeneratedAt) {
			return items[i].GeneratedAt.After(items[j].GeneratedAt)
		}
		return items[i].ComponentID > items[j].ComponentID
	})

	total := int64(len(items))
	if pageSize <= 0 {
		return items, total, nil
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []entity.Component{}, total, nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total, nil
}

// AddManufacturer seeds a manufacturer record.
func (s *Store) AddManufacturer(m entity.Manufacturer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manufacturers[m.ID] = m
}

func (s *Store) FindManufacturer(_ context.Context, id string) (*entity.Manufacturer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.manufacturers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (s *Store) FindManufacturerByUsername(_ context.Context, username string) (*entity.Manufacturer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.manufacturers {
		if m.Username == username {
			m := m
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) InsertInspection(_ context.Context, in *entity.Inspection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inspections = append(s.inspections, *in)
	return nil
}

func (s *Store) ListInspectionsByComponent(_ context.Context, componentID string) ([]entity.Inspection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []entity.Inspection
	for i := len(s.inspections) - 1; i >= 0; i-- {
		if s.inspections[i].ComponentID == componentID {
			items = append(items, s.inspections[i])
		}
	}
	// 插入顺序倒序后再按时间稳定排序
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].InspectedAt.After(items[j].InspectedAt)
	})
	return items, nil
}

func (s *Store) InsertActivity(_ context.Context, a *entity.ComponentActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = repository.NewID()
	}
	s.activities = append(s.activities, *a)
	return nil
}

func (s *Store) ListActivities(_ context.Context, componentID string) ([]entity.ComponentActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []entity.ComponentActivity
	for i := len(s.activities) - 1; i >= 0; i-- {
		if s.activities[i].EntityID == componentID {
			items = append(items, s.activities[i])
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Next implements allocator.Sequencer.
func (s *Store) Next(_ context.Context, day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[day]++
	return s.sequences[day], nil
}
