package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
)

// Buildings is an in-memory BuildingStore with fixed stats.
type Buildings struct {
	Rows      []model.Building
	StatsByID map[uint64]model.BuildingStats
}

func (s *Buildings) List(_ context.Context, q string) ([]model.Building, error) {
	var out []model.Building
	for _, b := range s.Rows {
		if q == "" || strings.Contains(strings.ToLower(b.Name), strings.ToLower(q)) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Buildings) Get(_ context.Context, id uint64) (model.Building, error) {
	for _, b := range s.Rows {
		if b.ID == id {
			return b, nil
		}
	}
	return model.Building{}, repository.ErrBuildingNotFound
}

func (s *Buildings) Stats(_ context.Context, id uint64) (model.BuildingStats, error) {
	return s.StatsByID[id], nil
}

// Properties is an in-memory PropertyStore. Contracts, when set, answers
// ListRentedBy.
type Properties struct {
	mu        sync.Mutex
	rows      map[uint64]model.Property
	Contracts *Contracts
}

func NewProperties(seed ...model.Property) *Properties {
	s := &Properties{rows: map[uint64]model.Property{}}
	for _, p := range seed {
		s.rows[p.ID] = p
	}
	return s
}

func (s *Properties) List(_ context.Context, f repository.PropertyFilter) ([]model.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Property
	for _, p := range s.rows {
		switch {
		case f.Status != "" && p.Status != f.Status:
			continue
		case f.BuildingID != 0 && (p.BuildingID == nil || *p.BuildingID != f.BuildingID):
			continue
		case f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)):
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Properties) Get(_ context.Context, id uint64) (model.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return p, repository.ErrPropertyNotFound
	}
	return p, nil
}

func (s *Properties) ListRentedBy(ctx context.Context, tenantID uint64) ([]model.Property, error) {
	if s.Contracts == nil {
		return nil, nil
	}
	cs, _ := s.Contracts.List(ctx, repository.ContractFilter{TenantID: tenantID, State: model.ContractActive})
	var out []model.Property
	for _, c := range cs {
		if p, err := s.Get(ctx, c.PropertyID); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Properties) setStatus(id uint64, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.rows[id]; ok {
		p.Status = status
		s.rows[id] = p
	}
}

// Contracts is an in-memory ContractStore. Properties, when set, has its
// status updated on activation and close.
type Contracts struct {
	mu         sync.Mutex
	rows       map[uint64]model.Contract
	Properties *Properties
}

func NewContracts(seed ...model.Contract) *Contracts {
	s := &Contracts{rows: map[uint64]model.Contract{}}
	for _, c := range seed {
		s.rows[c.ID] = c
	}
	return s
}

func (s *Contracts) List(_ context.Context, f repository.ContractFilter) ([]model.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Contract
	for _, c := range s.rows {
		switch {
		case f.TenantID != 0 && c.TenantID != f.TenantID:
			continue
		case f.PropertyID != 0 && c.PropertyID != f.PropertyID:
			continue
		case f.State != "" && c.State != f.State:
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Contracts) Get(_ context.Context, id uint64) (model.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return c, repository.ErrContractNotFound
	}
	return c, nil
}

func (s *Contracts) ActiveForProperty(_ context.Context, propertyID uint64) (model.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.rows {
		if c.PropertyID == propertyID && c.State == model.ContractActive {
			return c, nil
		}
	}
	return model.Contract{}, repository.ErrContractNotFound
}

func (s *Contracts) Activate(_ context.Context, id uint64) error {
	s.mu.Lock()
	c, ok := s.rows[id]
	if !ok || c.State != model.ContractDraft {
		s.mu.Unlock()
		return repository.ErrContractNotFound
	}
	for _, o := range s.rows {
		if o.ID != id && o.PropertyID == c.PropertyID && o.State == model.ContractActive {
			s.mu.Unlock()
			return repository.ErrConflict
		}
	}
	c.State = model.ContractActive
	s.rows[id] = c
	s.mu.Unlock()
	if s.Properties != nil {
		s.Properties.setStatus(c.PropertyID, model.PropertyOccupied)
	}
	return nil
}

func (s *Contracts) Close(_ context.Context, id uint64, state string, at time.Time) error {
	s.mu.Lock()
	c, ok := s.rows[id]
	if !ok || c.State != model.ContractActive {
		s.mu.Unlock()
		return repository.ErrContractNotFound
	}
	c.State = state
	if state == model.ContractTerminated {
		c.TerminatedAt = &at
	}
	s.rows[id] = c
	s.mu.Unlock()
	if s.Properties != nil {
		s.Properties.setStatus(c.PropertyID, model.PropertyAvailable)
	}
	return nil
}

// Schedules is an in-memory ScheduleStore.
type Schedules struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]model.ScheduleEntry
}

func NewSchedules() *Schedules { return &Schedules{rows: map[uint64]model.ScheduleEntry{}} }

func (s *Schedules) ListByContract(_ context.Context, contractID uint64) ([]model.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byContract(contractID), nil
}

func (s *Schedules) byContract(contractID uint64) []model.ScheduleEntry {
	var out []model.ScheduleEntry
	for _, e := range s.rows {
		if e.ContractID == contractID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (s *Schedules) ReplacePending(_ context.Context, contractID uint64, entries []model.ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.rows {
		if e.ContractID == contractID && e.State == model.SchedulePending && e.InvoiceID == nil {
			delete(s.rows, id)
		}
	}
	for _, e := range entries {
		s.next++
		e.ID = s.next
		e.ContractID = contractID
		e.State = model.SchedulePending
		e.InvoiceID = nil
		s.rows[e.ID] = e
	}
	return nil
}

func (s *Schedules) NextPending(_ context.Context, contractID uint64) (model.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.ScheduleEntry
	for _, e := range s.byContract(contractID) {
		if e.State != model.SchedulePending || e.InvoiceID != nil {
			continue
		}
		if best == nil || e.DueDate.Before(best.DueDate) {
			e := e
			best = &e
		}
	}
	if best == nil {
		return model.ScheduleEntry{}, repository.ErrScheduleNotFound
	}
	return *best, nil
}

func (s *Schedules) MarkInvoiced(_ context.Context, id, invoiceID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok || e.InvoiceID != nil {
		return repository.ErrScheduleNotFound
	}
	e.InvoiceID = &invoiceID
	e.State = model.ScheduleInvoiced
	s.rows[id] = e
	return nil
}

func (s *Schedules) Upcoming(_ context.Context, contractIDs []uint64, from time.Time, limit int) ([]model.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[uint64]bool{}
	for _, id := range contractIDs {
		want[id] = true
	}
	var out []model.ScheduleEntry
	for _, e := range s.rows {
		if want[e.ContractID] && e.State == model.SchedulePending && !e.DueDate.Before(from) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
