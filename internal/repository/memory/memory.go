// Package memory keeps buyers, fee plans and deposit records in process memory.
// It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"
)

type Store struct {
	mu       sync.RWMutex
	buyers   map[int]models.Buyer
	plans    map[string]models.FeePlan
	deposits []models.TransactionRecord
	nextDep  int64
}

func NewStore() *Store {
	return &Store{
		buyers: make(map[int]models.Buyer),
		plans:  make(map[string]models.FeePlan),
	}
}

var (
	_ ports.BuyerRepository   = (*Store)(nil)
	_ ports.FeePlanRepository = (*Store)(nil)
	_ ports.DepositRepository = (*Store)(nil)
)

func (s *Store) NextID(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	next := 1
	for id := range s.buyers {
		if id >= next {
			next = id + 1
		}
	}
	return next, nil
}

func (s *Store) Exists(_ context.Context, id int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buyers[id]
	return ok, nil
}

func (s *Store) Create(_ context.Context, b *models.Buyer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buyers[b.ID]; ok {
		return ports.ErrDuplicate
	}
	s.buyers[b.ID] = cloneBuyer(b)
	return nil
}

func (s *Store) FindByID(_ context.Context, id int) (*models.Buyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buyers[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	out := cloneBuyer(&b)
	return &out, nil
}

func (s *Store) FindByName(_ context.Context, name string) (*models.Buyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.sortedLocked() {
		if b.Name == name {
			out := cloneBuyer(&b)
			return &out, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (s *Store) Search(_ context.Context, f ports.BuyerFilter) ([]models.Buyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Buyer, 0)
	for _, b := range s.sortedLocked() {
		if f.ID != nil && b.ID != *f.ID {
			continue
		}
		if f.IDContains != "" && !strings.Contains(strconv.Itoa(b.ID), f.IDContains) {
			continue
		}
		if f.Name != "" && b.Name != f.Name {
			continue
		}
		if f.NameContains != "" && !strings.Contains(b.Name, f.NameContains) {
			continue
		}
		out = append(out, cloneBuyer(&b))
	}
	return out, nil
}

func (s *Store) Save(_ context.Context, b *models.Buyer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyers[b.ID] = cloneBuyer(b)
	return nil
}

func (s *Store) SaveWithDeposit(_ context.Context, b *models.Buyer, rec *models.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buyers[b.ID]; !ok {
		return fmt.Errorf("buyer %d: %w", b.ID, ports.ErrNotFound)
	}
	s.insertLocked(rec)
	s.buyers[b.ID] = cloneBuyer(b)
	return nil
}

func (s *Store) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buyers, id)
	for i := range s.deposits {
		if d := &s.deposits[i]; d.BuyerID != nil && *d.BuyerID == id {
			d.BuyerID = nil
			d.Unlinked = true
		}
	}
	return nil
}

func (s *Store) CountByStatus(_ context.Context, status models.BuyerStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, b := range s.buyers {
		if b.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) sortedLocked() []models.Buyer {
	out := make([]models.Buyer, 0, len(s.buyers))
	for _, b := range s.buyers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PutPlan registers or replaces a fee plan.
func (s *Store) PutPlan(p models.FeePlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Phases = append([]models.FeePhaseDefinition(nil), p.Phases...)
	s.plans[planKey(p.GroupKey, p.Batch)] = p
}

func (s *Store) FindByKey(_ context.Context, groupKey, batch string) (*models.FeePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[planKey(groupKey, batch)]
	if !ok {
		return nil, nil
	}
	p.Phases = append([]models.FeePhaseDefinition(nil), p.Phases...)
	return &p, nil
}

func planKey(groupKey, batch string) string { return groupKey + "\x00" + batch }

func (s *Store) Insert(_ context.Context, rec *models.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(rec)
	return nil
}

func (s *Store) insertLocked(rec *models.TransactionRecord) {
	if rec.ID == 0 {
		s.nextDep++
		rec.ID = s.nextDep
	} else if rec.ID > s.nextDep {
		s.nextDep = rec.ID
	}
	cp := *rec
	cp.TargetPhases = append([]int(nil), rec.TargetPhases...)
	cp.Warnings = append([]string(nil), rec.Warnings...)
	cp.BuyerID = clonePtr(rec.BuyerID)
	s.deposits = append(s.deposits, cp)
}

func (s *Store) List(_ context.Context) ([]models.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.TransactionRecord(nil), s.deposits...), nil
}

func cloneBuyer(b *models.Buyer) models.Buyer {
	out := *b
	out.Phases = make([]models.Phase, len(b.Phases))
	for i, p := range b.Phases {
		p.ScheduledDate = clonePtr(p.ScheduledDate)
		p.PaidInFullDate = clonePtr(p.PaidInFullDate)
		out.Phases[i] = p
	}
	if b.Summary != nil {
		sum := *b.Summary
		out.Summary = &sum
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
