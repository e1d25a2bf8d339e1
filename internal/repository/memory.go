package repository

import (
	"context"
	"sync"
	"time"

	"DoeInteligente/internal/model"
)

// SeedRequests возвращает демонстрационные заявки ленты (s1, s2, s3).
// Те же записи вставляет миграция 000002 для Postgres
func SeedRequests(now time.Time) []model.DonationRequest {
	seed := []model.DonationRequest{
		{
			ID:          "s1",
			OrgID:       "3",
			OrgName:     "Projeto Alimentar",
			Title:       "Doação de Cestas Básicas",
			Urgency:     model.UrgencyHigh,
			Description: "Apoio a 30 famílias em situação de vulnerabilidade no bairro XYZ.",
			CreatedAt:   now,
			Shareable:   true,
			Items: []model.RequestedItem{
				{Name: "Arroz", QuantityNeeded: 50, Unit: "kg"},
				{Name: "Feijão", QuantityNeeded: 40, Unit: "kg"},
				{Name: "Óleo", QuantityNeeded: 20, Unit: "L"},
			},
		},
		{
			ID:          "s2",
			OrgID:       "2",
			OrgName:     "Lar dos Idosos São José",
			Title:       "Higiene e Cuidados",
			Urgency:     model.UrgencyMedium,
			Description: "Itens de higiene pessoal para nossos residentes.",
			CreatedAt:   now,
			Shareable:   true,
			Items: []model.RequestedItem{
				{Name: "Fraldas geriátricas", QuantityNeeded: 100, Unit: "un"},
				{Name: "Sabonete", QuantityNeeded: 50, Unit: "un"},
			},
		},
		{
			ID:          "s3",
			OrgID:       "1",
			OrgName:     "Casa da Esperança",
			Title:       "Material Escolar",
			Urgency:     model.UrgencyLow,
			Description: "Ajuda para crianças atendidas pelo projeto de reforço escolar.",
			CreatedAt:   now,
			Shareable:   true,
			Items: []model.RequestedItem{
				{Name: "Cadernos", QuantityNeeded: 80, Unit: "un"},
				{Name: "Lápis", QuantityNeeded: 200, Unit: "un"},
				{Name: "Borrachas", QuantityNeeded: 120, Unit: "un"},
			},
		},
	}
	for i := range seed {
		seed[i].Refresh()
	}
	return seed
}

// MemoryRequestRepository хранит заявки в памяти процесса.
// Мьютекс делает Update атомарным: проверка и применение пожертвования
// выполняются над копией и фиксируются только при отсутствии ошибки
type MemoryRequestRepository struct {
	mu       sync.RWMutex
	requests []model.DonationRequest
}

// NewMemoryRequestRepository создаёт репозиторий с копиями переданных заявок
func NewMemoryRequestRepository(seed []model.DonationRequest) *MemoryRequestRepository {
	reqs := make([]model.DonationRequest, len(seed))
	for i, r := range seed {
		reqs[i] = r.Clone()
		reqs[i].Refresh()
	}
	return &MemoryRequestRepository{requests: reqs}
}

// List возвращает копии всех заявок в порядке добавления
func (m *MemoryRequestRepository) List(_ context.Context) ([]model.DonationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.DonationRequest, len(m.requests))
	for i, r := range m.requests {
		out[i] = r.Clone()
	}
	return out, nil
}

// Get возвращает копию заявки по id или ErrNotFound
func (m *MemoryRequestRepository) Get(_ context.Context, id string) (*model.DonationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.index(id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	r := m.requests[idx].Clone()
	return &r, nil
}

// Update вызывает fn над копией заявки; если fn вернула ошибку, хранилище не меняется
func (m *MemoryRequestRepository) Update(_ context.Context, id string, fn func(*model.DonationRequest) error) (*model.DonationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.index(id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	work := m.requests[idx].Clone()
	if err := fn(&work); err != nil {
		return nil, err
	}
	work.Refresh()
	m.requests[idx] = work
	out := work.Clone()
	return &out, nil
}

func (m *MemoryRequestRepository) index(id string) int {
	for i, r := range m.requests {
		if r.ID == id {
			return i
		}
	}
	return -1
}
