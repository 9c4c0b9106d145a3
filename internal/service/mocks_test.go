package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/internal/repository"
)

var errStoreDown = errors.New("store unavailable")

// mockEventRepository is a mock implementation of EventRepository for testing
type mockEventRepository struct {
	mu          sync.Mutex
	histories   map[string]map[string]*models.ItemHistory // user -> item -> history
	failItems   map[string]bool                           // item -> GetHistory fails
	failErr     error                                     // returned for failItems, default errStoreDown
	listErr     error
	historyHits int
}

func newMockEventRepository() *mockEventRepository {
	return &mockEventRepository{
		histories: make(map[string]map[string]*models.ItemHistory),
		failItems: make(map[string]bool),
	}
}

func (m *mockEventRepository) add(userID string, h models.ItemHistory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.histories[userID] == nil {
		m.histories[userID] = make(map[string]*models.ItemHistory)
	}
	m.histories[userID][h.ItemName] = &h
}

func (m *mockEventRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var ids []string
	for id := range m.histories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockEventRepository) ListItems(ctx context.Context, userID string) ([]models.ItemKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var keys []models.ItemKey
	for _, h := range m.histories[userID] {
		keys = append(keys, models.ItemKey{ItemName: h.ItemName, Category: h.Category})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ItemName < keys[j].ItemName })
	return keys, nil
}

func (m *mockEventRepository) GetHistory(ctx context.Context, userID, itemName string) (*models.ItemHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyHits++
	if m.failItems[itemName] {
		if m.failErr != nil {
			return nil, m.failErr
		}
		return nil, errStoreDown
	}
	h, ok := m.histories[userID][itemName]
	if !ok {
		return &models.ItemHistory{ItemName: itemName}, nil
	}
	cp := *h
	return &cp, nil
}

func (m *mockEventRepository) LastAcquiredAt(ctx context.Context, userID string) (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := make(map[string]time.Time)
	for name, h := range m.histories[userID] {
		for _, a := range h.Acquisitions {
			if a.OccurredAt.After(last[name]) {
				last[name] = a.OccurredAt
			}
		}
	}
	return last, nil
}

func (m *mockEventRepository) CountEvents(ctx context.Context, userID string) (models.EventCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c models.EventCounts
	for _, h := range m.histories[userID] {
		c.Acquisitions += len(h.Acquisitions)
		c.Depletions += len(h.Depletions)
	}
	return c, nil
}

// mockPredictionRepository is a mock implementation of PredictionRepository for testing
type mockPredictionRepository struct {
	mu          sync.Mutex
	rows        map[string]map[string]models.Prediction // user -> item -> row
	upsertErr   map[string]bool
	upsertCalls int
}

func newMockPredictionRepository() *mockPredictionRepository {
	return &mockPredictionRepository{
		rows:      make(map[string]map[string]models.Prediction),
		upsertErr: make(map[string]bool),
	}
}

func (m *mockPredictionRepository) Upsert(ctx context.Context, p *models.Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertErr[p.ItemName] {
		return errStoreDown
	}
	if m.rows[p.UserID] == nil {
		m.rows[p.UserID] = make(map[string]models.Prediction)
	}
	p.ID = "pred-" + p.ItemName
	m.rows[p.UserID][p.ItemName] = *p
	return nil
}

func (m *mockPredictionRepository) List(ctx context.Context, userID string, filter models.PredictionFilter) ([]models.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Prediction
	for _, p := range m.rows[userID] {
		if filter.Urgency != nil && p.Urgency != *filter.Urgency {
			continue
		}
		if filter.MinConfidence != nil && p.Confidence.Rank() < filter.MinConfidence.Rank() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockPredictionRepository) Get(ctx context.Context, userID, itemName string) (*models.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID][models.NormalizeItemName(itemName)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *mockPredictionRepository) DeleteItems(ctx context.Context, userID string, itemNames []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, name := range itemNames {
		if _, ok := m.rows[userID][name]; ok {
			delete(m.rows[userID], name)
			n++
		}
	}
	return n, nil
}

func (m *mockPredictionRepository) Count(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[userID]), nil
}

func (m *mockPredictionRepository) snapshot(userID string) map[string]models.Prediction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Prediction, len(m.rows[userID]))
	for k, v := range m.rows[userID] {
		out[k] = v
	}
	return out
}
