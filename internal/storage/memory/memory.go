// Package memory provides in-memory implementations of the domain
// collaborators. The real application fronts a persistence layer; these
// stores back the default binary and the tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/deca/lifetrack-voice/pkg/types"
)

// Stores bundles one in-memory instance of every domain store.
type Stores struct {
	Schedule     *ScheduleStore
	Transactions *TransactionStore
	Workouts     *WorkoutStore
	Food         *FoodStore
	CheckIns     *CheckInStore
	Goals        *GoalStore
}

// NewStores creates a fresh set of empty stores.
func NewStores() *Stores {
	return &Stores{
		Schedule:     &ScheduleStore{},
		Transactions: &TransactionStore{},
		Workouts:     &WorkoutStore{},
		Food:         &FoodStore{},
		CheckIns:     &CheckInStore{},
		Goals:        &GoalStore{},
	}
}

func applyString(updates map[string]any, key string, dst *string) {
	if v, ok := updates[key].(string); ok {
		*dst = v
	}
}

func applyNumber(updates map[string]any, key string, dst *float64) {
	if v, ok := updates[key].(float64); ok {
		*dst = v
	}
}

// ScheduleStore holds schedule items.
type ScheduleStore struct {
	mu    sync.RWMutex
	items []types.ScheduleItem
}

func (s *ScheduleStore) List(ctx context.Context) ([]types.ScheduleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ScheduleItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *ScheduleStore) Add(ctx context.Context, item types.ScheduleItem) (types.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = uuid.New().String()
	s.items = append(s.items, item)
	return item, nil
}

func (s *ScheduleStore) AddBatch(ctx context.Context, items []types.ScheduleItem) ([]types.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := make([]types.ScheduleItem, 0, len(items))
	for _, item := range items {
		item.ID = uuid.New().String()
		s.items = append(s.items, item)
		added = append(added, item)
	}
	return added, nil
}

func (s *ScheduleStore) GetByID(ctx context.Context, id string) (types.ScheduleItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true, nil
		}
	}
	return types.ScheduleItem{}, false, nil
}

func (s *ScheduleStore) Update(ctx context.Context, id string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		applyString(updates, "title", &s.items[i].Title)
		applyString(updates, "date", &s.items[i].Date)
		applyString(updates, "startTime", &s.items[i].StartTime)
		applyString(updates, "endTime", &s.items[i].EndTime)
		applyString(updates, "category", &s.items[i].Category)
		applyString(updates, "recurrence", &s.items[i].Recurrence)
		return nil
	}
	return fmt.Errorf("schedule item %s not found", id)
}

func (s *ScheduleStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("schedule item %s not found", id)
}

// TransactionStore holds transactions.
type TransactionStore struct {
	mu  sync.RWMutex
	txs []types.Transaction
}

func (s *TransactionStore) List(ctx context.Context) ([]types.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Transaction, len(s.txs))
	copy(out, s.txs)
	return out, nil
}

func (s *TransactionStore) Add(ctx context.Context, tx types.Transaction) (types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = uuid.New().String()
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *TransactionStore) Update(ctx context.Context, id string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.txs {
		if s.txs[i].ID != id {
			continue
		}
		applyString(updates, "type", &s.txs[i].Type)
		applyNumber(updates, "amount", &s.txs[i].Amount)
		applyString(updates, "category", &s.txs[i].Category)
		applyString(updates, "description", &s.txs[i].Description)
		applyString(updates, "date", &s.txs[i].Date)
		return nil
	}
	return fmt.Errorf("transaction %s not found", id)
}

func (s *TransactionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.txs {
		if s.txs[i].ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s not found", id)
}

// WorkoutStore holds workouts.
type WorkoutStore struct {
	mu       sync.RWMutex
	workouts []types.Workout
}

func (s *WorkoutStore) List(ctx context.Context) ([]types.Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Workout, len(s.workouts))
	copy(out, s.workouts)
	return out, nil
}

func (s *WorkoutStore) Add(ctx context.Context, w types.Workout) (types.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.ID = uuid.New().String()
	s.workouts = append(s.workouts, w)
	return w, nil
}

func (s *WorkoutStore) Update(ctx context.Context, id string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.workouts {
		if s.workouts[i].ID != id {
			continue
		}
		applyString(updates, "title", &s.workouts[i].Title)
		applyString(updates, "type", &s.workouts[i].Type)
		applyString(updates, "date", &s.workouts[i].Date)
		if v, ok := updates["duration"].(float64); ok {
			s.workouts[i].Duration = int(v)
		}
		return nil
	}
	return fmt.Errorf("workout %s not found", id)
}

func (s *WorkoutStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.workouts {
		if s.workouts[i].ID == id {
			s.workouts = append(s.workouts[:i], s.workouts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("workout %s not found", id)
}

// FoodStore holds food entries.
type FoodStore struct {
	mu      sync.RWMutex
	entries []types.FoodEntry
}

func (s *FoodStore) List(ctx context.Context) ([]types.FoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.FoodEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *FoodStore) Add(ctx context.Context, e types.FoodEntry) (types.FoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.New().String()
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *FoodStore) Update(ctx context.Context, id string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}
		applyString(updates, "name", &s.entries[i].Name)
		applyNumber(updates, "calories", &s.entries[i].Calories)
		applyString(updates, "mealType", &s.entries[i].MealType)
		applyString(updates, "date", &s.entries[i].Date)
		return nil
	}
	return fmt.Errorf("food entry %s not found", id)
}

func (s *FoodStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("food entry %s not found", id)
}

// CheckInStore holds daily check-ins keyed by date. Logging twice on the same
// date overwrites the earlier check-in.
type CheckInStore struct {
	mu       sync.RWMutex
	checkIns map[string]types.CheckIn
}

func (s *CheckInStore) GetByDate(ctx context.Context, date string) (types.CheckIn, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.checkIns[date]
	return c, ok, nil
}

func (s *CheckInStore) Log(ctx context.Context, c types.CheckIn) (types.CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkIns == nil {
		s.checkIns = make(map[string]types.CheckIn)
	}
	if existing, ok := s.checkIns[c.Date]; ok {
		c.ID = existing.ID
	} else {
		c.ID = uuid.New().String()
	}
	s.checkIns[c.Date] = c
	return c, nil
}

func (s *CheckInStore) Update(ctx context.Context, date string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.checkIns[date]
	if !ok {
		return fmt.Errorf("check-in for %s not found", date)
	}
	applyNumber(updates, "sleepHours", &c.SleepHours)
	applyString(updates, "quality", &c.Quality)
	s.checkIns[date] = c
	return nil
}

func (s *CheckInStore) Delete(ctx context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkIns[date]; !ok {
		return fmt.Errorf("check-in for %s not found", date)
	}
	delete(s.checkIns, date)
	return nil
}

// GoalStore holds goals.
type GoalStore struct {
	mu    sync.RWMutex
	goals []types.Goal
}

func (s *GoalStore) List(ctx context.Context) ([]types.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Goal, len(s.goals))
	copy(out, s.goals)
	return out, nil
}

func (s *GoalStore) Add(ctx context.Context, g types.Goal) (types.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = uuid.New().String()
	s.goals = append(s.goals, g)
	return g, nil
}

func (s *GoalStore) Update(ctx context.Context, id string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID != id {
			continue
		}
		applyString(updates, "title", &s.goals[i].Title)
		applyString(updates, "type", &s.goals[i].Type)
		applyNumber(updates, "target", &s.goals[i].Target)
		applyString(updates, "period", &s.goals[i].Period)
		return nil
	}
	return fmt.Errorf("goal %s not found", id)
}

func (s *GoalStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals = append(s.goals[:i], s.goals[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("goal %s not found", id)
}
