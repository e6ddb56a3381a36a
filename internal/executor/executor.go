// Package executor applies validated actions to the domain collaborators.
// Each action produces exactly one ActionResult; a failing action never
// aborts its siblings.
package executor

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/deca/lifetrack-voice/internal/intent"
	"github.com/deca/lifetrack-voice/pkg/types"
)

// ScheduleStore is the schedule collaborator of the CRUD layer.
type ScheduleStore interface {
	List(ctx context.Context) ([]types.ScheduleItem, error)
	Add(ctx context.Context, item types.ScheduleItem) (types.ScheduleItem, error)
	AddBatch(ctx context.Context, items []types.ScheduleItem) ([]types.ScheduleItem, error)
	Update(ctx context.Context, id string, updates map[string]any) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (types.ScheduleItem, bool, error)
}

// TransactionStore is the finance collaborator.
type TransactionStore interface {
	List(ctx context.Context) ([]types.Transaction, error)
	Add(ctx context.Context, tx types.Transaction) (types.Transaction, error)
	Update(ctx context.Context, id string, updates map[string]any) error
	Delete(ctx context.Context, id string) error
}

// WorkoutStore is the fitness collaborator.
type WorkoutStore interface {
	List(ctx context.Context) ([]types.Workout, error)
	Add(ctx context.Context, w types.Workout) (types.Workout, error)
	Update(ctx context.Context, id string, updates map[string]any) error
	Delete(ctx context.Context, id string) error
}

// FoodStore is the nutrition collaborator.
type FoodStore interface {
	List(ctx context.Context) ([]types.FoodEntry, error)
	Add(ctx context.Context, e types.FoodEntry) (types.FoodEntry, error)
	Update(ctx context.Context, id string, updates map[string]any) error
	Delete(ctx context.Context, id string) error
}

// CheckInStore is the sleep/check-in collaborator, addressed by date.
type CheckInStore interface {
	GetByDate(ctx context.Context, date string) (types.CheckIn, bool, error)
	Log(ctx context.Context, c types.CheckIn) (types.CheckIn, error)
	Update(ctx context.Context, date string, updates map[string]any) error
	Delete(ctx context.Context, date string) error
}

// GoalStore is the goals collaborator.
type GoalStore interface {
	List(ctx context.Context) ([]types.Goal, error)
	Add(ctx context.Context, g types.Goal) (types.Goal, error)
	Update(ctx context.Context, id string, updates map[string]any) error
	Delete(ctx context.Context, id string) error
}

// DomainContext bundles all domain collaborators for one execution batch.
type DomainContext struct {
	Schedule     ScheduleStore
	Transactions TransactionStore
	Workouts     WorkoutStore
	Food         FoodStore
	CheckIns     CheckInStore
	Goals        GoalStore
}

// HandlerFunc applies one action of a specific intent.
type HandlerFunc func(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult

// Executor dispatches validated actions to per-intent handlers.
type Executor struct {
	handlers map[intent.Intent]HandlerFunc
}

// New creates an executor with all built-in intent handlers registered.
func New() *Executor {
	e := &Executor{handlers: make(map[intent.Intent]HandlerFunc)}

	e.Register(intent.IntentAddSchedule, handleAddSchedule)
	e.Register(intent.IntentEditSchedule, handleEditSchedule)
	e.Register(intent.IntentDeleteSchedule, handleDeleteSchedule)
	e.Register(intent.IntentAddTransaction, handleAddTransaction)
	e.Register(intent.IntentEditTransaction, handleEditTransaction)
	e.Register(intent.IntentDeleteTransaction, handleDeleteTransaction)
	e.Register(intent.IntentAddWorkout, handleAddWorkout)
	e.Register(intent.IntentEditWorkout, handleEditWorkout)
	e.Register(intent.IntentDeleteWorkout, handleDeleteWorkout)
	e.Register(intent.IntentAddFood, handleAddFood)
	e.Register(intent.IntentEditFoodEntry, handleEditFood)
	e.Register(intent.IntentDeleteFoodEntry, handleDeleteFood)
	e.Register(intent.IntentLogSleep, handleLogSleep)
	e.Register(intent.IntentEditCheckIn, handleEditCheckIn)
	e.Register(intent.IntentDeleteCheckIn, handleDeleteCheckIn)
	e.Register(intent.IntentAddGoal, handleAddGoal)
	e.Register(intent.IntentEditGoal, handleEditGoal)
	e.Register(intent.IntentDeleteGoal, handleDeleteGoal)

	return e
}

// Register installs a handler for an intent, replacing any existing one.
func (e *Executor) Register(tag intent.Intent, handler HandlerFunc) {
	e.handlers[tag] = handler
}

// Execute applies one action. It never panics and never returns an error:
// every outcome, including a collaborator blowing up, becomes an ActionResult.
func (e *Executor) Execute(ctx context.Context, action intent.Action, dc DomainContext) (result types.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Handler for %s panicked: %v", action.Intent, r)
			result = types.ActionResult{Success: false, Message: fmt.Sprintf("internal error executing %s", action.Intent)}
		}
	}()

	handler, ok := e.handlers[action.Intent]
	if !ok {
		return types.ActionResult{Success: false, Message: "Sorry, I didn't understand that"}
	}
	return handler(ctx, action, dc)
}

// ExecuteAll runs a batch sequentially, preserving order so later actions can
// depend on state created by earlier ones. It always returns exactly one
// result per action.
func (e *Executor) ExecuteAll(ctx context.Context, actions []intent.Action, dc DomainContext) []types.ActionResult {
	results := make([]types.ActionResult, 0, len(actions))
	for _, action := range actions {
		result := e.Execute(ctx, action, dc)
		log.Printf("Executed %s: success=%v message=%q", action.Intent, result.Success, result.Message)
		results = append(results, result)
	}
	return results
}

func failure(format string, args ...any) types.ActionResult {
	return types.ActionResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

func success(format string, args ...any) types.ActionResult {
	return types.ActionResult{Success: true, Message: fmt.Sprintf(format, args...)}
}

func orToday(date string) string {
	if date == "" {
		return types.Today()
	}
	return date
}

func fuzzyMatch(candidate, query string) bool {
	return query != "" && strings.Contains(strings.ToLower(candidate), strings.ToLower(query))
}

// Schedule

func handleAddSchedule(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	items := action.Schedule.Items
	for i := range items {
		items[i].Date = orToday(items[i].Date)
	}

	added, err := dc.Schedule.AddBatch(ctx, items)
	if err != nil {
		return failure("Could not add to schedule: %v", err)
	}
	titles := make([]string, 0, len(added))
	for _, item := range added {
		titles = append(titles, item.Title)
	}
	return success("Added to schedule: %s", strings.Join(titles, ", "))
}

func resolveScheduleItem(ctx context.Context, dc DomainContext, p *intent.SchedulePayload) (types.ScheduleItem, bool) {
	if p.ItemID != "" {
		if item, ok, err := dc.Schedule.GetByID(ctx, p.ItemID); err == nil && ok {
			return item, true
		}
	}
	if p.ItemTitle != "" {
		items, err := dc.Schedule.List(ctx)
		if err != nil {
			return types.ScheduleItem{}, false
		}
		for _, item := range items {
			if fuzzyMatch(item.Title, p.ItemTitle) {
				return item, true
			}
		}
	}
	return types.ScheduleItem{}, false
}

func handleEditSchedule(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	item, ok := resolveScheduleItem(ctx, dc, action.Schedule)
	if !ok {
		return failure("No matching schedule item found")
	}
	if err := dc.Schedule.Update(ctx, item.ID, action.Schedule.Updates); err != nil {
		return failure("Could not update %s: %v", item.Title, err)
	}
	return success("Updated schedule: %s", item.Title)
}

func handleDeleteSchedule(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	item, ok := resolveScheduleItem(ctx, dc, action.Schedule)
	if !ok {
		return failure("No matching schedule item found")
	}
	if err := dc.Schedule.Delete(ctx, item.ID); err != nil {
		return failure("Could not delete %s: %v", item.Title, err)
	}
	return success("Removed from schedule: %s", item.Title)
}

// Transactions

func handleAddTransaction(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	entry := action.Transaction.Entry
	entry.Date = orToday(entry.Date)

	added, err := dc.Transactions.Add(ctx, entry)
	if err != nil {
		return failure("Could not add transaction: %v", err)
	}
	if added.Description != "" {
		return success("Added %s: %s ($%.2f)", added.Type, added.Description, added.Amount)
	}
	return success("Added %s: $%.2f (%s)", added.Type, added.Amount, added.Category)
}

func resolveTransaction(ctx context.Context, dc DomainContext, p *intent.TransactionPayload) (types.Transaction, bool) {
	if p.TransactionID != "" {
		txs, err := dc.Transactions.List(ctx)
		if err == nil {
			for _, tx := range txs {
				if tx.ID == p.TransactionID {
					return tx, true
				}
			}
		}
	}
	if p.Description != "" {
		txs, err := dc.Transactions.List(ctx)
		if err != nil {
			return types.Transaction{}, false
		}
		for _, tx := range txs {
			if !fuzzyMatch(tx.Description, p.Description) {
				continue
			}
			if p.Date != "" && tx.Date != p.Date {
				continue
			}
			return tx, true
		}
	}
	return types.Transaction{}, false
}

func handleEditTransaction(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	tx, ok := resolveTransaction(ctx, dc, action.Transaction)
	if !ok {
		return failure("No matching transaction found")
	}
	if err := dc.Transactions.Update(ctx, tx.ID, action.Transaction.Updates); err != nil {
		return failure("Could not update transaction: %v", err)
	}
	return success("Updated transaction: %s", describeTransaction(tx))
}

func handleDeleteTransaction(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	tx, ok := resolveTransaction(ctx, dc, action.Transaction)
	if !ok {
		return failure("No matching transaction found")
	}
	if err := dc.Transactions.Delete(ctx, tx.ID); err != nil {
		return failure("Could not delete transaction: %v", err)
	}
	return success("Deleted transaction: %s", describeTransaction(tx))
}

func describeTransaction(tx types.Transaction) string {
	if tx.Description != "" {
		return tx.Description
	}
	return fmt.Sprintf("%s $%.2f", tx.Type, tx.Amount)
}

// Workouts

func handleAddWorkout(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	entry := action.Workout.Entry
	entry.Date = orToday(entry.Date)

	added, err := dc.Workouts.Add(ctx, entry)
	if err != nil {
		return failure("Could not add workout: %v", err)
	}
	return success("Added workout: %s", added.Title)
}

func resolveWorkout(ctx context.Context, dc DomainContext, p *intent.WorkoutPayload) (types.Workout, bool) {
	workouts, err := dc.Workouts.List(ctx)
	if err != nil {
		return types.Workout{}, false
	}
	if p.WorkoutID != "" {
		for _, w := range workouts {
			if w.ID == p.WorkoutID {
				return w, true
			}
		}
	}
	if p.Title != "" {
		for _, w := range workouts {
			if fuzzyMatch(w.Title, p.Title) {
				return w, true
			}
		}
	}
	return types.Workout{}, false
}

func handleEditWorkout(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	w, ok := resolveWorkout(ctx, dc, action.Workout)
	if !ok {
		return failure("No matching workout found")
	}
	if err := dc.Workouts.Update(ctx, w.ID, action.Workout.Updates); err != nil {
		return failure("Could not update workout: %v", err)
	}
	return success("Updated workout: %s", w.Title)
}

func handleDeleteWorkout(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	w, ok := resolveWorkout(ctx, dc, action.Workout)
	if !ok {
		return failure("No matching workout found")
	}
	if err := dc.Workouts.Delete(ctx, w.ID); err != nil {
		return failure("Could not delete workout: %v", err)
	}
	return success("Deleted workout: %s", w.Title)
}

// Food

func handleAddFood(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	entry := action.Food.Entry
	entry.Date = orToday(entry.Date)
	if entry.Name == "" {
		entry.Name = "Food"
	}

	added, err := dc.Food.Add(ctx, entry)
	if err != nil {
		return failure("Could not log food: %v", err)
	}
	return success("Logged food: %s", added.Name)
}

func resolveFood(ctx context.Context, dc DomainContext, p *intent.FoodPayload) (types.FoodEntry, bool) {
	entries, err := dc.Food.List(ctx)
	if err != nil {
		return types.FoodEntry{}, false
	}
	if p.EntryID != "" {
		for _, e := range entries {
			if e.ID == p.EntryID {
				return e, true
			}
		}
	}
	if p.FoodName != "" {
		for _, e := range entries {
			if fuzzyMatch(e.Name, p.FoodName) {
				return e, true
			}
		}
	}
	return types.FoodEntry{}, false
}

func handleEditFood(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	e, ok := resolveFood(ctx, dc, action.Food)
	if !ok {
		return failure("No matching food entry found")
	}
	if err := dc.Food.Update(ctx, e.ID, action.Food.Updates); err != nil {
		return failure("Could not update food entry: %v", err)
	}
	return success("Updated food entry: %s", e.Name)
}

func handleDeleteFood(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	e, ok := resolveFood(ctx, dc, action.Food)
	if !ok {
		return failure("No matching food entry found")
	}
	if err := dc.Food.Delete(ctx, e.ID); err != nil {
		return failure("Could not delete food entry: %v", err)
	}
	return success("Deleted food entry: %s", e.Name)
}

// Sleep / check-ins

func handleLogSleep(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	checkIn := types.CheckIn{
		Date:       orToday(action.Sleep.Date),
		SleepHours: action.Sleep.Hours,
		Quality:    action.Sleep.Quality,
	}
	if _, err := dc.CheckIns.Log(ctx, checkIn); err != nil {
		return failure("Could not log sleep: %v", err)
	}
	return success("Logged sleep")
}

func handleEditCheckIn(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	date := orToday(action.Sleep.Date)
	if _, ok, err := dc.CheckIns.GetByDate(ctx, date); err != nil || !ok {
		return failure("No matching check-in found")
	}
	if err := dc.CheckIns.Update(ctx, date, action.Sleep.Updates); err != nil {
		return failure("Could not update check-in: %v", err)
	}
	return success("Updated check-in for %s", date)
}

func handleDeleteCheckIn(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	date := orToday(action.Sleep.Date)
	if _, ok, err := dc.CheckIns.GetByDate(ctx, date); err != nil || !ok {
		return failure("No matching check-in found")
	}
	if err := dc.CheckIns.Delete(ctx, date); err != nil {
		return failure("Could not delete check-in: %v", err)
	}
	return success("Deleted check-in for %s", date)
}

// Goals

func handleAddGoal(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	added, err := dc.Goals.Add(ctx, action.Goal.Entry)
	if err != nil {
		return failure("Could not add goal: %v", err)
	}
	if added.Title != "" {
		return success("Added goal: %s", added.Title)
	}
	return success("Added %s goal", added.Type)
}

func resolveGoal(ctx context.Context, dc DomainContext, p *intent.GoalPayload) (types.Goal, bool) {
	goals, err := dc.Goals.List(ctx)
	if err != nil {
		return types.Goal{}, false
	}
	if p.GoalID != "" {
		for _, g := range goals {
			if g.ID == p.GoalID {
				return g, true
			}
		}
	}
	if p.Title != "" {
		for _, g := range goals {
			if fuzzyMatch(g.Title, p.Title) {
				return g, true
			}
		}
	}
	return types.Goal{}, false
}

func handleEditGoal(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	g, ok := resolveGoal(ctx, dc, action.Goal)
	if !ok {
		return failure("No matching goal found")
	}
	if err := dc.Goals.Update(ctx, g.ID, action.Goal.Updates); err != nil {
		return failure("Could not update goal: %v", err)
	}
	return success("Updated goal: %s", describeGoal(g))
}

func handleDeleteGoal(ctx context.Context, action intent.Action, dc DomainContext) types.ActionResult {
	g, ok := resolveGoal(ctx, dc, action.Goal)
	if !ok {
		return failure("No matching goal found")
	}
	if err := dc.Goals.Delete(ctx, g.ID); err != nil {
		return failure("Could not delete goal: %v", err)
	}
	return success("Deleted goal: %s", describeGoal(g))
}

func describeGoal(g types.Goal) string {
	if g.Title != "" {
		return g.Title
	}
	return g.Type
}
