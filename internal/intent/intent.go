// Package intent turns untrusted understanding-service JSON into validated,
// default-filled actions. Nothing in here panics or returns an error: any
// payload that cannot be matched degrades to IntentUnknown.
package intent

import (
	"strconv"
	"strings"

	"github.com/deca/lifetrack-voice/pkg/types"
)

// Intent tags the kind of command an action represents.
type Intent string

const (
	IntentAddSchedule    Intent = "add_schedule"
	IntentEditSchedule   Intent = "edit_schedule"
	IntentDeleteSchedule Intent = "delete_schedule"

	IntentAddTransaction    Intent = "add_transaction"
	IntentEditTransaction   Intent = "edit_transaction"
	IntentDeleteTransaction Intent = "delete_transaction"

	IntentAddWorkout    Intent = "add_workout"
	IntentEditWorkout   Intent = "edit_workout"
	IntentDeleteWorkout Intent = "delete_workout"

	IntentAddFood         Intent = "add_food"
	IntentEditFoodEntry   Intent = "edit_food_entry"
	IntentDeleteFoodEntry Intent = "delete_food_entry"

	IntentLogSleep      Intent = "log_sleep"
	IntentEditCheckIn   Intent = "edit_check_in"
	IntentDeleteCheckIn Intent = "delete_check_in"

	IntentAddGoal    Intent = "add_goal"
	IntentEditGoal   Intent = "edit_goal"
	IntentDeleteGoal Intent = "delete_goal"

	IntentUnknown Intent = "unknown"
)

// Defaults applied when the understanding service omits a field.
const (
	DefaultStartTime       = "09:00"
	DefaultEndTime         = "10:00"
	DefaultCategory        = "Other"
	DefaultTransactionType = "expense"
	DefaultWorkoutTitle    = "Workout"
	DefaultWorkoutType     = "cardio"
	DefaultWorkoutDuration = 30
	DefaultGoalType        = "workouts"
	DefaultGoalPeriod      = "weekly"
)

// SchedulePayload carries add items or an edit/delete reference.
type SchedulePayload struct {
	Items     []types.ScheduleItem `json:"items,omitempty"`
	ItemID    string               `json:"itemId,omitempty"`
	ItemTitle string               `json:"itemTitle,omitempty"`
	Updates   map[string]any       `json:"updates,omitempty"`
}

// TransactionPayload carries a new transaction or an edit/delete reference.
type TransactionPayload struct {
	Entry         types.Transaction `json:"entry"`
	TransactionID string            `json:"transactionId,omitempty"`
	Description   string            `json:"description,omitempty"`
	Date          string            `json:"date,omitempty"`
	Updates       map[string]any    `json:"updates,omitempty"`
}

// WorkoutPayload carries a new workout or an edit/delete reference.
type WorkoutPayload struct {
	Entry     types.Workout  `json:"entry"`
	WorkoutID string         `json:"workoutId,omitempty"`
	Title     string         `json:"title,omitempty"`
	Updates   map[string]any `json:"updates,omitempty"`
}

// FoodPayload carries a new food entry or an edit/delete reference.
type FoodPayload struct {
	Entry    types.FoodEntry `json:"entry"`
	EntryID  string          `json:"entryId,omitempty"`
	FoodName string          `json:"foodName,omitempty"`
	Updates  map[string]any  `json:"updates,omitempty"`
}

// SleepPayload carries logged sleep or an edit/delete reference by date.
type SleepPayload struct {
	Hours   float64        `json:"sleepHours"`
	Quality string         `json:"quality,omitempty"`
	Date    string         `json:"date,omitempty"`
	Updates map[string]any `json:"updates,omitempty"`
}

// GoalPayload carries a new goal or an edit/delete reference.
type GoalPayload struct {
	Entry   types.Goal     `json:"entry"`
	GoalID  string         `json:"goalId,omitempty"`
	Title   string         `json:"title,omitempty"`
	Updates map[string]any `json:"updates,omitempty"`
}

// Action is one validated command. Exactly the payload matching the intent's
// domain group is non-nil; an unknown action carries no payload at all.
type Action struct {
	Intent Intent `json:"intent"`

	Schedule    *SchedulePayload    `json:"schedule,omitempty"`
	Transaction *TransactionPayload `json:"transaction,omitempty"`
	Workout     *WorkoutPayload     `json:"workout,omitempty"`
	Food        *FoodPayload        `json:"food,omitempty"`
	Sleep       *SleepPayload       `json:"sleep,omitempty"`
	Goal        *GoalPayload        `json:"goal,omitempty"`
}

// Unknown is the universal fallback action.
func Unknown() Action { return Action{Intent: IntentUnknown} }

// ParseAction validates one raw payload against the closed intent set.
func ParseAction(raw any) Action {
	m, ok := raw.(map[string]any)
	if !ok {
		return Unknown()
	}

	switch Intent(getString(m, "intent")) {
	case IntentAddSchedule:
		return parseAddSchedule(m)
	case IntentEditSchedule:
		return parseScheduleRef(IntentEditSchedule, m)
	case IntentDeleteSchedule:
		return parseScheduleRef(IntentDeleteSchedule, m)
	case IntentAddTransaction:
		return parseAddTransaction(m)
	case IntentEditTransaction:
		return parseTransactionRef(IntentEditTransaction, m)
	case IntentDeleteTransaction:
		return parseTransactionRef(IntentDeleteTransaction, m)
	case IntentAddWorkout:
		return parseAddWorkout(m)
	case IntentEditWorkout:
		return parseWorkoutRef(IntentEditWorkout, m)
	case IntentDeleteWorkout:
		return parseWorkoutRef(IntentDeleteWorkout, m)
	case IntentAddFood:
		return parseAddFood(m)
	case IntentEditFoodEntry:
		return parseFoodRef(IntentEditFoodEntry, m)
	case IntentDeleteFoodEntry:
		return parseFoodRef(IntentDeleteFoodEntry, m)
	case IntentLogSleep:
		return parseLogSleep(m)
	case IntentEditCheckIn:
		return parseCheckInRef(IntentEditCheckIn, m)
	case IntentDeleteCheckIn:
		return parseCheckInRef(IntentDeleteCheckIn, m)
	case IntentAddGoal:
		return parseAddGoal(m)
	case IntentEditGoal:
		return parseGoalRef(IntentEditGoal, m)
	case IntentDeleteGoal:
		return parseGoalRef(IntentDeleteGoal, m)
	}
	return Unknown()
}

// ParseActions accepts the full understanding-service response and always
// returns at least one action. Responses may be the current shape
// {"actions": [...]}, a legacy flat single-intent object, or garbage.
func ParseActions(raw any) []Action {
	var actions []Action

	switch v := raw.(type) {
	case map[string]any:
		if list, ok := v["actions"].([]any); ok {
			for _, entry := range list {
				if _, isMap := entry.(map[string]any); !isMap {
					continue
				}
				if a := ParseAction(entry); a.Intent != IntentUnknown {
					actions = append(actions, a)
				}
			}
		} else if getString(v, "intent") != "" {
			// Legacy flat response: a single action at the top level.
			if a := ParseAction(v); a.Intent != IntentUnknown {
				actions = append(actions, a)
			}
		}
	}

	if len(actions) == 0 {
		return []Action{Unknown()}
	}
	return actions
}

func parseAddSchedule(m map[string]any) Action {
	var items []types.ScheduleItem
	rawItems, _ := m["items"].([]any)
	for _, ri := range rawItems {
		im, ok := ri.(map[string]any)
		if !ok {
			continue
		}
		title := strings.TrimSpace(getString(im, "title"))
		if title == "" {
			continue
		}
		items = append(items, types.ScheduleItem{
			Title:      title,
			Date:       getString(im, "date"),
			StartTime:  getStringDefault(im, "startTime", DefaultStartTime),
			EndTime:    getStringDefault(im, "endTime", DefaultEndTime),
			Category:   getStringDefault(im, "category", DefaultCategory),
			Recurrence: getString(im, "recurrence"),
		})
	}
	// An add with zero usable items is not a meaningful command.
	if len(items) == 0 {
		return Unknown()
	}
	return Action{Intent: IntentAddSchedule, Schedule: &SchedulePayload{Items: items}}
}

func parseScheduleRef(tag Intent, m map[string]any) Action {
	return Action{Intent: tag, Schedule: &SchedulePayload{
		ItemID:    getString(m, "itemId"),
		ItemTitle: getString(m, "itemTitle"),
		Updates:   getMap(m, "updates"),
	}}
}

func parseAddTransaction(m map[string]any) Action {
	return Action{Intent: IntentAddTransaction, Transaction: &TransactionPayload{
		Entry: types.Transaction{
			Type:        getStringDefault(m, "type", DefaultTransactionType),
			Amount:      clampMin(getNumber(m, "amount"), 0),
			Category:    getStringDefault(m, "category", DefaultCategory),
			Description: getString(m, "description"),
			Date:        getString(m, "date"),
		},
	}}
}

func parseTransactionRef(tag Intent, m map[string]any) Action {
	return Action{Intent: tag, Transaction: &TransactionPayload{
		TransactionID: getString(m, "transactionId"),
		Description:   getString(m, "description"),
		Date:          getString(m, "date"),
		Updates:       getMap(m, "updates"),
	}}
}

func parseAddWorkout(m map[string]any) Action {
	var exercises []types.Exercise
	rawEx, _ := m["exercises"].([]any)
	for _, re := range rawEx {
		em, ok := re.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(getString(em, "name"))
		if name == "" {
			continue
		}
		exercises = append(exercises, types.Exercise{
			Name:   name,
			Sets:   int(getNumber(em, "sets")),
			Reps:   int(getNumber(em, "reps")),
			Weight: getNumber(em, "weight"),
			Notes:  getString(em, "notes"),
		})
	}
	duration := int(getNumber(m, "duration"))
	if duration <= 0 {
		duration = DefaultWorkoutDuration
	}
	if exercises == nil {
		exercises = []types.Exercise{}
	}
	return Action{Intent: IntentAddWorkout, Workout: &WorkoutPayload{
		Entry: types.Workout{
			Title:     getStringDefault(m, "title", DefaultWorkoutTitle),
			Type:      getStringDefault(m, "type", DefaultWorkoutType),
			Duration:  duration,
			Date:      getString(m, "date"),
			Exercises: exercises,
		},
	}}
}

func parseWorkoutRef(tag Intent, m map[string]any) Action {
	return Action{Intent: tag, Workout: &WorkoutPayload{
		WorkoutID: getString(m, "workoutId"),
		Title:     getString(m, "title"),
		Updates:   getMap(m, "updates"),
	}}
}

func parseAddFood(m map[string]any) Action {
	return Action{Intent: IntentAddFood, Food: &FoodPayload{
		Entry: types.FoodEntry{
			Name:     getString(m, "foodName"),
			Calories: clampMin(getNumber(m, "calories"), 0),
			MealType: getString(m, "mealType"),
			Date:     getString(m, "date"),
		},
	}}
}

func parseFoodRef(tag Intent, m map[string]any) Action {
	return Action{Intent: tag, Food: &FoodPayload{
		EntryID:  getString(m, "entryId"),
		FoodName: getString(m, "foodName"),
		Updates:  getMap(m, "updates"),
	}}
}

func parseLogSleep(m map[string]any) Action {
	return Action{Intent: IntentLogSleep, Sleep: &SleepPayload{
		Hours:   clampMin(getNumber(m, "sleepHours"), 0),
		Quality: getString(m, "quality"),
		Date:    getString(m, "date"),
	}}
}

func parseCheckInRef(tag Intent, m map[string]any) Action {
	return Action{Intent: tag, Sleep: &SleepPayload{
		Date:    getString(m, "date"),
		Updates: getMap(m, "updates"),
	}}
}

func parseAddGoal(m map[string]any) Action {
	return Action{Intent: IntentAddGoal, Goal: &GoalPayload{
		Entry: types.Goal{
			Title:  getString(m, "title"),
			Type:   getStringDefault(m, "type", DefaultGoalType),
			Target: clampMin(getNumber(m, "target"), 0),
			Period: getStringDefault(m, "period", DefaultGoalPeriod),
		},
	}}
}

func parseGoalRef(tag Intent, m map[string]any) Action {
	return Action{Intent: tag, Goal: &GoalPayload{
		GoalID:  getString(m, "goalId"),
		Title:   getString(m, "title"),
		Updates: getMap(m, "updates"),
	}}
}

func getString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func getStringDefault(m map[string]any, key, def string) string {
	if s := strings.TrimSpace(getString(m, key)); s != "" {
		return s
	}
	return def
}

// getNumber coerces JSON numbers and numeric strings; anything else is 0.
func getNumber(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return 0
}

func getMap(m map[string]any, key string) map[string]any {
	if mm, ok := m[key].(map[string]any); ok {
		return mm
	}
	return nil
}

func clampMin(v, min float64) float64 {
	if v < min {
		return min
	}
	return v
}
