package types

import "time"

// ScheduleItem is one calendar entry.
type ScheduleItem struct {
	ID         string `json:"id,omitempty"`
	Title      string `json:"title"`
	Date       string `json:"date,omitempty"` // YYYY-MM-DD
	StartTime  string `json:"startTime"`      // HH:MM
	EndTime    string `json:"endTime"`
	Category   string `json:"category"`
	Recurrence string `json:"recurrence,omitempty"`
}

// Transaction is one money movement, income or expense.
type Transaction struct {
	ID          string  `json:"id,omitempty"`
	Type        string  `json:"type"` // "income" or "expense"
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date,omitempty"`
}

// Exercise is one movement inside a workout.
type Exercise struct {
	Name   string  `json:"name"`
	Sets   int     `json:"sets"`
	Reps   int     `json:"reps"`
	Weight float64 `json:"weight,omitempty"`
	Notes  string  `json:"notes,omitempty"`
}

// Workout is one training session.
type Workout struct {
	ID        string     `json:"id,omitempty"`
	Title     string     `json:"title"`
	Type      string     `json:"type"`     // cardio, strength, ...
	Duration  int        `json:"duration"` // minutes
	Date      string     `json:"date,omitempty"`
	Exercises []Exercise `json:"exercises"`
}

// FoodEntry is one logged meal or snack.
type FoodEntry struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Calories float64 `json:"calories,omitempty"`
	MealType string  `json:"mealType,omitempty"`
	Date     string  `json:"date,omitempty"`
}

// CheckIn is one daily check-in, keyed by date.
type CheckIn struct {
	ID         string  `json:"id,omitempty"`
	Date       string  `json:"date"`
	SleepHours float64 `json:"sleepHours"`
	Quality    string  `json:"quality,omitempty"`
}

// Goal is one tracked target.
type Goal struct {
	ID     string  `json:"id,omitempty"`
	Title  string  `json:"title,omitempty"`
	Type   string  `json:"type"`   // workouts, calories, savings, ...
	Target float64 `json:"target"`
	Period string  `json:"period"` // daily, weekly, monthly
}

// ActionResult is the outcome of executing one action.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Failure pairs a failed action's intent with the reason it failed.
type Failure struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Summary aggregates the outcome of one voice run for the UI.
type Summary struct {
	Succeeded []string  `json:"succeeded"`
	Failed    []Failure `json:"failed"`
	Message   string    `json:"message"`
}

// Today returns the current date as YYYY-MM-DD.
func Today() string {
	return time.Now().Format("2006-01-02")
}
