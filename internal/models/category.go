package models

import "time"

type Category string

const (
	CategoryTodo       Category = "To-Do"
	CategoryInProgress Category = "In Progress"
	CategoryDone       Category = "Done"
)

// DoneAfter is how long past its due date a task stays in progress.
const DoneAfter = 24 * time.Hour

// Categorize maps a due date to the category it implies at now. Both
// breakpoints, now and now-24h, resolve to In Progress.
func Categorize(dueDate, now time.Time) Category {
	switch {
	case dueDate.After(now):
		return CategoryTodo
	case dueDate.Before(now.Add(-DoneAfter)):
		return CategoryDone
	default:
		return CategoryInProgress
	}
}
