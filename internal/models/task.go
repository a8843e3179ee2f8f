package models

import (
	"encoding/json"
	"time"
)

type Task struct {
	ID       string
	UserID   string
	Email    string
	DueDate  *time.Time
	Category Category

	// Fields holds every other attribute the client submitted.
	Fields map[string]interface{}
}

// Recategorize returns the category the task should have at now and whether
// it differs from the stored one. Tasks without a due date keep their category.
func (t *Task) Recategorize(now time.Time) (Category, bool) {
	if t.DueDate == nil {
		return t.Category, false
	}
	next := Categorize(*t.DueDate, now)
	return next, next != t.Category
}

func (t Task) MarshalJSON() ([]byte, error) {
	doc := copyFields(t.Fields, 5)
	if t.ID != "" {
		doc[fieldID] = t.ID
	}
	if t.UserID != "" {
		doc[fieldUserID] = t.UserID
	}
	if t.Email != "" {
		doc[fieldEmail] = t.Email
	}
	if t.DueDate != nil {
		doc[fieldDueDate] = t.DueDate.UTC().Format(time.RFC3339Nano)
	}
	if t.Category != "" {
		doc[fieldCategory] = string(t.Category)
	}
	return json.Marshal(doc)
}

func (t *Task) UnmarshalJSON(data []byte) error {
	doc, err := decodeDocument(data)
	if err != nil {
		return err
	}

	// A due date in an unrecognized encoding stays in Fields as submitted and
	// the task is treated as undated.
	dueDate, err := ParseTimestamp(doc[fieldDueDate])
	if err == nil {
		delete(doc, fieldDueDate)
	}

	*t = Task{
		ID:       takeString(doc, fieldID),
		UserID:   takeString(doc, fieldUserID),
		Email:    takeString(doc, fieldEmail),
		DueDate:  dueDate,
		Category: Category(takeString(doc, fieldCategory)),
	}
	if len(doc) > 0 {
		t.Fields = doc
	}
	return nil
}
