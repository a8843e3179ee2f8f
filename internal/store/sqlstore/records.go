package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"task-manager/server/internal/models"
)

type userRecord struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	Email     string `gorm:"type:varchar(320);not null;uniqueIndex:idx_users_email"`
	Fields    string `gorm:"type:text"`
	CreatedAt time.Time
}

func (userRecord) TableName() string { return "users" }

type taskRecord struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	UserID    string `gorm:"type:varchar(36);index:idx_tasks_user_id"`
	Email     string `gorm:"type:varchar(320)"`
	DueDate   *time.Time
	Category  string `gorm:"type:varchar(32);not null;default:''"`
	Fields    string `gorm:"type:text"`
	CreatedAt time.Time
}

func (taskRecord) TableName() string { return "tasks" }

func encodeFields(fields map[string]interface{}) (string, error) {
	if len(fields) == 0 {
		return "", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode document fields: %w", err)
	}
	return string(data), nil
}

func decodeFields(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return nil, nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document fields: %w", err)
	}
	return fields, nil
}

// withoutReserved drops keys that live in dedicated columns.
func withoutReserved(fields map[string]interface{}, reserved ...string) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for _, k := range reserved {
		delete(out, k)
	}
	return out
}

func newUserRecord(id string, user models.User) (userRecord, error) {
	fields, err := encodeFields(withoutReserved(user.Fields, "_id", "email"))
	if err != nil {
		return userRecord{}, err
	}
	return userRecord{ID: id, Email: user.Email, Fields: fields}, nil
}

func (r userRecord) toModel() (models.User, error) {
	fields, err := decodeFields(r.Fields)
	if err != nil {
		return models.User{}, err
	}
	return models.User{ID: r.ID, Email: r.Email, Fields: fields}, nil
}

func newTaskRecord(id string, task models.Task) (taskRecord, error) {
	reserved := []string{"_id", "userId", "email", "category"}
	if task.DueDate != nil {
		reserved = append(reserved, "dueDate")
	}
	// An unparsed due date is kept verbatim with the other fields.
	fields, err := encodeFields(withoutReserved(task.Fields, reserved...))
	if err != nil {
		return taskRecord{}, err
	}
	rec := taskRecord{
		ID:       id,
		UserID:   task.UserID,
		Email:    task.Email,
		Category: string(task.Category),
		Fields:   fields,
	}
	if task.DueDate != nil {
		due := task.DueDate.UTC()
		rec.DueDate = &due
	}
	return rec, nil
}

func (r taskRecord) toModel() (models.Task, error) {
	fields, err := decodeFields(r.Fields)
	if err != nil {
		return models.Task{}, err
	}
	task := models.Task{
		ID:       r.ID,
		UserID:   r.UserID,
		Email:    r.Email,
		Category: models.Category(r.Category),
		Fields:   fields,
	}
	if r.DueDate != nil {
		due := r.DueDate.UTC()
		task.DueDate = &due
	}
	return task, nil
}
