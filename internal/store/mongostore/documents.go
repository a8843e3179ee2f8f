package mongostore

import (
	"task-manager/server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func userToDoc(u models.User) bson.M {
	doc := make(bson.M, len(u.Fields)+1)
	for k, v := range u.Fields {
		doc[k] = v
	}
	delete(doc, "_id")
	doc["email"] = u.Email
	return doc
}

func userFromDoc(doc bson.M) models.User {
	doc = normalize(doc).(bson.M)
	u := models.User{
		ID: idString(doc["_id"]),
	}
	u.Email, _ = doc["email"].(string)
	delete(doc, "_id")
	delete(doc, "email")
	if len(doc) > 0 {
		u.Fields = map[string]interface{}(doc)
	}
	return u
}

func taskToDoc(t models.Task) bson.M {
	doc := make(bson.M, len(t.Fields)+4)
	for k, v := range t.Fields {
		doc[k] = v
	}
	delete(doc, "_id")
	doc["userId"] = refID(t.UserID)
	doc["email"] = t.Email
	if t.DueDate != nil {
		doc["dueDate"] = primitive.NewDateTimeFromTime(*t.DueDate)
	}
	if t.Category != "" {
		doc["category"] = string(t.Category)
	}
	return doc
}

func taskFromDoc(doc bson.M) models.Task {
	doc = normalize(doc).(bson.M)
	t := models.Task{
		ID:     idString(doc["_id"]),
		UserID: idString(doc["userId"]),
	}
	t.Email, _ = doc["email"].(string)
	if category, ok := doc["category"].(string); ok {
		t.Category = models.Category(category)
	}
	// Documents written by older clients may carry the due date as a string.
	// Values that still fail to parse stay in Fields untouched.
	if due, err := models.ParseTimestamp(doc["dueDate"]); err == nil {
		t.DueDate = due
		delete(doc, "dueDate")
	}
	for _, key := range []string{"_id", "userId", "email", "category"} {
		delete(doc, key)
	}
	if len(doc) > 0 {
		t.Fields = map[string]interface{}(doc)
	}
	return t
}

// normalize rewrites driver types into plain Go values that encode to JSON
// the way clients expect.
func normalize(v interface{}) interface{} {
	switch value := v.(type) {
	case bson.M:
		out := make(bson.M, len(value))
		for k, item := range value {
			out[k] = normalize(item)
		}
		return out
	case map[string]interface{}:
		return normalize(bson.M(value))
	case bson.D:
		out := make(bson.M, len(value))
		for _, e := range value {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		return normalize([]interface{}(value))
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, item := range value {
			out[i] = normalize(item)
		}
		return out
	case primitive.DateTime:
		return value.Time().UTC()
	case primitive.ObjectID:
		return value.Hex()
	default:
		return v
	}
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return ""
	}
}

// refID stores references as ObjectIDs when they look like one, matching how
// the users collection assigns ids.
func refID(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

