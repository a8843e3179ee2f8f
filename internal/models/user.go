package models

import "encoding/json"

type User struct {
	ID    string
	Email string

	// Fields holds the free-form profile attributes.
	Fields map[string]interface{}
}

func (u User) MarshalJSON() ([]byte, error) {
	doc := copyFields(u.Fields, 2)
	if u.ID != "" {
		doc[fieldID] = u.ID
	}
	if u.Email != "" {
		doc[fieldEmail] = u.Email
	}
	return json.Marshal(doc)
}

func (u *User) UnmarshalJSON(data []byte) error {
	doc, err := decodeDocument(data)
	if err != nil {
		return err
	}

	*u = User{
		ID:    takeString(doc, fieldID),
		Email: takeString(doc, fieldEmail),
	}
	if len(doc) > 0 {
		u.Fields = doc
	}
	return nil
}
