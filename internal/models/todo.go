package models

import "strings"

// DeadlineLayout is the calendar date format of Todo.Deadline.
const DeadlineLayout = "2006-01-02"

// Todo represents a todo item stored under users/{uid}/todos/{id}
type Todo struct {
	ID        string `firestore:"-" json:"id"`
	Text      string `firestore:"text" json:"text"`
	Completed bool   `firestore:"completed" json:"completed"`
	Deadline  string `firestore:"deadline" json:"deadline"`
}

// TodoFields builds the payload of a newly pushed todo.
func TodoFields(text, deadline string) map[string]any {
	return map[string]any{
		"text":      text,
		"completed": false,
		"deadline":  deadline,
	}
}

// TodoFromFields decodes a stored record. Missing or mistyped fields are left zero.
func TodoFromFields(id string, fields map[string]any) Todo {
	todo := Todo{ID: id}
	todo.Text, _ = fields["text"].(string)
	todo.Completed, _ = fields["completed"].(bool)
	todo.Deadline, _ = fields["deadline"].(string)
	return todo
}

// Blank reports whether s is empty after trimming whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
