package models

import "time"

// Category is a user-managed spending category. Categories referenced by
// any transaction are never hard-deleted; deactivation flips IsActive.
type Category struct {
	ID          string    `json:"id" badgerhold:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Examples    string    `json:"examples,omitempty"`
	IsActive    bool      `json:"is_active" badgerhold:"index"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// ResolveResult is the outcome of a category name lookup.
type ResolveResult struct {
	Found       bool
	Category    *Category
	Warning     string
	Suggestions []*Category
}
