// Package models defines server-side todo records and the request shapes
// used to create, patch and filter them.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/todokeeper/internal/common"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// Todo is the only persisted entity.
type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateTodo is the body of a create request. Completed defaults to false.
type CreateTodo struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Completed   *bool    `json:"completed,omitempty"`
}

// Normalize trims the title and cleans the tag list in place.
func (c *CreateTodo) Normalize() {
	c.Title = strings.TrimSpace(c.Title)
	c.Tags = NormalizeTags(c.Tags)
}

// Validate reports a common.ErrorValidation wrapped error for a request
// that must not reach the store.
func (c *CreateTodo) Validate() error {
	if err := validateTitle(c.Title); err != nil {
		return err
	}
	return validateDescription(c.Description)
}

// UpdateTodo is a partial patch: nil fields are left untouched.
type UpdateTodo struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
}

// UnmarshalJSON decodes a patch strictly: unknown properties are rejected
// and title, tags and completed may be omitted but not null.
func (u *UpdateTodo) UnmarshalJSON(data []byte) error {
	type plain UpdateTodo
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var p plain
	if err := dec.Decode(&p); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, name := range []string{"title", "tags", "completed"} {
		if raw, ok := fields[name]; ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("%w: %s must not be null", common.ErrorValidation, name)
		}
	}

	*u = UpdateTodo(p)
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (u *UpdateTodo) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Tags == nil && u.Completed == nil
}

func (u *UpdateTodo) Normalize() {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		u.Title = &title
	}
	if u.Tags != nil {
		tags := NormalizeTags(*u.Tags)
		if tags == nil {
			tags = []string{}
		}
		u.Tags = &tags
	}
}

func (u *UpdateTodo) Validate() error {
	if u.Title != nil {
		if err := validateTitle(*u.Title); err != nil {
			return err
		}
	}
	return validateDescription(u.Description)
}

// Apply returns a copy of t with the patch merged in. Timestamps are left
// to the caller.
func (u *UpdateTodo) Apply(t Todo) Todo {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		d := *u.Description
		t.Description = &d
	}
	if u.Tags != nil {
		t.Tags = append([]string(nil), (*u.Tags)...)
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	return t
}

// ListFilter narrows a listing. A nil Completed or an empty Search imposes
// no constraint; when both are set they apply together.
type ListFilter struct {
	Completed *bool
	Search    string
}

// StatusCount is the result of the faceted count query. Total always
// equals Done + Open.
type StatusCount struct {
	Total int64 `json:"total"`
	Done  int64 `json:"done"`
	Open  int64 `json:"open"`
}

// NormalizeTags trims tags, drops empty ones and removes duplicates while
// keeping the first occurrence, so display order is preserved.
func NormalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title should not be empty", common.ErrorValidation)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("%w: title must be at most %d characters", common.ErrorValidation, MaxTitleLength)
	}
	return nil
}

func validateDescription(d *string) error {
	if d != nil && utf8.RuneCountInString(*d) > MaxDescriptionLength {
		return fmt.Errorf("%w: description must be at most %d characters", common.ErrorValidation, MaxDescriptionLength)
	}
	return nil
}
