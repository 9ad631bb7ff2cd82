// Package models defines the todo records the client caches and the
// request shapes it sends to the API.
package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/common"
)

// Todo mirrors the server record. A Todo whose ID carries
// common.TempIDPrefix is an optimistic placeholder.
type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsTemp reports whether t has not been acknowledged by the server yet.
func (t Todo) IsTemp() bool {
	return strings.HasPrefix(t.ID, common.TempIDPrefix)
}

// DescriptionText returns the description or "".
func (t Todo) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

type CreateTodo struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Completed   *bool    `json:"completed,omitempty"`
}

// UpdateTodo is a partial patch; nil fields are not sent.
type UpdateTodo struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
}

// Apply returns t with the patch merged in. Neither t nor the patch is
// modified.
func (u UpdateTodo) Apply(t Todo) Todo {
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

type StatusCount struct {
	Total int64 `json:"total"`
	Done  int64 `json:"done"`
	Open  int64 `json:"open"`
}

// ParseTags splits a comma separated list, trimming entries and dropping
// empty ones and repeats.
func ParseTags(s string) []string {
	var tags []string
	seen := map[string]bool{}
	for _, tag := range strings.Split(s, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
