// Package models provides data model definitions for menuscan.
package models

import "time"

// Menu is a captured restaurant menu persisted locally.
type Menu struct {
	ID          int64  `db:"id" json:"id"`
	MenuID      string `db:"menu_id" json:"menuId"`
	Name        string `db:"name" json:"name"`
	ImageURL    string `db:"image_url" json:"imageUrl,omitempty"`
	Description string `db:"description" json:"description,omitempty"`
	ImageBlob   []byte `db:"image_blob" json:"-"`
	CreatedAt   int64  `db:"created_at" json:"createdAt"` // unix milliseconds
	UpdatedAt   int64  `db:"updated_at" json:"updatedAt"` // unix milliseconds
	Synced      bool   `db:"synced" json:"synced"`
}

// TableName returns the table name for Menu.
func (Menu) TableName() string {
	return "menus"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (m *Menu) CreatedAtTime() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (m *Menu) UpdatedAtTime() time.Time {
	return time.UnixMilli(m.UpdatedAt)
}

// Touch updates the UpdatedAt timestamp and marks the menu as not yet synced.
func (m *Menu) Touch() {
	m.UpdatedAt = NowMillis()
	m.Synced = false
}

// NowMillis returns the current time in unix milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
