package models

import "time"

// MenuItem is a single dish belonging to a Menu.
type MenuItem struct {
	ID          int64    `db:"id" json:"id"`
	ItemID      string   `db:"item_id" json:"itemId"`
	MenuID      string   `db:"menu_id" json:"menuId"`
	Name        string   `db:"name" json:"name"`
	Description string   `db:"description" json:"description,omitempty"`
	Price       *float64 `db:"price" json:"price,omitempty"`
	Category    string   `db:"category" json:"category,omitempty"`
	ImageURL    string   `db:"image_url" json:"imageUrl,omitempty"`
	Nutrition   string   `db:"nutrition" json:"nutrition,omitempty"`
	AIEnriched  bool     `db:"ai_enriched" json:"aiEnriched"`
	CreatedAt   int64    `db:"created_at" json:"createdAt"`
	UpdatedAt   int64    `db:"updated_at" json:"updatedAt"`
	Synced      bool     `db:"synced" json:"synced"`
}

// TableName returns the table name for MenuItem.
func (MenuItem) TableName() string {
	return "menu_items"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (i *MenuItem) CreatedAtTime() time.Time {
	return time.UnixMilli(i.CreatedAt)
}

// Touch updates the UpdatedAt timestamp and marks the item as not yet synced.
func (i *MenuItem) Touch() {
	i.UpdatedAt = NowMillis()
	i.Synced = false
}
