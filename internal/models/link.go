package models

import "time"

// Link représente un lien raccourci dans la base de données.
// Code and TargetURL never change after creation; TotalClicks and LastClicked
// are only written by the click recorder.
type Link struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Code        string     `gorm:"uniqueIndex:idx_links_code;size:8;not null" json:"code"`
	TargetURL   string     `gorm:"type:text;not null" json:"target_url"`
	TotalClicks int64      `gorm:"not null;default:0" json:"total_clicks"`
	LastClicked *time.Time `json:"last_clicked"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index:idx_links_created_at" json:"created_at"`
}

// TableName pins the table name so every driver shares the same layout.
func (Link) TableName() string {
	return "links"
}
