package users

import (
	"strings"
	"time"
)

// User is the public profile row backing an identity-provider account.
// Phone is stored in normalized form so the phone-to-email resolution used
// by sign-in can match on exact equality.
type User struct {
	ID          string    `gorm:"column:id;primaryKey;size:36;not null"`
	IdentityID  string    `gorm:"column:identity_id;size:190;uniqueIndex;not null"`
	Email       string    `gorm:"column:email;size:320;index"`
	Phone       string    `gorm:"column:phone;size:20;index"`
	FullName    string    `gorm:"column:full_name;size:320"`
	Role        string    `gorm:"column:role;size:32"`
	Affiliation string    `gorm:"column:affiliation;size:320"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user profiles.
func (User) TableName() string {
	return "user_profiles"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
