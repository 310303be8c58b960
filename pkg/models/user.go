package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Plan identifiers as tagged on users by the billing webhook.
const (
	PlanFree   = "free"
	PlanPro    = "pro"
	PlanCosmic = "cosmic"
)

// User represents a user in the system
type User struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username         *string        `gorm:"size:255;uniqueIndex"                           json:"username,omitempty"`
	Email            *string        `gorm:"size:255;uniqueIndex"                           json:"email,omitempty"`
	PasswordHash     *string        `gorm:"size:255"                                       json:"-"` // Never expose password hash in JSON
	Plan             string         `gorm:"size:50;not null;default:'free'"                json:"plan"`
	StripeCustomerID *string        `gorm:"size:255;index"                                 json:"-"`
	SubscriptionID   *string        `gorm:"size:255"                                       json:"-"`
	CreatedAt        time.Time      `                                                      json:"createdAt"`
	UpdatedAt        time.Time      `                                                      json:"updatedAt"`
	DeletedAt        gorm.DeletedAt `gorm:"index"                                          json:"deletedAt,omitempty"`

	// Associations
	Conversations []Conversation `gorm:"foreignKey:UserID" json:"conversations,omitempty"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook to ensure ID is set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// PublicUser represents user data safe for public consumption
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Username  *string   `json:"username,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToPublic converts User to PublicUser (removes sensitive data)
func (u *User) ToPublic() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Plan:      u.Plan,
		CreatedAt: u.CreatedAt,
	}
}

// EnsureUser makes sure the user with the given ID exists
func EnsureUser(db *gorm.DB, userID uuid.UUID) error {
	u := &User{ID: userID, Plan: PlanFree}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(u).Error
}
