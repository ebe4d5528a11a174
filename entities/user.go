package entities

import (
	"github.com/google/uuid"
	"time"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:254" json:"email"`
	Username  string    `gorm:"uniqueIndex;size:150" json:"username"`
	FirstName string    `gorm:"size:150" json:"first_name"`
	LastName  string    `gorm:"size:150" json:"last_name"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`

	Recipes []*Recipe `gorm:"foreignKey:AuthorID" json:"-"`
	Timestamp
}

type Follow struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	UserID   uuid.UUID `gorm:"uniqueIndex:idx_follow_user_author" json:"user_id"`
	AuthorID uuid.UUID `gorm:"uniqueIndex:idx_follow_user_author" json:"author_id"`

	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Author    *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `gorm:"type:timestamp" json:"created_at"`
}
