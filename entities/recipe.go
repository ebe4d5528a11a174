package entities

import (
	"github.com/google/uuid"
	"time"
)

type Recipe struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	AuthorID    uuid.UUID `json:"author_id"`
	Name        string    `gorm:"size:200" json:"name"`
	Text        string    `gorm:"type:text" json:"text"`
	ImageURL    string    `json:"image_url,omitempty"`
	CookingTime int       `json:"cooking_time"` // minutes, >= 1

	Author      *User               `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Ingredients []*RecipeIngredient `gorm:"foreignKey:RecipeID" json:"-"`
	Tags        []*RecipeTag        `gorm:"foreignKey:RecipeID" json:"-"`
	Timestamp
}

type RecipeIngredient struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	RecipeID     uuid.UUID `gorm:"uniqueIndex:idx_recipe_ingredient" json:"recipe_id"`
	IngredientID uuid.UUID `gorm:"uniqueIndex:idx_recipe_ingredient" json:"ingredient_id"`
	Amount       int       `json:"amount"` // >= 1

	Recipe     *Recipe     `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`
	Ingredient *Ingredient `gorm:"foreignKey:IngredientID;constraint:OnDelete:CASCADE" json:"-"`
}

type RecipeTag struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	RecipeID uuid.UUID `gorm:"uniqueIndex:idx_recipe_tag" json:"recipe_id"`
	TagID    uuid.UUID `gorm:"uniqueIndex:idx_recipe_tag" json:"tag_id"`

	Recipe *Recipe `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`
	Tag    *Tag    `gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE" json:"-"`
}

type Favorite struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	UserID    uuid.UUID `gorm:"uniqueIndex:idx_favorite_user_recipe" json:"user_id"`
	RecipeID  uuid.UUID `gorm:"uniqueIndex:idx_favorite_user_recipe" json:"recipe_id"`
	CreatedAt time.Time `gorm:"type:timestamp" json:"created_at"`

	User   *User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Recipe *Recipe `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`
}

type ShoppingCart struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	UserID    uuid.UUID `gorm:"uniqueIndex:idx_cart_user_recipe" json:"user_id"`
	RecipeID  uuid.UUID `gorm:"uniqueIndex:idx_cart_user_recipe" json:"recipe_id"`
	CreatedAt time.Time `gorm:"type:timestamp" json:"created_at"`

	User   *User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Recipe *Recipe `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`
}
