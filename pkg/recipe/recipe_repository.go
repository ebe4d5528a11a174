package recipe

import (
	"context"

	"foodgram/domain"
	"foodgram/entities"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	RecipeRepository interface {
		CreateRecipe(ctx context.Context, recipe *entities.Recipe, ingredients []*entities.RecipeIngredient, tags []*entities.RecipeTag) error
		UpdateRecipe(ctx context.Context, recipe *entities.Recipe, ingredients []*entities.RecipeIngredient, tags []*entities.RecipeTag) error
		DeleteRecipe(ctx context.Context, id string) error
		GetRecipeByID(ctx context.Context, id string) (*entities.Recipe, error)
		GetRecipes(ctx context.Context, filter domain.RecipeFilter, userID string, page, limit int) ([]*entities.Recipe, int64, error)

		AddFavorite(ctx context.Context, favorite *entities.Favorite) error
		RemoveFavorite(ctx context.Context, userID, recipeID string) error
		AddShoppingCart(ctx context.Context, cart *entities.ShoppingCart) error
		RemoveShoppingCart(ctx context.Context, userID, recipeID string) error
		GetFavoritedIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) (map[uuid.UUID]bool, error)
		GetShoppingCartIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) (map[uuid.UUID]bool, error)

		GetShoppingList(ctx context.Context, userID string) ([]domain.ShoppingListItem, error)
	}

	recipeRepository struct {
		db *gorm.DB
	}
)

func NewRecipeRepository(db *gorm.DB) RecipeRepository {
	return &recipeRepository{db: db}
}

// CreateRecipe persists the recipe row and both association sets as one
// atomic unit: a failed insert rolls everything back.
func (r *recipeRepository) CreateRecipe(ctx context.Context, recipe *entities.Recipe, ingredients []*entities.RecipeIngredient, tags []*entities.RecipeTag) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(recipe).Error; err != nil {
			return err
		}
		if len(tags) > 0 {
			if err := tx.Create(tags).Error; err != nil {
				return err
			}
		}
		if len(ingredients) > 0 {
			if err := tx.Create(ingredients).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateRecipe replaces the scalar fields in place and the association sets
// wholesale (clear then reinsert), in the same transaction.
func (r *recipeRepository) UpdateRecipe(ctx context.Context, recipe *entities.Recipe, ingredients []*entities.RecipeIngredient, tags []*entities.RecipeTag) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entities.Recipe{}).
			Where("id = ?", recipe.ID).
			Select("name", "text", "image_url", "cooking_time").
			Updates(map[string]any{
				"name":         recipe.Name,
				"text":         recipe.Text,
				"image_url":    recipe.ImageURL,
				"cooking_time": recipe.CookingTime,
			}).Error; err != nil {
			return err
		}

		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&entities.RecipeIngredient{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&entities.RecipeTag{}).Error; err != nil {
			return err
		}

		if len(tags) > 0 {
			if err := tx.Create(tags).Error; err != nil {
				return err
			}
		}
		if len(ingredients) > 0 {
			if err := tx.Create(ingredients).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteRecipe removes the recipe and its dependent rows explicitly so the
// cascade does not depend on database-level FK behaviour.
func (r *recipeRepository) DeleteRecipe(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", id).Delete(&entities.RecipeIngredient{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&entities.RecipeTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&entities.Favorite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&entities.ShoppingCart{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&entities.Recipe{}).Error
	})
}

func (r *recipeRepository) GetRecipeByID(ctx context.Context, id string) (*entities.Recipe, error) {
	var recipe entities.Recipe
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Ingredients.Ingredient").
		Preload("Tags.Tag").
		Where("id = ?", id).
		First(&recipe).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (r *recipeRepository) GetRecipes(ctx context.Context, filter domain.RecipeFilter, userID string, page, limit int) ([]*entities.Recipe, int64, error) {
	var recipes []*entities.Recipe
	var count int64
	offset := (page - 1) * limit

	query := r.db.WithContext(ctx).Model(&entities.Recipe{})

	if filter.AuthorID != "" {
		query = query.Where("recipes.author_id = ?", filter.AuthorID)
	}
	if len(filter.TagSlugs) > 0 {
		// subquery instead of a join so recipes with several matching
		// tags are not counted twice
		tagged := r.db.Model(&entities.RecipeTag{}).
			Select("recipe_tags.recipe_id").
			Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
			Where("tags.slug IN ?", filter.TagSlugs)
		query = query.Where("recipes.id IN (?)", tagged)
	}
	if filter.FavoritedOnly && userID != "" {
		query = query.
			Joins("JOIN favorites ON favorites.recipe_id = recipes.id").
			Where("favorites.user_id = ?", userID)
	}
	if filter.InCartOnly && userID != "" {
		query = query.
			Joins("JOIN shopping_carts ON shopping_carts.recipe_id = recipes.id").
			Where("shopping_carts.user_id = ?", userID)
	}

	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Author").
		Preload("Ingredients.Ingredient").
		Preload("Tags.Tag").
		Offset(offset).
		Limit(limit).
		Order("recipes.created_at desc").
		Find(&recipes).Error; err != nil {
		return nil, 0, err
	}

	return recipes, count, nil
}

func (r *recipeRepository) AddFavorite(ctx context.Context, favorite *entities.Favorite) error {
	return r.db.WithContext(ctx).Create(favorite).Error
}

func (r *recipeRepository) RemoveFavorite(ctx context.Context, userID, recipeID string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(&entities.Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *recipeRepository) AddShoppingCart(ctx context.Context, cart *entities.ShoppingCart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

func (r *recipeRepository) RemoveShoppingCart(ctx context.Context, userID, recipeID string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(&entities.ShoppingCart{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *recipeRepository) GetFavoritedIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	var favorites []*entities.Favorite
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Find(&favorites).Error; err != nil {
		return nil, err
	}

	ids := make(map[uuid.UUID]bool, len(favorites))
	for _, favorite := range favorites {
		ids[favorite.RecipeID] = true
	}
	return ids, nil
}

func (r *recipeRepository) GetShoppingCartIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	var carts []*entities.ShoppingCart
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Find(&carts).Error; err != nil {
		return nil, err
	}

	ids := make(map[uuid.UUID]bool, len(carts))
	for _, cart := range carts {
		ids[cart.RecipeID] = true
	}
	return ids, nil
}

// GetShoppingList aggregates every ingredient of every recipe in the user's
// cart with a single grouped query: one row per distinct ingredient with the
// summed amount, ordered by ingredient name.
func (r *recipeRepository) GetShoppingList(ctx context.Context, userID string) ([]domain.ShoppingListItem, error) {
	var items []domain.ShoppingListItem
	if err := r.db.WithContext(ctx).
		Model(&entities.RecipeIngredient{}).
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, SUM(recipe_ingredients.amount) AS total_amount").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Joins("JOIN shopping_carts ON shopping_carts.recipe_id = recipe_ingredients.recipe_id").
		Where("shopping_carts.user_id = ?", userID).
		Group("ingredients.id, ingredients.name, ingredients.measurement_unit").
		Order("ingredients.name asc").
		Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
