package domain

import (
	"errors"
	"mime/multipart"
)

var (
	MessageSuccessGetRecipes          = "success get recipes"
	MessageSuccessGetRecipeDetail     = "success get recipe detail"
	MessageSuccessCreateRecipe        = "recipe created successfully"
	MessageSuccessUpdateRecipe        = "recipe updated successfully"
	MessageSuccessDeleteRecipe        = "recipe deleted successfully"
	MessageSuccessAddFavorite         = "recipe added to favorites"
	MessageSuccessRemoveFavorite      = "recipe removed from favorites"
	MessageSuccessAddShoppingCart     = "recipe added to shopping cart"
	MessageSuccessRemoveShoppingCart  = "recipe removed from shopping cart"
	MessageSuccessUploadRecipeImage   = "recipe image uploaded successfully"
	MessageSuccessGetShoppingList     = "success get shopping list"

	MessageFailedGetRecipes         = "failed to get recipes"
	MessageFailedGetRecipeDetail    = "failed to get recipe detail"
	MessageFailedCreateRecipe       = "failed to create recipe"
	MessageFailedUpdateRecipe       = "failed to update recipe"
	MessageFailedDeleteRecipe       = "failed to delete recipe"
	MessageFailedAddFavorite        = "failed to add recipe to favorites"
	MessageFailedRemoveFavorite     = "failed to remove recipe from favorites"
	MessageFailedAddShoppingCart    = "failed to add recipe to shopping cart"
	MessageFailedRemoveShoppingCart = "failed to remove recipe from shopping cart"
	MessageFailedUploadRecipeImage  = "failed to upload recipe image"
	MessageFailedGetShoppingList    = "failed to get shopping list"

	ErrRecipeNotFound           = errors.New("recipe not found")
	ErrUnauthorizedRecipeAccess = errors.New("unauthorized access to recipe")
	ErrInvalidCookingTime       = errors.New("cooking time cannot be less than 1 minute")
	ErrInvalidIngredientAmount  = errors.New("ingredient amount cannot be less than 1")
	ErrDuplicateIngredient      = errors.New("ingredients are not unique")
	ErrAlreadyFavorited         = errors.New("recipe already in favorites")
	ErrNotFavorited             = errors.New("recipe not in favorites")
	ErrAlreadyInShoppingCart    = errors.New("recipe already in shopping cart")
	ErrNotInShoppingCart        = errors.New("recipe not in shopping cart")
	ErrInvalidImageFormat       = errors.New("invalid image format")
)

type (
	RecipeIngredientRequest struct {
		ID     string `json:"id" validate:"required,uuid"`
		Amount int    `json:"amount" validate:"required,min=1"`
	}

	SaveRecipeRequest struct {
		Name        string                    `json:"name" validate:"required,max=200"`
		Text        string                    `json:"text" validate:"required"`
		Image       string                    `json:"image" validate:"required"`
		CookingTime int                       `json:"cooking_time" validate:"required,min=1"`
		Tags        []string                  `json:"tags" validate:"required,min=1,dive,uuid"`
		Ingredients []RecipeIngredientRequest `json:"ingredients" validate:"required,min=1,dive"`
	}

	RecipeIngredientResponse struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Amount          int    `json:"amount"`
	}

	RecipeResponse struct {
		ID               string                     `json:"id"`
		Tags             []TagResponse              `json:"tags"`
		Author           UserResponse               `json:"author"`
		Ingredients      []RecipeIngredientResponse `json:"ingredients"`
		IsFavorited      bool                       `json:"is_favorited"`
		IsInShoppingCart bool                       `json:"is_in_shopping_cart"`
		Name             string                     `json:"name"`
		Image            string                     `json:"image"`
		Text             string                     `json:"text"`
		CookingTime      int                        `json:"cooking_time"`
	}

	// RecipeShortResponse is the trimmed recipe shape used for
	// favorite/cart responses and subscription previews.
	RecipeShortResponse struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Image       string `json:"image"`
		CookingTime int    `json:"cooking_time"`
	}

	RecipeFilter struct {
		AuthorID      string
		TagSlugs      []string
		FavoritedOnly bool
		InCartOnly    bool
	}

	UploadRecipeImageRequest struct {
		Image *multipart.FileHeader `json:"image" form:"image" validate:"required"`
	}

	UploadRecipeImageResponse struct {
		ImageURL string `json:"image_url"`
	}

	ShoppingListItem struct {
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		TotalAmount     int    `json:"total_amount"`
	}
)
