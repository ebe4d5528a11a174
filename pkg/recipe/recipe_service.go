package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"foodgram/domain"
	"foodgram/entities"
	"foodgram/internal/utils/storage"
	"foodgram/pkg/catalog"
	"foodgram/pkg/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	RecipeService interface {
		GetRecipes(ctx context.Context, filter domain.RecipeFilter, page, limit int, userID string) ([]domain.RecipeResponse, int64, error)
		GetRecipeDetail(ctx context.Context, recipeID, userID string) (domain.RecipeResponse, error)
		CreateRecipe(ctx context.Context, req domain.SaveRecipeRequest, userID string) (domain.RecipeResponse, error)
		UpdateRecipe(ctx context.Context, recipeID string, req domain.SaveRecipeRequest, userID string) (domain.RecipeResponse, error)
		DeleteRecipe(ctx context.Context, recipeID, userID string) error

		AddFavorite(ctx context.Context, recipeID, userID string) (domain.RecipeShortResponse, error)
		RemoveFavorite(ctx context.Context, recipeID, userID string) error
		AddToShoppingCart(ctx context.Context, recipeID, userID string) (domain.RecipeShortResponse, error)
		RemoveFromShoppingCart(ctx context.Context, recipeID, userID string) error

		BuildShoppingList(ctx context.Context, userID string) (string, error)
		UploadRecipeImage(ctx context.Context, req domain.UploadRecipeImageRequest) (domain.UploadRecipeImageResponse, error)
	}

	recipeService struct {
		recipeRepository  RecipeRepository
		catalogRepository catalog.CatalogRepository
		userRepository    user.UserRepository
		s3                storage.AwsS3
	}
)

func NewRecipeService(
	recipeRepository RecipeRepository,
	catalogRepository catalog.CatalogRepository,
	userRepository user.UserRepository,
	s3 storage.AwsS3,
) RecipeService {
	return &recipeService{
		recipeRepository:  recipeRepository,
		catalogRepository: catalogRepository,
		userRepository:    userRepository,
		s3:                s3,
	}
}

// resolveAssociations validates the request (cooking time and amounts >= 1,
// no duplicate ingredients, referenced catalog rows must exist) and returns
// the join rows to persist.
// Duplicate tag ids collapse to one association.
func (s *recipeService) resolveAssociations(ctx context.Context, recipeID uuid.UUID, req domain.SaveRecipeRequest) ([]*entities.RecipeIngredient, []*entities.RecipeTag, error) {
	if req.CookingTime < 1 {
		return nil, nil, domain.ErrInvalidCookingTime
	}

	seenIngredients := make(map[string]bool, len(req.Ingredients))
	ingredientIDs := make([]string, 0, len(req.Ingredients))
	recipeIngredients := make([]*entities.RecipeIngredient, 0, len(req.Ingredients))
	for _, spec := range req.Ingredients {
		if spec.Amount < 1 {
			return nil, nil, domain.ErrInvalidIngredientAmount
		}
		if seenIngredients[spec.ID] {
			return nil, nil, domain.ErrDuplicateIngredient
		}
		seenIngredients[spec.ID] = true

		ingredientID, err := uuid.Parse(spec.ID)
		if err != nil {
			return nil, nil, domain.ErrParseUUID
		}
		ingredientIDs = append(ingredientIDs, spec.ID)
		recipeIngredients = append(recipeIngredients, &entities.RecipeIngredient{
			ID:           uuid.New(),
			RecipeID:     recipeID,
			IngredientID: ingredientID,
			Amount:       spec.Amount,
		})
	}

	seenTags := make(map[string]bool, len(req.Tags))
	tagIDs := make([]string, 0, len(req.Tags))
	recipeTags := make([]*entities.RecipeTag, 0, len(req.Tags))
	for _, id := range req.Tags {
		if seenTags[id] {
			continue
		}
		seenTags[id] = true

		tagID, err := uuid.Parse(id)
		if err != nil {
			return nil, nil, domain.ErrParseUUID
		}
		tagIDs = append(tagIDs, id)
		recipeTags = append(recipeTags, &entities.RecipeTag{
			ID:       uuid.New(),
			RecipeID: recipeID,
			TagID:    tagID,
		})
	}

	ingredients, err := s.catalogRepository.GetIngredientsByIDs(ctx, ingredientIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(ingredients) != len(ingredientIDs) {
		return nil, nil, domain.ErrIngredientNotFound
	}

	tags, err := s.catalogRepository.GetTagsByIDs(ctx, tagIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(tags) != len(tagIDs) {
		return nil, nil, domain.ErrTagNotFound
	}

	return recipeIngredients, recipeTags, nil
}

func (s *recipeService) toResponse(ctx context.Context, recipe *entities.Recipe, userID string, favorited, inCart bool) domain.RecipeResponse {
	res := domain.RecipeResponse{
		ID:               recipe.ID.String(),
		Tags:             make([]domain.TagResponse, 0, len(recipe.Tags)),
		Ingredients:      make([]domain.RecipeIngredientResponse, 0, len(recipe.Ingredients)),
		IsFavorited:      favorited,
		IsInShoppingCart: inCart,
		Name:             recipe.Name,
		Image:            recipe.ImageURL,
		Text:             recipe.Text,
		CookingTime:      recipe.CookingTime,
	}

	for _, rt := range recipe.Tags {
		if rt.Tag == nil {
			continue
		}
		res.Tags = append(res.Tags, domain.TagResponse{
			ID:    rt.Tag.ID.String(),
			Name:  rt.Tag.Name,
			Color: rt.Tag.Color,
			Slug:  rt.Tag.Slug,
		})
	}

	for _, ri := range recipe.Ingredients {
		if ri.Ingredient == nil {
			continue
		}
		res.Ingredients = append(res.Ingredients, domain.RecipeIngredientResponse{
			ID:              ri.Ingredient.ID.String(),
			Name:            ri.Ingredient.Name,
			MeasurementUnit: ri.Ingredient.MeasurementUnit,
			Amount:          ri.Amount,
		})
	}

	if recipe.Author != nil {
		res.Author = domain.UserResponse{
			ID:        recipe.Author.ID.String(),
			Email:     recipe.Author.Email,
			Username:  recipe.Author.Username,
			FirstName: recipe.Author.FirstName,
			LastName:  recipe.Author.LastName,
		}
		if userID != "" && userID != recipe.AuthorID.String() {
			if isSubscribed, err := s.userRepository.IsFollowing(ctx, userID, recipe.AuthorID.String()); err == nil {
				res.Author.IsSubscribed = isSubscribed
			}
		}
	}

	return res
}

func toShortResponse(recipe *entities.Recipe) domain.RecipeShortResponse {
	return domain.RecipeShortResponse{
		ID:          recipe.ID.String(),
		Name:        recipe.Name,
		Image:       recipe.ImageURL,
		CookingTime: recipe.CookingTime,
	}
}

func (s *recipeService) GetRecipes(ctx context.Context, filter domain.RecipeFilter, page, limit int, userID string) ([]domain.RecipeResponse, int64, error) {
	recipes, count, err := s.recipeRepository.GetRecipes(ctx, filter, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	favorited := map[uuid.UUID]bool{}
	inCart := map[uuid.UUID]bool{}
	if userID != "" && len(recipes) > 0 {
		ids := make([]uuid.UUID, 0, len(recipes))
		for _, recipe := range recipes {
			ids = append(ids, recipe.ID)
		}
		if favorited, err = s.recipeRepository.GetFavoritedIDs(ctx, userID, ids); err != nil {
			return nil, 0, err
		}
		if inCart, err = s.recipeRepository.GetShoppingCartIDs(ctx, userID, ids); err != nil {
			return nil, 0, err
		}
	}

	res := make([]domain.RecipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		res = append(res, s.toResponse(ctx, recipe, userID, favorited[recipe.ID], inCart[recipe.ID]))
	}
	return res, count, nil
}

func (s *recipeService) GetRecipeDetail(ctx context.Context, recipeID, userID string) (domain.RecipeResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}

	var favorited, inCart bool
	if userID != "" {
		ids := []uuid.UUID{recipe.ID}
		favoritedIDs, err := s.recipeRepository.GetFavoritedIDs(ctx, userID, ids)
		if err != nil {
			return domain.RecipeResponse{}, err
		}
		cartIDs, err := s.recipeRepository.GetShoppingCartIDs(ctx, userID, ids)
		if err != nil {
			return domain.RecipeResponse{}, err
		}
		favorited = favoritedIDs[recipe.ID]
		inCart = cartIDs[recipe.ID]
	}

	return s.toResponse(ctx, recipe, userID, favorited, inCart), nil
}

func (s *recipeService) CreateRecipe(ctx context.Context, req domain.SaveRecipeRequest, userID string) (domain.RecipeResponse, error) {
	authorID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeResponse{}, domain.ErrParseUUID
	}

	recipe := entities.Recipe{
		ID:          uuid.New(),
		AuthorID:    authorID,
		Name:        req.Name,
		Text:        req.Text,
		ImageURL:    req.Image,
		CookingTime: req.CookingTime,
	}

	ingredients, tags, err := s.resolveAssociations(ctx, recipe.ID, req)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	if err := s.recipeRepository.CreateRecipe(ctx, &recipe, ingredients, tags); err != nil {
		return domain.RecipeResponse{}, err
	}

	return s.GetRecipeDetail(ctx, recipe.ID.String(), userID)
}

func (s *recipeService) UpdateRecipe(ctx context.Context, recipeID string, req domain.SaveRecipeRequest, userID string) (domain.RecipeResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}
	if recipe.AuthorID.String() != userID {
		return domain.RecipeResponse{}, domain.ErrUnauthorizedRecipeAccess
	}

	ingredients, tags, err := s.resolveAssociations(ctx, recipe.ID, req)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	recipe.Name = req.Name
	recipe.Text = req.Text
	recipe.ImageURL = req.Image
	recipe.CookingTime = req.CookingTime

	if err := s.recipeRepository.UpdateRecipe(ctx, recipe, ingredients, tags); err != nil {
		return domain.RecipeResponse{}, err
	}

	return s.GetRecipeDetail(ctx, recipe.ID.String(), userID)
}

func (s *recipeService) DeleteRecipe(ctx context.Context, recipeID, userID string) error {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRecipeNotFound
		}
		return err
	}
	if recipe.AuthorID.String() != userID {
		return domain.ErrUnauthorizedRecipeAccess
	}
	return s.recipeRepository.DeleteRecipe(ctx, recipeID)
}

func (s *recipeService) AddFavorite(ctx context.Context, recipeID, userID string) (domain.RecipeShortResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeShortResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeShortResponse{}, err
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeShortResponse{}, domain.ErrParseUUID
	}

	favorite := entities.Favorite{
		ID:       uuid.New(),
		UserID:   userUUID,
		RecipeID: recipe.ID,
	}
	if err := s.recipeRepository.AddFavorite(ctx, &favorite); err != nil {
		// the unique index on (user_id, recipe_id) closes the race
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeShortResponse{}, domain.ErrAlreadyFavorited
		}
		return domain.RecipeShortResponse{}, err
	}

	return toShortResponse(recipe), nil
}

func (s *recipeService) RemoveFavorite(ctx context.Context, recipeID, userID string) error {
	if err := s.recipeRepository.RemoveFavorite(ctx, userID, recipeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFavorited
		}
		return err
	}
	return nil
}

func (s *recipeService) AddToShoppingCart(ctx context.Context, recipeID, userID string) (domain.RecipeShortResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeShortResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeShortResponse{}, err
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeShortResponse{}, domain.ErrParseUUID
	}

	cart := entities.ShoppingCart{
		ID:       uuid.New(),
		UserID:   userUUID,
		RecipeID: recipe.ID,
	}
	if err := s.recipeRepository.AddShoppingCart(ctx, &cart); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeShortResponse{}, domain.ErrAlreadyInShoppingCart
		}
		return domain.RecipeShortResponse{}, err
	}

	return toShortResponse(recipe), nil
}

func (s *recipeService) RemoveFromShoppingCart(ctx context.Context, recipeID, userID string) error {
	if err := s.recipeRepository.RemoveShoppingCart(ctx, userID, recipeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotInShoppingCart
		}
		return err
	}
	return nil
}

// BuildShoppingList renders the aggregated cart as a plain-text document:
// a header line followed by one "name - total unit" line per ingredient.
func (s *recipeService) BuildShoppingList(ctx context.Context, userID string) (string, error) {
	items, err := s.recipeRepository.GetShoppingList(ctx, userID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Shopping list:")
	for _, item := range items {
		fmt.Fprintf(&b, "\n%s - %d %s", item.Name, item.TotalAmount, item.MeasurementUnit)
	}
	return b.String(), nil
}

func (s *recipeService) UploadRecipeImage(ctx context.Context, req domain.UploadRecipeImageRequest) (domain.UploadRecipeImageResponse, error) {
	objectKey, err := s.s3.UploadFile(ctx, req.Image, "recipes/images", storage.AllowImage...)
	if err != nil {
		return domain.UploadRecipeImageResponse{}, err
	}
	return domain.UploadRecipeImageResponse{
		ImageURL: s.s3.GetPublicLinkKey(objectKey),
	}, nil
}
