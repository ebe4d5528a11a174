package subscription

import (
	"context"
	"errors"
	"strconv"

	"foodgram/domain"
	"foodgram/entities"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	SubscriptionService interface {
		Follow(ctx context.Context, userID, authorID string) (domain.SubscriptionResponse, error)
		Unfollow(ctx context.Context, userID, authorID string) error
		ListFollowing(ctx context.Context, userID string, page, limit int, recipesLimit string) ([]domain.SubscriptionResponse, int64, error)
	}

	subscriptionService struct {
		subscriptionRepository SubscriptionRepository
	}
)

func NewSubscriptionService(subscriptionRepository SubscriptionRepository) SubscriptionService {
	return &subscriptionService{subscriptionRepository: subscriptionRepository}
}

func (s *subscriptionService) toResponse(ctx context.Context, author *entities.User, recipesLimit int) (domain.SubscriptionResponse, error) {
	recipes, err := s.subscriptionRepository.GetAuthorRecipes(ctx, author.ID.String(), recipesLimit)
	if err != nil {
		return domain.SubscriptionResponse{}, err
	}
	count, err := s.subscriptionRepository.CountAuthorRecipes(ctx, author.ID.String())
	if err != nil {
		return domain.SubscriptionResponse{}, err
	}

	preview := make([]domain.RecipeShortResponse, 0, len(recipes))
	for _, recipe := range recipes {
		preview = append(preview, domain.RecipeShortResponse{
			ID:          recipe.ID.String(),
			Name:        recipe.Name,
			Image:       recipe.ImageURL,
			CookingTime: recipe.CookingTime,
		})
	}

	return domain.SubscriptionResponse{
		Email:        author.Email,
		ID:           author.ID.String(),
		Username:     author.Username,
		FirstName:    author.FirstName,
		LastName:     author.LastName,
		IsSubscribed: true,
		Recipes:      preview,
		RecipesCount: count,
	}, nil
}

func (s *subscriptionService) Follow(ctx context.Context, userID, authorID string) (domain.SubscriptionResponse, error) {
	if userID == authorID {
		return domain.SubscriptionResponse{}, domain.ErrSelfFollow
	}

	author, err := s.subscriptionRepository.GetAuthorByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SubscriptionResponse{}, domain.ErrUserNotFound
		}
		return domain.SubscriptionResponse{}, err
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.SubscriptionResponse{}, domain.ErrParseUUID
	}

	follow := entities.Follow{
		ID:       uuid.New(),
		UserID:   userUUID,
		AuthorID: author.ID,
	}
	if err := s.subscriptionRepository.CreateFollow(ctx, &follow); err != nil {
		// the unique index on (user_id, author_id) closes the race
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.SubscriptionResponse{}, domain.ErrAlreadyFollowing
		}
		return domain.SubscriptionResponse{}, err
	}

	return s.toResponse(ctx, author, -1)
}

func (s *subscriptionService) Unfollow(ctx context.Context, userID, authorID string) error {
	if err := s.subscriptionRepository.DeleteFollow(ctx, userID, authorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFollowing
		}
		return err
	}
	return nil
}

// ListFollowing returns the followed authors with their newest recipes.
// recipesLimit is the raw query value: empty means no cap, anything that is
// not a non-negative integer is rejected.
func (s *subscriptionService) ListFollowing(ctx context.Context, userID string, page, limit int, recipesLimit string) ([]domain.SubscriptionResponse, int64, error) {
	previewLimit := -1
	if recipesLimit != "" {
		parsed, err := strconv.Atoi(recipesLimit)
		if err != nil || parsed < 0 {
			return nil, 0, domain.ErrInvalidRecipesLimit
		}
		previewLimit = parsed
	}

	authors, count, err := s.subscriptionRepository.GetFollowedAuthors(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]domain.SubscriptionResponse, 0, len(authors))
	for _, author := range authors {
		item, err := s.toResponse(ctx, author, previewLimit)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, item)
	}
	return res, count, nil
}
