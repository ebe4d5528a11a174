package catalog

import (
	"context"
	"errors"

	"foodgram/domain"
	"foodgram/entities"

	"gorm.io/gorm"
)

type (
	CatalogService interface {
		GetTags(ctx context.Context) ([]domain.TagResponse, error)
		GetTagDetail(ctx context.Context, id string) (domain.TagResponse, error)
		GetIngredients(ctx context.Context, name string) ([]domain.IngredientResponse, error)
		GetIngredientDetail(ctx context.Context, id string) (domain.IngredientResponse, error)
	}

	catalogService struct {
		catalogRepository CatalogRepository
	}
)

func NewCatalogService(catalogRepository CatalogRepository) CatalogService {
	return &catalogService{catalogRepository: catalogRepository}
}

func toTagResponse(tag *entities.Tag) domain.TagResponse {
	return domain.TagResponse{
		ID:    tag.ID.String(),
		Name:  tag.Name,
		Color: tag.Color,
		Slug:  tag.Slug,
	}
}

func toIngredientResponse(ingredient *entities.Ingredient) domain.IngredientResponse {
	return domain.IngredientResponse{
		ID:              ingredient.ID.String(),
		Name:            ingredient.Name,
		MeasurementUnit: ingredient.MeasurementUnit,
	}
}

func (s *catalogService) GetTags(ctx context.Context) ([]domain.TagResponse, error) {
	tags, err := s.catalogRepository.GetTags(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]domain.TagResponse, 0, len(tags))
	for _, tag := range tags {
		res = append(res, toTagResponse(tag))
	}
	return res, nil
}

func (s *catalogService) GetTagDetail(ctx context.Context, id string) (domain.TagResponse, error) {
	tag, err := s.catalogRepository.GetTagByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.TagResponse{}, domain.ErrTagNotFound
		}
		return domain.TagResponse{}, err
	}
	return toTagResponse(tag), nil
}

func (s *catalogService) GetIngredients(ctx context.Context, name string) ([]domain.IngredientResponse, error) {
	ingredients, err := s.catalogRepository.GetIngredients(ctx, name)
	if err != nil {
		return nil, err
	}

	res := make([]domain.IngredientResponse, 0, len(ingredients))
	for _, ingredient := range ingredients {
		res = append(res, toIngredientResponse(ingredient))
	}
	return res, nil
}

func (s *catalogService) GetIngredientDetail(ctx context.Context, id string) (domain.IngredientResponse, error) {
	ingredient, err := s.catalogRepository.GetIngredientByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.IngredientResponse{}, domain.ErrIngredientNotFound
		}
		return domain.IngredientResponse{}, err
	}
	return toIngredientResponse(ingredient), nil
}
