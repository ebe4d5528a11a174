package handlers

import (
	"errors"

	"foodgram/domain"

	"github.com/gofiber/fiber/v2"
)

// statusForError maps domain sentinel errors onto HTTP status codes:
// validation 400, missing rows 404, duplicate edges 409, ownership 403.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrRecipeNotFound),
		errors.Is(err, domain.ErrIngredientNotFound),
		errors.Is(err, domain.ErrTagNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNotFavorited),
		errors.Is(err, domain.ErrNotInShoppingCart),
		errors.Is(err, domain.ErrNotFollowing):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyFavorited),
		errors.Is(err, domain.ErrAlreadyInShoppingCart),
		errors.Is(err, domain.ErrAlreadyFollowing),
		errors.Is(err, domain.ErrEmailAlreadyUsed),
		errors.Is(err, domain.ErrUsernameAlreadyUsed):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrUnauthorizedRecipeAccess):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrCredentialsInvalid),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenInvalid):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusBadRequest
	}
}
