package domain

import "errors"

var (
	MessageSuccessGetSubscriptions = "success get subscriptions"
	MessageSuccessSubscribe        = "subscribed successfully"
	MessageSuccessUnsubscribe      = "unsubscribed successfully"

	MessageFailedGetSubscriptions = "failed to get subscriptions"
	MessageFailedSubscribe        = "failed to subscribe"
	MessageFailedUnsubscribe      = "failed to unsubscribe"

	ErrSelfFollow          = errors.New("cannot follow self")
	ErrAlreadyFollowing    = errors.New("already following this author")
	ErrNotFollowing        = errors.New("not following this author")
	ErrInvalidRecipesLimit = errors.New("invalid recipes limit value")
)

type (
	SubscriptionResponse struct {
		Email        string                `json:"email"`
		ID           string                `json:"id"`
		Username     string                `json:"username"`
		FirstName    string                `json:"first_name"`
		LastName     string                `json:"last_name"`
		IsSubscribed bool                  `json:"is_subscribed"`
		Recipes      []RecipeShortResponse `json:"recipes"`
		RecipesCount int64                 `json:"recipes_count"`
	}
)
