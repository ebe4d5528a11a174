package handlers

import (
	"strconv"

	"foodgram/domain"
	"foodgram/internal/api/presenters"
	"foodgram/pkg/subscription"

	"github.com/gofiber/fiber/v2"
)

type (
	SubscriptionHandler interface {
		GetSubscriptions(c *fiber.Ctx) error
		Subscribe(c *fiber.Ctx) error
		Unsubscribe(c *fiber.Ctx) error
	}

	subscriptionHandler struct {
		subscriptionService subscription.SubscriptionService
	}
)

func NewSubscriptionHandler(subscriptionService subscription.SubscriptionService) SubscriptionHandler {
	return &subscriptionHandler{subscriptionService: subscriptionService}
}

func (h *subscriptionHandler) GetSubscriptions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}

	subscriptions, count, err := h.subscriptionService.ListFollowing(
		c.Context(), userID, page, limit, c.Query("recipes_limit", ""),
	)
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedGetSubscriptions, err)
	}

	return presenters.SuccessResponse(c, fiber.Map{
		"subscriptions": subscriptions,
		"pagination": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total":       count,
			"total_pages": (count + int64(limit) - 1) / int64(limit),
		},
	}, fiber.StatusOK, domain.MessageSuccessGetSubscriptions)
}

func (h *subscriptionHandler) Subscribe(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	authorID := c.Params("id")

	res, err := h.subscriptionService.Follow(c.Context(), userID, authorID)
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedSubscribe, err)
	}

	return presenters.SuccessResponse(c, res, fiber.StatusCreated, domain.MessageSuccessSubscribe)
}

func (h *subscriptionHandler) Unsubscribe(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	authorID := c.Params("id")

	if err := h.subscriptionService.Unfollow(c.Context(), userID, authorID); err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedUnsubscribe, err)
	}

	return presenters.SuccessResponse(c, nil, fiber.StatusOK, domain.MessageSuccessUnsubscribe)
}
