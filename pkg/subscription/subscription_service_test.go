package subscription

import (
	"context"
	"testing"

	"foodgram/domain"
	"foodgram/entities"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSubscriptionTest(t *testing.T) (SubscriptionService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(
		sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"),
		&gorm.Config{TranslateError: true},
	)
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&entities.User{}, &entities.Follow{}, &entities.Recipe{},
	))

	return NewSubscriptionService(NewSubscriptionRepository(db)), db
}

func seedAuthor(t *testing.T, db *gorm.DB, username string, recipes int) *entities.User {
	t.Helper()
	author := entities.User{
		ID:        uuid.New(),
		Email:     username + "@example.com",
		Username:  username,
		FirstName: "Test",
		LastName:  "Author",
		Password:  "hashed",
		Role:      domain.RoleUser,
	}
	require.NoError(t, db.Create(&author).Error)

	for i := 0; i < recipes; i++ {
		recipe := entities.Recipe{
			ID:          uuid.New(),
			AuthorID:    author.ID,
			Name:        "Recipe",
			Text:        "Some steps.",
			CookingTime: 10,
		}
		require.NoError(t, db.Create(&recipe).Error)
	}
	return &author
}

func TestFollowReturnsAuthorWithRecipes(t *testing.T) {
	service, db := setupSubscriptionTest(t)
	reader := seedAuthor(t, db, "reader", 0)
	author := seedAuthor(t, db, "author", 3)

	res, err := service.Follow(context.Background(), reader.ID.String(), author.ID.String())
	require.NoError(t, err)

	assert.Equal(t, author.Username, res.Username)
	assert.True(t, res.IsSubscribed)
	assert.EqualValues(t, 3, res.RecipesCount)
	assert.Len(t, res.Recipes, 3)
}

func TestFollowSelfRejected(t *testing.T) {
	service, db := setupSubscriptionTest(t)
	reader := seedAuthor(t, db, "reader", 0)

	_, err := service.Follow(context.Background(), reader.ID.String(), reader.ID.String())
	assert.ErrorIs(t, err, domain.ErrSelfFollow)
}

func TestFollowUnknownAuthor(t *testing.T) {
	service, db := setupSubscriptionTest(t)
	reader := seedAuthor(t, db, "reader", 0)

	_, err := service.Follow(context.Background(), reader.ID.String(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestFollowTwiceConflicts(t *testing.T) {
	service, db := setupSubscriptionTest(t)
	reader := seedAuthor(t, db, "reader", 0)
	author := seedAuthor(t, db, "author", 0)

	_, err := service.Follow(context.Background(), reader.ID.String(), author.ID.String())
	require.NoError(t, err)

	_, err = service.Follow(context.Background(), reader.ID.String(), author.ID.String())
	assert.ErrorIs(t, err, domain.ErrAlreadyFollowing)

	var count int64
	require.NoError(t, db.Model(&entities.Follow{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUnfollowWithoutFollow(t *testing.T) {
	service, db := setupSubscriptionTest(t)
	reader := seedAuthor(t, db, "reader", 0)
	author := seedAuthor(t, db, "author", 0)

	err := service.Unfollow(context.Background(), reader.ID.String(), author.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFollowing)
}

func TestListFollowingCapsRecipePreview(t *testing.T) {
	service, db := setupSubscriptionTest(t)
	reader := seedAuthor(t, db, "reader", 0)
	author := seedAuthor(t, db, "author", 5)

	_, err := service.Follow(context.Background(), reader.ID.String(), author.ID.String())
	require.NoError(t, err)

	res, count, err := service.ListFollowing(context.Background(), reader.ID.String(), 1, 20, "2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, res, 1)
	assert.Len(t, res[0].Recipes, 2)
	assert.EqualValues(t, 5, res[0].RecipesCount)
}

func TestListFollowingRejectsBadLimit(t *testing.T) {
	service, db := setupSubscriptionTest(t)
	reader := seedAuthor(t, db, "reader", 0)

	_, _, err := service.ListFollowing(context.Background(), reader.ID.String(), 1, 20, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidRecipesLimit)

	_, _, err = service.ListFollowing(context.Background(), reader.ID.String(), 1, 20, "-1")
	assert.ErrorIs(t, err, domain.ErrInvalidRecipesLimit)
}
