package recipe

import (
	"context"
	"mime/multipart"
	"testing"

	"foodgram/domain"
	"foodgram/entities"
	"foodgram/pkg/catalog"
	"foodgram/pkg/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubAwsS3 struct{}

func (stubAwsS3) UploadFile(ctx context.Context, file *multipart.FileHeader, folder string, allowedTypes ...string) (string, error) {
	return folder + "/stub.png", nil
}

func (stubAwsS3) GetPublicLinkKey(key string) string {
	return "https://cdn.test/" + key
}

func setupRecipeTest(t *testing.T) (RecipeService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(
		sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"),
		&gorm.Config{TranslateError: true},
	)
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&entities.User{}, &entities.Follow{},
		&entities.Tag{}, &entities.Ingredient{},
		&entities.Recipe{}, &entities.RecipeIngredient{}, &entities.RecipeTag{},
		&entities.Favorite{}, &entities.ShoppingCart{},
	))

	service := NewRecipeService(
		NewRecipeRepository(db),
		catalog.NewCatalogRepository(db),
		user.NewUserRepository(db),
		stubAwsS3{},
	)
	return service, db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *entities.User {
	t.Helper()
	u := entities.User{
		ID:        uuid.New(),
		Email:     username + "@example.com",
		Username:  username,
		FirstName: "Test",
		LastName:  "User",
		Password:  "hashed",
		Role:      domain.RoleUser,
	}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func seedIngredient(t *testing.T, db *gorm.DB, name, unit string) *entities.Ingredient {
	t.Helper()
	i := entities.Ingredient{ID: uuid.New(), Name: name, MeasurementUnit: unit}
	require.NoError(t, db.Create(&i).Error)
	return &i
}

func seedTag(t *testing.T, db *gorm.DB, slug string) *entities.Tag {
	t.Helper()
	tag := entities.Tag{ID: uuid.New(), Name: slug, Color: "#49B64E", Slug: slug}
	require.NoError(t, db.Create(&tag).Error)
	return &tag
}

func saveRequest(cookingTime int, tags []*entities.Tag, ingredients ...domain.RecipeIngredientRequest) domain.SaveRecipeRequest {
	tagIDs := make([]string, 0, len(tags))
	for _, tag := range tags {
		tagIDs = append(tagIDs, tag.ID.String())
	}
	return domain.SaveRecipeRequest{
		Name:        "Pancakes",
		Text:        "Mix and fry.",
		Image:       "https://cdn.test/recipes/images/pancakes.png",
		CookingTime: cookingTime,
		Tags:        tagIDs,
		Ingredients: ingredients,
	}
}

func TestCreateRecipePersistsAssociations(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	flour := seedIngredient(t, db, "flour", "g")
	milk := seedIngredient(t, db, "milk", "ml")
	breakfast := seedTag(t, db, "breakfast")

	res, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 200},
		domain.RecipeIngredientRequest{ID: milk.ID.String(), Amount: 300},
	), author.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", res.Name)
	assert.Equal(t, 20, res.CookingTime)
	assert.Equal(t, author.Username, res.Author.Username)
	assert.Len(t, res.Ingredients, 2)
	assert.Len(t, res.Tags, 1)
	assert.Equal(t, "breakfast", res.Tags[0].Slug)

	var joinCount int64
	require.NoError(t, db.Model(&entities.RecipeIngredient{}).Count(&joinCount).Error)
	assert.EqualValues(t, 2, joinCount)
}

func TestCreateRecipeRejectsInvalidAmount(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	flour := seedIngredient(t, db, "flour", "g")
	breakfast := seedTag(t, db, "breakfast")

	_, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 0},
	), author.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidIngredientAmount)

	var recipeCount int64
	require.NoError(t, db.Model(&entities.Recipe{}).Count(&recipeCount).Error)
	assert.EqualValues(t, 0, recipeCount)
}

func TestCreateRecipeRejectsInvalidCookingTime(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	flour := seedIngredient(t, db, "flour", "g")
	breakfast := seedTag(t, db, "breakfast")

	_, err := service.CreateRecipe(context.Background(), saveRequest(0,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 100},
	), author.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidCookingTime)
}

func TestCreateRecipeRejectsDuplicateIngredients(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	flour := seedIngredient(t, db, "flour", "g")
	breakfast := seedTag(t, db, "breakfast")

	_, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 100},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 50},
	), author.ID.String())
	assert.ErrorIs(t, err, domain.ErrDuplicateIngredient)
}

func TestCreateRecipeDeduplicatesTags(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	flour := seedIngredient(t, db, "flour", "g")
	breakfast := seedTag(t, db, "breakfast")

	res, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast, breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 100},
	), author.ID.String())
	require.NoError(t, err)

	require.Len(t, res.Tags, 1)
	assert.Equal(t, "breakfast", res.Tags[0].Slug)

	var tagCount int64
	require.NoError(t, db.Model(&entities.RecipeTag{}).Count(&tagCount).Error)
	assert.EqualValues(t, 1, tagCount)
}

func TestCreateRecipeRejectsUnknownIngredient(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	breakfast := seedTag(t, db, "breakfast")

	_, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: uuid.NewString(), Amount: 100},
	), author.ID.String())
	assert.ErrorIs(t, err, domain.ErrIngredientNotFound)
}

func TestUpdateRecipeReplacesAssociations(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	flour := seedIngredient(t, db, "flour", "g")
	sugar := seedIngredient(t, db, "sugar", "g")
	breakfast := seedTag(t, db, "breakfast")
	dinner := seedTag(t, db, "dinner")

	created, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 1},
	), author.ID.String())
	require.NoError(t, err)

	updated, err := service.UpdateRecipe(context.Background(), created.ID, saveRequest(45,
		[]*entities.Tag{dinner},
		domain.RecipeIngredientRequest{ID: sugar.ID.String(), Amount: 2},
	), author.ID.String())
	require.NoError(t, err)

	assert.Equal(t, 45, updated.CookingTime)
	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, "sugar", updated.Ingredients[0].Name)
	assert.Equal(t, 2, updated.Ingredients[0].Amount)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, "dinner", updated.Tags[0].Slug)

	var joinCount int64
	require.NoError(t, db.Model(&entities.RecipeIngredient{}).Count(&joinCount).Error)
	assert.EqualValues(t, 1, joinCount)
}

func TestUpdateRecipeRequiresAuthor(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	other := seedUser(t, db, "other")
	flour := seedIngredient(t, db, "flour", "g")
	breakfast := seedTag(t, db, "breakfast")

	created, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 100},
	), author.ID.String())
	require.NoError(t, err)

	_, err = service.UpdateRecipe(context.Background(), created.ID, saveRequest(30,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 100},
	), other.ID.String())
	assert.ErrorIs(t, err, domain.ErrUnauthorizedRecipeAccess)

	err = service.DeleteRecipe(context.Background(), created.ID, other.ID.String())
	assert.ErrorIs(t, err, domain.ErrUnauthorizedRecipeAccess)
}

func TestDeleteRecipeRemovesDependents(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	reader := seedUser(t, db, "reader")
	flour := seedIngredient(t, db, "flour", "g")
	breakfast := seedTag(t, db, "breakfast")

	created, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 100},
	), author.ID.String())
	require.NoError(t, err)

	_, err = service.AddFavorite(context.Background(), created.ID, reader.ID.String())
	require.NoError(t, err)
	_, err = service.AddToShoppingCart(context.Background(), created.ID, reader.ID.String())
	require.NoError(t, err)

	require.NoError(t, service.DeleteRecipe(context.Background(), created.ID, author.ID.String()))

	for _, model := range []interface{}{
		&entities.Recipe{}, &entities.RecipeIngredient{}, &entities.RecipeTag{},
		&entities.Favorite{}, &entities.ShoppingCart{},
	} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.EqualValues(t, 0, count)
	}
}

func TestAddFavoriteTwiceConflicts(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	reader := seedUser(t, db, "reader")
	flour := seedIngredient(t, db, "flour", "g")
	breakfast := seedTag(t, db, "breakfast")

	created, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 100},
	), author.ID.String())
	require.NoError(t, err)

	short, err := service.AddFavorite(context.Background(), created.ID, reader.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, short.ID)

	_, err = service.AddFavorite(context.Background(), created.ID, reader.ID.String())
	assert.ErrorIs(t, err, domain.ErrAlreadyFavorited)

	var count int64
	require.NoError(t, db.Model(&entities.Favorite{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRemoveFromShoppingCartWhenAbsent(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	reader := seedUser(t, db, "reader")
	flour := seedIngredient(t, db, "flour", "g")
	breakfast := seedTag(t, db, "breakfast")

	created, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 100},
	), author.ID.String())
	require.NoError(t, err)

	err = service.RemoveFromShoppingCart(context.Background(), created.ID, reader.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotInShoppingCart)

	err = service.RemoveFavorite(context.Background(), created.ID, reader.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFavorited)
}

func TestBuildShoppingListAggregatesAcrossRecipes(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	reader := seedUser(t, db, "reader")
	flour := seedIngredient(t, db, "flour", "g")
	sugar := seedIngredient(t, db, "sugar", "g")
	breakfast := seedTag(t, db, "breakfast")

	first, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 100},
		domain.RecipeIngredientRequest{ID: sugar.ID.String(), Amount: 50},
	), author.ID.String())
	require.NoError(t, err)

	second, err := service.CreateRecipe(context.Background(), saveRequest(30,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 200},
	), author.ID.String())
	require.NoError(t, err)

	for _, id := range []string{first.ID, second.ID} {
		_, err = service.AddToShoppingCart(context.Background(), id, reader.ID.String())
		require.NoError(t, err)
	}

	doc, err := service.BuildShoppingList(context.Background(), reader.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Shopping list:\nflour - 300 g\nsugar - 50 g", doc)
}

func TestBuildShoppingListEmptyCart(t *testing.T) {
	service, db := setupRecipeTest(t)
	reader := seedUser(t, db, "reader")

	doc, err := service.BuildShoppingList(context.Background(), reader.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Shopping list:", doc)
}

func TestGetRecipesFiltersByTagAndCart(t *testing.T) {
	service, db := setupRecipeTest(t)
	author := seedUser(t, db, "author")
	reader := seedUser(t, db, "reader")
	flour := seedIngredient(t, db, "flour", "g")
	breakfast := seedTag(t, db, "breakfast")
	dinner := seedTag(t, db, "dinner")

	tagged, err := service.CreateRecipe(context.Background(), saveRequest(20,
		[]*entities.Tag{breakfast},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 100},
	), author.ID.String())
	require.NoError(t, err)

	_, err = service.CreateRecipe(context.Background(), saveRequest(30,
		[]*entities.Tag{dinner},
		domain.RecipeIngredientRequest{ID: flour.ID.String(), Amount: 100},
	), author.ID.String())
	require.NoError(t, err)

	res, count, err := service.GetRecipes(context.Background(), domain.RecipeFilter{
		TagSlugs: []string{"breakfast"},
	}, 1, 20, reader.ID.String())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, res, 1)
	assert.Equal(t, tagged.ID, res[0].ID)
	assert.False(t, res[0].IsInShoppingCart)

	_, err = service.AddToShoppingCart(context.Background(), tagged.ID, reader.ID.String())
	require.NoError(t, err)

	res, count, err = service.GetRecipes(context.Background(), domain.RecipeFilter{
		InCartOnly: true,
	}, 1, 20, reader.ID.String())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, res, 1)
	assert.True(t, res[0].IsInShoppingCart)
}
