package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"foodgram/domain"
	"foodgram/entities"
	"foodgram/internal/api/handlers"
	"foodgram/internal/api/routes"
	"foodgram/internal/middleware"
	"foodgram/internal/utils"
	"foodgram/pkg/catalog"
	"foodgram/pkg/jwt"
	"foodgram/pkg/recipe"
	"foodgram/pkg/subscription"
	"foodgram/pkg/user"

	"github.com/gofiber/fiber/v2"
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

func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
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

	utils.InitValidator()
	app := fiber.New()

	userRepository := user.NewUserRepository(db)
	catalogRepository := catalog.NewCatalogRepository(db)
	recipeRepository := recipe.NewRecipeRepository(db)
	subscriptionRepository := subscription.NewSubscriptionRepository(db)

	jwtService := jwt.NewJWTService()
	userService := user.NewUserService(userRepository, jwtService)
	catalogService := catalog.NewCatalogService(catalogRepository)
	recipeService := recipe.NewRecipeService(recipeRepository, catalogRepository, userRepository, stubAwsS3{})
	subscriptionService := subscription.NewSubscriptionService(subscriptionRepository)

	routesConfig := routes.Config{
		App:                 app,
		UserHandler:         handlers.NewUserHandler(userService, utils.Validate),
		CatalogHandler:      handlers.NewCatalogHandler(catalogService),
		RecipeHandler:       handlers.NewRecipeHandler(recipeService, utils.Validate),
		SubscriptionHandler: handlers.NewSubscriptionHandler(subscriptionService),
		Middleware:          middleware.NewMiddleware(),
		JWTService:          jwtService,
	}
	routesConfig.Setup()

	return app, db
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	res, err := app.Test(req, -1)
	require.NoError(t, err)
	return res
}

func decodeData(t *testing.T, res *http.Response, out any) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&envelope))
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
}

func registerAndLogin(t *testing.T, app *fiber.App, username string) string {
	t.Helper()

	res := doRequest(t, app, fiber.MethodPost, "/api/v1/users/register", "", fiber.Map{
		"email":      username + "@example.com",
		"username":   username,
		"first_name": "Test",
		"last_name":  "User",
		"password":   "supersecret",
	})
	require.Equal(t, fiber.StatusCreated, res.StatusCode)

	res = doRequest(t, app, fiber.MethodPost, "/api/v1/users/login", "", fiber.Map{
		"email":    username + "@example.com",
		"password": "supersecret",
	})
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	var login domain.LoginResponse
	decodeData(t, res, &login)
	require.NotEmpty(t, login.Token)
	return login.Token
}

func seedCatalog(t *testing.T, db *gorm.DB) (*entities.Ingredient, *entities.Tag) {
	t.Helper()

	flour := entities.Ingredient{ID: uuid.New(), Name: "flour", MeasurementUnit: "g"}
	require.NoError(t, db.Create(&flour).Error)
	breakfast := entities.Tag{ID: uuid.New(), Name: "Breakfast", Color: "#49B64E", Slug: "breakfast"}
	require.NoError(t, db.Create(&breakfast).Error)
	return &flour, &breakfast
}

func TestRecipeLifecycleOverHTTP(t *testing.T) {
	app, db := setupTestApp(t)
	token := registerAndLogin(t, app, "chef")
	flour, breakfast := seedCatalog(t, db)

	// unauthenticated writes are rejected
	res := doRequest(t, app, fiber.MethodPost, "/api/v1/recipes", "", fiber.Map{})
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)

	res = doRequest(t, app, fiber.MethodPost, "/api/v1/recipes", token, fiber.Map{
		"name":         "Pancakes",
		"text":         "Mix and fry.",
		"image":        "https://cdn.test/recipes/images/pancakes.png",
		"cooking_time": 20,
		"tags":         []string{breakfast.ID.String()},
		"ingredients": []fiber.Map{
			{"id": flour.ID.String(), "amount": 100},
		},
	})
	require.Equal(t, fiber.StatusCreated, res.StatusCode)

	var created domain.RecipeResponse
	decodeData(t, res, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "chef", created.Author.Username)

	// anonymous reads work
	res = doRequest(t, app, fiber.MethodGet, "/api/v1/recipes/"+created.ID, "", nil)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	res = doRequest(t, app, fiber.MethodPost, "/api/v1/recipes/"+created.ID+"/favorite", token, nil)
	assert.Equal(t, fiber.StatusCreated, res.StatusCode)
	res = doRequest(t, app, fiber.MethodPost, "/api/v1/recipes/"+created.ID+"/favorite", token, nil)
	assert.Equal(t, fiber.StatusConflict, res.StatusCode)

	res = doRequest(t, app, fiber.MethodDelete, "/api/v1/recipes/"+created.ID+"/favorite", token, nil)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
	res = doRequest(t, app, fiber.MethodDelete, "/api/v1/recipes/"+created.ID+"/favorite", token, nil)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
}

func TestShoppingCartDownloadOverHTTP(t *testing.T) {
	app, db := setupTestApp(t)
	token := registerAndLogin(t, app, "shopper")
	flour, breakfast := seedCatalog(t, db)

	res := doRequest(t, app, fiber.MethodPost, "/api/v1/recipes", token, fiber.Map{
		"name":         "Bread",
		"text":         "Knead and bake.",
		"image":        "https://cdn.test/recipes/images/bread.png",
		"cooking_time": 90,
		"tags":         []string{breakfast.ID.String()},
		"ingredients": []fiber.Map{
			{"id": flour.ID.String(), "amount": 500},
		},
	})
	require.Equal(t, fiber.StatusCreated, res.StatusCode)

	var created domain.RecipeResponse
	decodeData(t, res, &created)

	res = doRequest(t, app, fiber.MethodPost, "/api/v1/recipes/"+created.ID+"/shopping_cart", token, nil)
	require.Equal(t, fiber.StatusCreated, res.StatusCode)

	res = doRequest(t, app, fiber.MethodGet, "/api/v1/recipes/download_shopping_cart", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)

	res = doRequest(t, app, fiber.MethodGet, "/api/v1/recipes/download_shopping_cart", token, nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.Equal(t, `attachment; filename="shopping_list.txt"`, res.Header.Get(fiber.HeaderContentDisposition))

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "Shopping list:\nflour - 500 g", string(body))
}

func TestSubscriptionFlowOverHTTP(t *testing.T) {
	app, db := setupTestApp(t)
	readerToken := registerAndLogin(t, app, "reader")
	_ = registerAndLogin(t, app, "writer")

	var author entities.User
	require.NoError(t, db.Where("username = ?", "writer").First(&author).Error)

	res := doRequest(t, app, fiber.MethodPost, "/api/v1/users/"+author.ID.String()+"/subscribe", readerToken, nil)
	require.Equal(t, fiber.StatusCreated, res.StatusCode)

	res = doRequest(t, app, fiber.MethodPost, "/api/v1/users/"+author.ID.String()+"/subscribe", readerToken, nil)
	assert.Equal(t, fiber.StatusConflict, res.StatusCode)

	res = doRequest(t, app, fiber.MethodGet, "/api/v1/users/subscriptions", readerToken, nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	var data struct {
		Subscriptions []domain.SubscriptionResponse `json:"subscriptions"`
	}
	decodeData(t, res, &data)
	require.Len(t, data.Subscriptions, 1)
	assert.Equal(t, "writer", data.Subscriptions[0].Username)

	res = doRequest(t, app, fiber.MethodDelete, "/api/v1/users/"+author.ID.String()+"/subscribe", readerToken, nil)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	res = doRequest(t, app, fiber.MethodDelete, "/api/v1/users/"+author.ID.String()+"/subscribe", readerToken, nil)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
}

func TestCatalogEndpoints(t *testing.T) {
	app, db := setupTestApp(t)
	flour, breakfast := seedCatalog(t, db)

	res := doRequest(t, app, fiber.MethodGet, "/api/v1/tags", "", nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	var tags []domain.TagResponse
	decodeData(t, res, &tags)
	require.Len(t, tags, 1)
	assert.Equal(t, breakfast.Slug, tags[0].Slug)

	res = doRequest(t, app, fiber.MethodGet, "/api/v1/ingredients?name=fl", "", nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	var ingredients []domain.IngredientResponse
	decodeData(t, res, &ingredients)
	require.Len(t, ingredients, 1)
	assert.Equal(t, flour.Name, ingredients[0].Name)

	res = doRequest(t, app, fiber.MethodGet, "/api/v1/ingredients/"+uuid.NewString(), "", nil)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
}
