package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// recordingNotifier keeps the last reset token sent to each address.
type recordingNotifier struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (n *recordingNotifier) NotifyPasswordReset(email, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens[email] = token
}

func (n *recordingNotifier) token(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[email]
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	notifier *recordingNotifier
	clock    *testClock
}

// setupApp builds the full application over an in-memory SQLite database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	cfg := repositories.GORMConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repositories.Migrate(db))

	env := &testEnv{
		db:       db,
		notifier: &recordingNotifier{tokens: map[string]string{}},
		clock:    &testClock{t: time.Now().UTC()},
	}
	application := app.New(app.Deps{
		Config: config.Config{
			JWT: config.JWTConfig{
				Secret:     "test_jwt_secret",
				Algorithm:  "HS256",
				AccessTTL:  30 * time.Minute,
				RefreshTTL: 7 * 24 * time.Hour,
			},
			BcryptCost:    bcrypt.MinCost,
			ResetTokenTTL: 30 * time.Minute,
		},
		DB:                db,
		Notifier:          env.notifier,
		Clock:             env.clock.Now,
		DisableRequestLog: true,
	})
	env.app = application.Fiber
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (e *testEnv) doMap(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	status, raw := e.do(t, method, path, token, body)
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return status, out
}

func (e *testEnv) signUp(t *testing.T, name, email, password string, role models.Role) {
	t.Helper()
	status, resp := e.doMap(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": password, "role": string(role),
	})
	require.Equal(t, http.StatusCreated, status, resp)
}

func (e *testEnv) signIn(t *testing.T, email, password string) string {
	t.Helper()
	status, resp := e.doMap(t, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, status, resp)
	return resp["access_token"].(string)
}

func (e *testEnv) userCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.User{}).Count(&n).Error)
	return n
}

func TestSignUpAndSignIn(t *testing.T) {
	env := setupApp(t)

	status, resp := env.doMap(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User Registered Successfully", resp["message"])
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, "ana@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, user, "PasswordHash")

	// Duplicate email is rejected without a new row
	status, resp = env.doMap(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Ana Two", "email": "ana@example.com", "password": "password456",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Email already exist", resp["message"])
	assert.Equal(t, int64(1), env.userCount(t))

	status, resp = env.doMap(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Bo", "email": "bo@example.com", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", resp["message"])
	assert.Contains(t, resp["errors"], "password")

	status, resp = env.doMap(t, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": "ana@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bearer", resp["token_type"])
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["refresh_token"])

	status, resp = env.doMap(t, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", resp["message"])

	status, _ = env.doMap(t, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": "nobody@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRoleEndpoints(t *testing.T) {
	env := setupApp(t)
	env.signUp(t, "Root", "root@example.com", "rootpass", models.RoleAdmin)
	env.signUp(t, "Ana", "ana@example.com", "password123", models.RoleUser)
	adminToken := env.signIn(t, "root@example.com", "rootpass")
	userToken := env.signIn(t, "ana@example.com", "password123")

	status, resp := env.doMap(t, http.MethodGet, "/auth/admin", adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Welcome Admin Root", resp["message"])

	status, resp = env.doMap(t, http.MethodGet, "/auth/admin", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin access required", resp["message"])

	status, resp = env.doMap(t, http.MethodGet, "/auth/user", userToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Welcome User Ana", resp["message"])

	status, resp = env.doMap(t, http.MethodGet, "/auth/user", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "User access required", resp["message"])

	status, _ = env.doMap(t, http.MethodGet, "/auth/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, resp = env.doMap(t, http.MethodGet, "/auth/user", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid token", resp["message"])
}

func TestPasswordResetFlow(t *testing.T) {
	env := setupApp(t)
	env.signUp(t, "Ana", "ana@example.com", "oldpass1", models.RoleUser)

	status, resp := env.doMap(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ana@example.com"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Password reset email sent", resp["message"])
	token := env.notifier.token("ana@example.com")
	require.NotEmpty(t, token)

	// Only the digest is stored
	var stored models.PasswordResetToken
	require.NoError(t, env.db.First(&stored).Error)
	assert.NotEqual(t, token, stored.TokenHash)

	status, resp = env.doMap(t, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token": token, "new_password": "newpass1",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Password reset successfully.", resp["message"])

	status, _ = env.doMap(t, http.MethodPost, "/auth/signin", "", map[string]string{"email": "ana@example.com", "password": "oldpass1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	env.signIn(t, "ana@example.com", "newpass1")

	// A token works once
	status, resp = env.doMap(t, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token": token, "new_password": "another1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid or expired token", resp["message"])
	env.signIn(t, "ana@example.com", "newpass1")

	status, resp = env.doMap(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "User not found", resp["message"])
}

func TestOverlongPasswordIsRejected(t *testing.T) {
	env := setupApp(t)
	long := strings.Repeat("p", 80)

	status, resp := env.doMap(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": long,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Password must be at most 72 bytes", resp["message"])
	assert.Equal(t, int64(0), env.userCount(t))

	env.signUp(t, "Ana", "ana@example.com", "oldpass1", models.RoleUser)
	status, _ = env.doMap(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, status)
	token := env.notifier.token("ana@example.com")

	// Multi-byte runes: 40 characters, 80 bytes.
	status, resp = env.doMap(t, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token": token, "new_password": strings.Repeat("é", 40),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Password must be at most 72 bytes", resp["message"])

	// The rejected attempt does not consume the token.
	status, _ = env.doMap(t, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token": token, "new_password": "newpass1",
	})
	assert.Equal(t, http.StatusOK, status)
	env.signIn(t, "ana@example.com", "newpass1")
}

func TestPasswordResetTokenExpires(t *testing.T) {
	env := setupApp(t)
	env.signUp(t, "Ana", "ana@example.com", "oldpass1", models.RoleUser)

	status, _ := env.doMap(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, status)
	token := env.notifier.token("ana@example.com")

	env.clock.Advance(30 * time.Minute)

	status, resp := env.doMap(t, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token": token, "new_password": "newpass1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid or expired token", resp["message"])
	env.signIn(t, "ana@example.com", "oldpass1")
}

func TestCheckoutAndOrderHistory(t *testing.T) {
	env := setupApp(t)
	env.signUp(t, "Root", "root@example.com", "rootpass", models.RoleAdmin)
	env.signUp(t, "Ana", "ana@example.com", "password123", models.RoleUser)
	env.signUp(t, "Bo", "bo@example.com", "password123", models.RoleUser)
	adminToken := env.signIn(t, "root@example.com", "rootpass")
	anaToken := env.signIn(t, "ana@example.com", "password123")
	boToken := env.signIn(t, "bo@example.com", "password123")

	createProduct := func(name string, price float64) uint {
		status, resp := env.doMap(t, http.MethodPost, "/admin/products/", adminToken, map[string]interface{}{
			"name": name, "description": name + " description", "price": price, "stock": 10, "category": "stationery",
		})
		require.Equal(t, http.StatusCreated, status, resp)
		return uint(resp["id"].(float64))
	}
	pen := createProduct("Pen", 10.00)
	pad := createProduct("Pad", 5.00)

	// Users cannot manage products
	status, _ := env.doMap(t, http.MethodPost, "/admin/products/", anaToken, map[string]interface{}{
		"name": "Nope", "description": "x", "price": 1, "stock": 1, "category": "x",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, resp := env.doMap(t, http.MethodPost, "/checkout/", anaToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Cart is empty", resp["message"])

	status, _ = env.doMap(t, http.MethodPost, "/cart/", anaToken, map[string]interface{}{"product_id": pen, "quantity": 1})
	require.Equal(t, http.StatusOK, status)
	status, resp = env.doMap(t, http.MethodPost, "/cart/", anaToken, map[string]interface{}{"product_id": pen, "quantity": 1})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), resp["quantity"])
	status, _ = env.doMap(t, http.MethodPost, "/cart/", anaToken, map[string]interface{}{"product_id": pad, "quantity": 1})
	require.Equal(t, http.StatusOK, status)

	status, resp = env.doMap(t, http.MethodPost, "/cart/", anaToken, map[string]interface{}{"product_id": 9999, "quantity": 1})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Product not found", resp["message"])

	status, resp = env.doMap(t, http.MethodPost, "/checkout/", anaToken, nil)
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, "Payment successful and order placed.", resp["message"])
	assert.Equal(t, float64(25), resp["total"])
	orderID := uint(resp["order_id"].(float64))
	require.NotZero(t, orderID)

	var cart []map[string]interface{}
	status, raw := env.do(t, http.MethodGet, "/cart/", anaToken, nil)
	assert.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &cart))
	assert.Empty(t, cart)

	status, resp = env.doMap(t, http.MethodPost, "/checkout/", anaToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Cart is empty", resp["message"])

	var history []map[string]interface{}
	status, raw = env.do(t, http.MethodGet, "/orders/", anaToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &history))
	require.Len(t, history, 1)
	assert.Equal(t, float64(25), history[0]["total_amount"])
	assert.Equal(t, "paid", history[0]["status"])

	status, resp = env.doMap(t, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), anaToken, nil)
	require.Equal(t, http.StatusOK, status)
	items := resp["items"].([]interface{})
	require.Len(t, items, 2)
	first := items[0].(map[string]interface{})
	assert.Equal(t, float64(pen), first["product_id"])
	assert.Equal(t, float64(2), first["quantity"])
	assert.Equal(t, float64(10), first["price_at_purchase"])

	// Orders are private to their owner
	status, resp = env.doMap(t, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), boToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Order not found", resp["message"])
	var others []map[string]interface{}
	status, raw = env.do(t, http.MethodGet, "/orders/", boToken, nil)
	assert.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &others))
	assert.Empty(t, others)

	// Admins do not check out
	status, _ = env.doMap(t, http.MethodPost, "/checkout/", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestCartLineMutations(t *testing.T) {
	env := setupApp(t)
	env.signUp(t, "Root", "root@example.com", "rootpass", models.RoleAdmin)
	env.signUp(t, "Ana", "ana@example.com", "password123", models.RoleUser)
	adminToken := env.signIn(t, "root@example.com", "rootpass")
	anaToken := env.signIn(t, "ana@example.com", "password123")

	status, resp := env.doMap(t, http.MethodPost, "/admin/products/", adminToken, map[string]interface{}{
		"name": "Mug", "description": "Coffee mug", "price": 7.5, "stock": 3, "category": "kitchen",
	})
	require.Equal(t, http.StatusCreated, status)
	mug := uint(resp["id"].(float64))

	status, _ = env.doMap(t, http.MethodPost, "/cart/", anaToken, map[string]interface{}{"product_id": mug, "quantity": 1})
	require.Equal(t, http.StatusOK, status)

	status, resp = env.doMap(t, http.MethodPut, fmt.Sprintf("/cart/%d", mug), anaToken, map[string]interface{}{"quantity": 4})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(4), resp["quantity"])

	status, _ = env.doMap(t, http.MethodPut, fmt.Sprintf("/cart/%d", mug), anaToken, map[string]interface{}{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = env.doMap(t, http.MethodDelete, fmt.Sprintf("/cart/%d", mug), anaToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Item removed from cart", resp["message"])

	status, resp = env.doMap(t, http.MethodDelete, fmt.Sprintf("/cart/%d", mug), anaToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Item not found in cart", resp["message"])
}

func TestProductEndpoints(t *testing.T) {
	env := setupApp(t)
	env.signUp(t, "Root", "root@example.com", "rootpass", models.RoleAdmin)
	adminToken := env.signIn(t, "root@example.com", "rootpass")

	for _, p := range []map[string]interface{}{
		{"name": "Desk Lamp", "description": "LED lamp", "price": 30, "stock": 5, "category": "home"},
		{"name": "Notebook", "description": "Lined paper", "price": 4.5, "stock": 40, "category": "stationery"},
		{"name": "Fountain Pen", "description": "Steel nib", "price": 55, "stock": 2, "category": "stationery"},
	} {
		status, resp := env.doMap(t, http.MethodPost, "/admin/products/", adminToken, p)
		require.Equal(t, http.StatusCreated, status, resp)
	}

	status, resp := env.doMap(t, http.MethodPost, "/admin/products/", adminToken, map[string]interface{}{
		"name": "Free", "description": "x", "price": 0, "stock": 1, "category": "x",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", resp["message"])

	status, resp = env.doMap(t, http.MethodGet, "/products/?category=stationery&sort_by=price_desc", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), resp["total"])
	items := resp["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "Fountain Pen", items[0].(map[string]interface{})["name"])

	status, resp = env.doMap(t, http.MethodGet, "/products/?min_price=10&max_price=40", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), resp["total"])

	status, _ = env.doMap(t, http.MethodGet, "/products/?min_price=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var found []map[string]interface{}
	status, raw := env.do(t, http.MethodGet, "/products/search?keyword=lamp", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &found))
	require.Len(t, found, 1)
	lampID := uint(found[0]["id"].(float64))

	status, resp = env.doMap(t, http.MethodPut, fmt.Sprintf("/admin/products/%d", lampID), adminToken, map[string]interface{}{
		"name": "Desk Lamp Pro", "description": "Brighter LED lamp", "price": 35, "stock": 4, "category": "home",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Desk Lamp Pro", resp["name"])
	assert.Equal(t, float64(35), resp["price"])

	status, resp = env.doMap(t, http.MethodGet, fmt.Sprintf("/products/%d", lampID), "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Desk Lamp Pro", resp["name"])

	status, resp = env.doMap(t, http.MethodDelete, fmt.Sprintf("/admin/products/%d", lampID), adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, resp["message"], "deleted successfully")

	status, resp = env.doMap(t, http.MethodGet, fmt.Sprintf("/products/%d", lampID), "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Product not found", resp["message"])

	status, _ = env.doMap(t, http.MethodGet, "/products/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupApp(t)

	status, resp := env.doMap(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", resp["status"])

	status, raw := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "storefront_http_requests_total")
}
