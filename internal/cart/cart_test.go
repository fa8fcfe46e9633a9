package cart

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/biki-cloud/online-shop/internal/stores/postgres"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	envDefault("POSTGRES_HOST", "localhost")
	envDefault("POSTGRES_PORT", "5432")
	envDefault("POSTGRES_USER", "postgres")
	envDefault("POSTGRES_PASSWORD", "postgres")
	envDefault("POSTGRES_DB", "online_shop_test")

	db, err := postgres.OpenDB()
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	if err := postgres.RunMigrations(db, "../../migrations"); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envDefault(key, value string) {
	if os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}

func insertTestUser(t *testing.T, db *sql.DB) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, 'Test User', $2, 'x', 'user')
	`, id, fmt.Sprintf("%s@test.example", id))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec(`DELETE FROM carts WHERE user_id = $1`, id)
		db.Exec(`DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func insertTestProduct(t *testing.T, db *sql.DB, price int64) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO products (id, name, price, currency, stock)
		VALUES ($1, 'Test Product', $2, 'JPY', 100)
	`, id, price)
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec(`DELETE FROM products WHERE id = $1`, id) })
	return id
}

func TestAddItem_AccumulatesQuantityInOneRow(t *testing.T) {
	db := setupDB(t)
	conf, err := NewConf(db)
	require.NoError(t, err)
	ctx := context.Background()

	userID := insertTestUser(t, db)
	productID := insertTestProduct(t, db, 1000)

	first, err := conf.AddItem(ctx, userID, productID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Quantity)

	second, err := conf.AddItem(ctx, userID, productID, 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same (cart, product) pair must stay one row")
	assert.Equal(t, 4, second.Quantity)

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
		first.CartID, productID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAddItem_RejectsInvalidQuantity(t *testing.T) {
	db := setupDB(t)
	conf, err := NewConf(db)
	require.NoError(t, err)

	_, err = conf.AddItem(context.Background(), uuid.NewString(), uuid.NewString(), 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestFindActiveCart_NeverReturnsCompleted(t *testing.T) {
	db := setupDB(t)
	conf, err := NewConf(db)
	require.NoError(t, err)
	ctx := context.Background()

	userID := insertTestUser(t, db)
	productID := insertTestProduct(t, db, 1000)

	_, err = conf.AddItem(ctx, userID, productID, 1)
	require.NoError(t, err)

	crt, err := conf.FindActiveCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, crt.Status)

	require.NoError(t, conf.Clear(ctx, userID))

	_, err = conf.FindActiveCart(ctx, userID)
	assert.ErrorIs(t, err, ErrNoActiveCart)
}

func TestClear_RemovesItemsAndIsIdempotent(t *testing.T) {
	db := setupDB(t)
	conf, err := NewConf(db)
	require.NoError(t, err)
	ctx := context.Background()

	userID := insertTestUser(t, db)
	productID := insertTestProduct(t, db, 1000)

	item, err := conf.AddItem(ctx, userID, productID, 2)
	require.NoError(t, err)

	require.NoError(t, conf.Clear(ctx, userID))
	// clearing again when nothing is active is a no-op
	require.NoError(t, conf.Clear(ctx, userID))

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM cart_items WHERE cart_id = $1`, item.CartID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "completed cart must not keep items around")

	// a fresh add starts a brand new active cart
	fresh, err := conf.AddItem(ctx, userID, productID, 1)
	require.NoError(t, err)
	assert.NotEqual(t, item.CartID, fresh.CartID)
	assert.Equal(t, 1, fresh.Quantity)
}

func TestUpdateItemQuantity(t *testing.T) {
	db := setupDB(t)
	conf, err := NewConf(db)
	require.NoError(t, err)
	ctx := context.Background()

	userID := insertTestUser(t, db)
	productID := insertTestProduct(t, db, 1000)

	item, err := conf.AddItem(ctx, userID, productID, 2)
	require.NoError(t, err)

	updated, err := conf.UpdateItemQuantity(ctx, item.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Quantity)

	_, err = conf.UpdateItemQuantity(ctx, item.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = conf.UpdateItemQuantity(ctx, 99999999, 3)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveItem_DoubleRemoveIsNotAnError(t *testing.T) {
	db := setupDB(t)
	conf, err := NewConf(db)
	require.NoError(t, err)
	ctx := context.Background()

	userID := insertTestUser(t, db)
	productID := insertTestProduct(t, db, 1000)

	item, err := conf.AddItem(ctx, userID, productID, 1)
	require.NoError(t, err)

	removed, err := conf.RemoveItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = conf.RemoveItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestGetCartItems_SkipsDeletedProducts(t *testing.T) {
	db := setupDB(t)
	conf, err := NewConf(db)
	require.NoError(t, err)
	ctx := context.Background()

	userID := insertTestUser(t, db)
	keptProduct := insertTestProduct(t, db, 1000)
	doomedProduct := insertTestProduct(t, db, 2000)

	_, err = conf.AddItem(ctx, userID, keptProduct, 1)
	require.NoError(t, err)
	item, err := conf.AddItem(ctx, userID, doomedProduct, 2)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM products WHERE id = $1`, doomedProduct)
	require.NoError(t, err)

	items, err := conf.GetCartItems(ctx, item.CartID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, keptProduct, items[0].ProductID)
	assert.Equal(t, int64(1000), items[0].Price)
}
