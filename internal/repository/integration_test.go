package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/model"
)

func TestUserRepo_CreateAndGetByUsername(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewUserRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "jdoe")
	assert.NotZero(t, user.ID)

	found, err := repo.GetByUsername(ctx, "jdoe")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	dup := &model.User{Username: "jdoe", Email: "x@example.com", Password: "h", Role: model.RoleCustomer}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicate)

	missing, err := repo.GetByID(ctx, user.ID+1000)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProductRepo_GetAndListAvailable(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	shown := seedProduct(t, "shown", "29.99", true)
	hidden := seedProduct(t, "hidden", "9.50", false)

	found, err := repo.GetByID(ctx, hidden.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, decimal.RequireFromString("9.50").Equal(found.Price))

	products, err := repo.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, shown.ID, products[0].ID)

	missing, err := repo.GetByID(ctx, 99999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCatalogRepo_Collections(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewCatalogRepository(testPool)
	ctx := context.Background()
	p := seedProduct(t, "ring", "45.00", true)

	var activeID int64
	require.NoError(t, testPool.QueryRow(ctx,
		`INSERT INTO collections (name, slug, gender_category, is_active) VALUES ('Summer', 'summer', 'her', TRUE) RETURNING id`,
	).Scan(&activeID))
	_, err := testPool.Exec(ctx,
		`INSERT INTO collections (name, slug, is_active) VALUES ('Archive', 'archive', FALSE)`)
	require.NoError(t, err)
	_, err = testPool.Exec(ctx,
		`INSERT INTO collection_products (collection_id, product_id) VALUES ($1, $2)`, activeID, p.ID)
	require.NoError(t, err)

	collections, err := repo.ListActiveCollections(ctx, "")
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, model.GenderHer, collections[0].Gender)

	collections, err = repo.ListActiveCollections(ctx, model.GenderHim)
	require.NoError(t, err)
	assert.Empty(t, collections)

	detail, err := repo.GetActiveCollection(ctx, "summer")
	require.NoError(t, err)
	require.NotNil(t, detail)
	require.Len(t, detail.Products, 1)
	assert.Equal(t, p.ID, detail.Products[0].ID)

	archived, err := repo.GetActiveCollection(ctx, "archive")
	require.NoError(t, err)
	assert.Nil(t, archived)

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)
}

func TestOrderRepo_InsertAndList(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewOrderRepository(testPool)
	ctx := context.Background()
	user := seedUser(t, "buyer")
	p := seedProduct(t, "scarf", "10.00", true)

	order := &model.Order{
		UserID: user.ID, Status: model.OrderStatusProcessing, Paid: true,
		FirstName: "Test", LastName: "User", Email: user.Email,
		Address: "1 Main St", PostalCode: "12345", City: "Springfield",
	}
	err := repo.InTx(ctx, func(tx OrderTx) error {
		product, err := tx.Products().GetByID(ctx, p.ID)
		if err != nil {
			return err
		}
		order.Items = []model.OrderItem{{ProductID: product.ID, Price: product.Price, Quantity: 2}}
		return tx.Insert(ctx, order)
	})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)

	orders, err := repo.ListByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, "scarf", orders[0].Items[0].ProductName)
	assert.True(t, decimal.RequireFromString("20.00").Equal(orders[0].Total()))

	other := seedUser(t, "other")
	notMine, err := repo.GetOwned(ctx, order.ID, other.ID)
	require.NoError(t, err)
	assert.Nil(t, notMine)
}

func TestOrderRepo_InTxRollsBack(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewOrderRepository(testPool)
	ctx := context.Background()
	user := seedUser(t, "rollback")

	order := &model.Order{
		UserID: user.ID, Status: model.OrderStatusProcessing,
		FirstName: "R", LastName: "B", Email: user.Email,
		Address: "a", PostalCode: "p", City: "c",
		// product 99999 does not exist, so the item insert violates the foreign key
		Items: []model.OrderItem{{ProductID: 99999, Price: decimal.NewFromInt(1), Quantity: 1}},
	}
	err := repo.InTx(ctx, func(tx OrderTx) error { return tx.Insert(ctx, order) })
	require.Error(t, err)

	orders, err := repo.ListByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderRepo_UpdateStatusGuardsCurrentStatus(t *testing.T) {
	cleanupTable(t, allTables...)

	repo := NewOrderRepository(testPool)
	ctx := context.Background()
	user := seedUser(t, "status")
	p := seedProduct(t, "hat", "5.00", true)

	order := &model.Order{
		UserID: user.ID, Status: model.OrderStatusProcessing,
		FirstName: "S", LastName: "T", Email: user.Email,
		Address: "a", PostalCode: "p", City: "c",
		Items: []model.OrderItem{{ProductID: p.ID, Price: p.Price, Quantity: 1}},
	}
	require.NoError(t, repo.InTx(ctx, func(tx OrderTx) error { return tx.Insert(ctx, order) }))

	errStop := errors.New("stop")
	err := repo.InTx(ctx, func(tx OrderTx) error {
		locked, err := tx.LockOwned(ctx, order.ID, user.ID)
		if err != nil {
			return err
		}
		require.NotNil(t, locked)

		ok, err := tx.UpdateStatus(ctx, order.ID, model.OrderStatusProcessing, model.OrderStatusCancelled)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.UpdateStatus(ctx, order.ID, model.OrderStatusProcessing, model.OrderStatusCancelled)
		require.NoError(t, err)
		assert.False(t, ok)
		return errStop
	})
	assert.ErrorIs(t, err, errStop)

	found, err := repo.GetOwned(ctx, order.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusProcessing, found.Status)
}
