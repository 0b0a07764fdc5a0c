package repository

import (
	"context"
	"testing"
	"time"

	"farmland-checkout/internal/model"
	"farmland-checkout/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedUser(t *testing.T, db *gorm.DB, id string, points int64) {
	t.Helper()
	require.NoError(t, db.Create(&model.User{ID: id, Name: "Ana", Points: points}).Error)
}

func TestUserRepository_DeductPoints(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	seedUser(t, db, "u1", 250)

	require.NoError(t, repo.DeductPoints(ctx, db, "u1", 100))
	points, err := repo.Points(ctx, db, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), points)

	err = repo.DeductPoints(ctx, db, "u1", 151)
	assert.ErrorIs(t, err, ErrConditionNotMet)

	points, err = repo.Points(ctx, db, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), points, "failed deduction must not touch the balance")
}

func TestUserRepository_ReversePointsFloorsAtZero(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	seedUser(t, db, "u1", 20)

	require.NoError(t, repo.ReversePoints(ctx, db, "u1", 13))
	points, _ := repo.Points(ctx, db, "u1")
	assert.Equal(t, int64(7), points)

	require.NoError(t, repo.ReversePoints(ctx, db, "u1", 13))
	points, _ = repo.Points(ctx, db, "u1")
	assert.Equal(t, int64(0), points)
}

func TestUserRepository_AddPointsUnknownUser(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)

	err := repo.AddPoints(context.Background(), db, "ghost", 5)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_EnsureExists(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	seedUser(t, db, "u1", 40)

	require.NoError(t, repo.EnsureExists(ctx, &model.User{ID: "u1", Name: "Someone Else", Points: 999}))
	require.NoError(t, repo.EnsureExists(ctx, &model.User{ID: "u2", Name: "Luis"}))

	user, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, int64(40), user.Points, "existing rows are untouched")

	user, err = repo.FindByID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Points)
}

func TestTransactionRepository_MarkPaidOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.PaymentTransaction{
		ReferenceID:   "FD-1-12.72",
		InvoiceNumber: "INV1",
		UserID:        "u1",
		Amount:        decimal.RequireFromString("12.72"),
		Items:         []model.LineItem{{ID: "5", Quantity: 2}},
		Provider:      "authorizenet",
		Status:        model.PaymentStatusPending,
	}))

	require.NoError(t, repo.MarkPaid(ctx, db, "FD-1-12.72", "6002", "ORD-20240101-1234", 13))
	assert.ErrorIs(t, repo.MarkPaid(ctx, db, "FD-1-12.72", "6002", "ORD-20240101-9999", 13), ErrConditionNotMet)

	txn, err := repo.FindByReferenceID(ctx, "FD-1-12.72")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, txn.Status)
	assert.Equal(t, "ORD-20240101-1234", txn.OrderNumber)
	assert.Equal(t, []model.LineItem{{ID: "5", Quantity: 2}}, txn.Items)
	assert.True(t, decimal.RequireFromString("12.72").Equal(txn.Amount))

	byInvoice, err := repo.FindByInvoiceNumber(ctx, db, "INV1")
	require.NoError(t, err)
	assert.Equal(t, "FD-1-12.72", byInvoice.ReferenceID)
}

func TestTransactionRepository_DuplicateReference(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	txn := model.PaymentTransaction{ReferenceID: "FD-1-1.00", InvoiceNumber: "INV1", Amount: decimal.NewFromInt(1), Provider: "authorizenet", Status: model.PaymentStatusPending}
	require.NoError(t, repo.Create(ctx, &txn))

	dup := txn
	dup.InvoiceNumber = "INV2"
	assert.ErrorIs(t, repo.Create(ctx, &dup), gorm.ErrDuplicatedKey)
}

func TestOrderRepository_MarkCanceled(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	windowStart := time.Now().Add(-15 * time.Minute)

	require.NoError(t, repo.Create(ctx, db, &model.Order{
		OrderNumber: "ORD-1", ReferenceID: "FD-1", UserID: "u1",
		Total: decimal.RequireFromString("12.72"), PointsEarned: 13,
	}))

	_, err := repo.MarkCanceled(ctx, db, "ORD-1", "someone-else", windowStart)
	assert.ErrorIs(t, err, ErrConditionNotMet)

	order, err := repo.MarkCanceled(ctx, db, "ORD-1", "u1", windowStart)
	require.NoError(t, err)
	assert.True(t, order.CancelStatus)
	assert.Equal(t, int64(13), order.PointsEarned)

	_, err = repo.MarkCanceled(ctx, db, "ORD-1", "u1", windowStart)
	assert.ErrorIs(t, err, ErrConditionNotMet, "second cancel is rejected")

	assert.ErrorIs(t, repo.MarkReady(ctx, "ORD-1"), ErrConditionNotMet, "canceled orders never become ready")
}

func TestOrderRepository_ReadyOrdersCannotBeCanceled(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, db, &model.Order{OrderNumber: "ORD-2", ReferenceID: "FD-2", UserID: "u1", Total: decimal.NewFromInt(5)}))
	require.NoError(t, repo.MarkReady(ctx, "ORD-2"))

	_, err := repo.MarkCanceled(ctx, db, "ORD-2", "u1", time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, ErrConditionNotMet)
}

func TestOrderRepository_ItemsAndHistory(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, db, &model.Order{OrderNumber: "ORD-A", ReferenceID: "FD-A", UserID: "u1", Total: decimal.NewFromInt(5), CreatedAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, repo.Create(ctx, db, &model.Order{OrderNumber: "ORD-B", ReferenceID: "FD-B", UserID: "u1", Total: decimal.NewFromInt(7)}))
	require.NoError(t, repo.CreateOrderItems(ctx, db, []*model.OrderItem{
		{OrderNumber: "ORD-B", ProductID: "5", Quantity: 2},
		{OrderNumber: "ORD-B", ProductID: "9", Quantity: 1},
	}))

	orders, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ORD-B", orders[0].OrderNumber)

	items, err := repo.GetOrderItems(ctx, "ORD-B")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	exists, err := repo.Exists(ctx, db, "ORD-A")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCouponRepository_Filters(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCouponRepository(db)
	ctx := context.Background()
	now := time.Now()

	coupons := []*model.Coupon{
		{CouponCode: "RWD-1", UserID: "u1", RewardTitle: "a", PointsUsed: 25, Status: model.CouponStatusActive, ExpirationDate: now.Add(time.Hour)},
		{CouponCode: "RWD-2", UserID: "u1", RewardTitle: "b", PointsUsed: 25, Status: model.CouponStatusActive, ExpirationDate: now.Add(-time.Hour)},
		{CouponCode: "RWD-3", UserID: "u1", RewardTitle: "c", PointsUsed: 25, Status: model.CouponStatusUsed, ExpirationDate: now.Add(time.Hour)},
		{CouponCode: "RWD-4", UserID: "u2", RewardTitle: "d", PointsUsed: 25, Status: model.CouponStatusActive, ExpirationDate: now.Add(time.Hour)},
	}
	for _, c := range coupons {
		require.NoError(t, repo.Create(ctx, db, c))
	}

	codes := func(filter model.CouponFilter) []string {
		list, err := repo.ListByUser(ctx, "u1", filter, now)
		require.NoError(t, err)
		out := make([]string, 0, len(list))
		for _, c := range list {
			out = append(out, c.CouponCode)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"RWD-1", "RWD-2", "RWD-3"}, codes(model.CouponFilterAll))
	assert.ElementsMatch(t, []string{"RWD-1"}, codes(model.CouponFilterActive))
	assert.ElementsMatch(t, []string{"RWD-3"}, codes(model.CouponFilterUsed))
	assert.ElementsMatch(t, []string{"RWD-2"}, codes(model.CouponFilterExpired))
}

func TestCouponRepository_MarkUsed(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCouponRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, db, &model.Coupon{CouponCode: "RWD-1", UserID: "u1", RewardTitle: "a", Status: model.CouponStatusActive, ExpirationDate: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, db, &model.Coupon{CouponCode: "RWD-2", UserID: "u1", RewardTitle: "b", Status: model.CouponStatusActive, ExpirationDate: now.Add(-time.Hour)}))

	require.NoError(t, repo.MarkUsed(ctx, "RWD-1", now))
	assert.ErrorIs(t, repo.MarkUsed(ctx, "RWD-1", now), ErrConditionNotMet)
	assert.ErrorIs(t, repo.MarkUsed(ctx, "RWD-2", now), ErrConditionNotMet)
}

func TestWebhookEventRepository_Dedup(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWebhookEventRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.MarkProcessed(ctx, db, "evt-1", model.EventAuthCaptureCreated))
	assert.ErrorIs(t, repo.MarkProcessed(ctx, db, "evt-1", model.EventAuthCaptureCreated), gorm.ErrDuplicatedKey)

	exists, err := repo.Exists(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, exists)
}
