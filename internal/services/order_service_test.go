package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"muebles/internal/models"
	"muebles/internal/repositories"
	"muebles/internal/services"
)

type orderFixture struct {
	repo     *MockOrderRepository
	drafts   *repositories.MemoryDraftRepository
	notifier *MockNotifier
	svc      *services.OrderService
}

func newOrderFixture(t *testing.T) *orderFixture {
	f := &orderFixture{
		repo:     new(MockOrderRepository),
		drafts:   repositories.NewMemoryDraftRepository(0),
		notifier: new(MockNotifier),
	}
	f.svc = services.NewOrderService(f.repo, f.drafts, f.notifier, zaptest.NewLogger(t))
	return f
}

func intPtr(v int) *int { return &v }

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func oakTable() models.LineInput {
	return models.LineInput{Description: "Solid oak dining table, 180cm", Quantity: intPtr(2)}
}

func TestOrderService_AddDraftLineNumbersSequentially(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		draft, line, err := f.svc.AddDraftLine(ctx, customer, models.LineInput{Description: "Custom walnut shelf unit"})
		require.NoError(t, err)
		assert.Equal(t, int64(i), line.ID)
		assert.Equal(t, 1, line.Quantity)
		assert.Len(t, draft.Lines, i)
		assert.Equal(t, "draft-42", draft.ID)
	}
}

func TestOrderService_AddDraftLineValidates(t *testing.T) {
	f := newOrderFixture(t)

	_, _, err := f.svc.AddDraftLine(context.Background(), customer, models.LineInput{Description: "short"})

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "description")

	_, _, err = f.svc.AddDraftLine(context.Background(), customer, models.LineInput{Description: "Solid oak dining table", Quantity: intPtr(0)})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestOrderService_RequestQuoteMaterializesDraft(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.AddDraftLine(ctx, customer, oakTable())
	require.NoError(t, err)

	persisted := &models.Order{
		ID: 100, OwnerID: 42, Status: models.StatusNew,
		Lines: []models.LineItem{{ID: 501, OrderID: 100, Description: "Solid oak dining table, 180cm", Quantity: 2}},
	}
	quoted := *persisted
	quoted.Status = models.StatusQuoting

	f.repo.On("Create", mock.Anything, "client-token", mock.MatchedBy(func(o *models.Order) bool {
		return o.OwnerID == 42 && o.Status == models.StatusNew && o.ClientNotes == "call first" &&
			len(o.Lines) == 1 && o.Lines[0].ID == 0 && o.Lines[0].Quantity == 2 &&
			o.Lines[0].Description == "Solid oak dining table, 180cm"
	})).Return(persisted, nil).Once()
	f.repo.On("UpdateStatus", mock.Anything, "client-token", int64(100), mock.MatchedBy(func(c models.StatusChange) bool {
		return c.FromStatus == models.StatusNew && c.ToStatus == models.StatusQuoting && c.ChangedBy == nil
	}), "", mock.Anything).Return(&quoted, nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.UserID == 42 && n.Message == "Your order is being quoted by our team." && n.Metadata["previous_status"] == "new"
	})).Return(nil).Once()

	order, err := f.svc.RequestQuote(ctx, customer, "draft-42", models.RequestQuoteInput{ClientNotes: "call first"})

	require.NoError(t, err)
	assert.Equal(t, models.StatusQuoting, order.Status)
	assert.Len(t, order.Lines, 1)
	f.repo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)

	_, err = f.svc.GetDraft(ctx, customer)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = f.svc.GetOrder(ctx, customer, "draft-42")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestOrderService_MaterializeCreatesLinesWhenUpstreamDropsThem(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, _, _ = f.svc.AddDraftLine(ctx, customer, oakTable())
	_, _, _ = f.svc.AddDraftLine(ctx, customer, models.LineInput{Description: "Matching oak bench, 160cm"})

	f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Order{ID: 7, OwnerID: 42, Status: models.StatusNew}, nil).Once()
	f.repo.On("CreateLine", mock.Anything, "client-token", int64(7), mock.AnythingOfType("models.LineItem")).
		Return(&models.LineItem{ID: 1, OrderID: 7}, nil).Twice()
	f.repo.On("UpdateStatus", mock.Anything, mock.Anything, int64(7), mock.Anything, "", mock.Anything).
		Return(&models.Order{ID: 7, OwnerID: 42, Status: models.StatusQuoting}, nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.RequestQuote(ctx, customer, "draft-42", models.RequestQuoteInput{})

	require.NoError(t, err)
	f.repo.AssertNumberOfCalls(t, "CreateLine", 2)
}

func TestOrderService_ConcurrentDraftSubmissionCreatesOneOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, _, _ = f.svc.AddDraftLine(ctx, customer, oakTable())

	release := make(chan struct{})
	persisted := &models.Order{ID: 3, OwnerID: 42, Status: models.StatusNew, Lines: []models.LineItem{{ID: 1}}}
	f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(persisted, nil).Once()
	f.repo.On("UpdateStatus", mock.Anything, mock.Anything, int64(3), mock.Anything, "", mock.Anything).
		Return(&models.Order{ID: 3, OwnerID: 42, Status: models.StatusQuoting}, nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.RequestQuote(ctx, customer, "draft-42", models.RequestQuoteInput{})
		}(i)
	}
	close(release)
	wg.Wait()

	f.repo.AssertNumberOfCalls(t, "Create", 1)
	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.True(t, errors.Is(err, models.ErrNotFound))
		}
	}
	assert.GreaterOrEqual(t, successes, 1)
}

func TestOrderService_LinesAddedDuringSubmissionStartNewDraft(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, _, _ = f.svc.AddDraftLine(ctx, customer, oakTable())

	creating := make(chan struct{})
	release := make(chan struct{})
	f.repo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		return len(o.Lines) == 1 && o.Lines[0].Description == "Solid oak dining table, 180cm"
	})).
		Run(func(mock.Arguments) {
			close(creating)
			<-release
		}).
		Return(&models.Order{ID: 9, OwnerID: 42, Status: models.StatusNew, Lines: []models.LineItem{{ID: 1, OrderID: 9}}}, nil).Once()
	f.repo.On("UpdateStatus", mock.Anything, mock.Anything, int64(9), mock.Anything, "", mock.Anything).
		Return(&models.Order{ID: 9, OwnerID: 42, Status: models.StatusQuoting}, nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.RequestQuote(ctx, customer, "draft-42", models.RequestQuoteInput{})
		done <- err
	}()
	<-creating

	draft, line, err := f.svc.AddDraftLine(ctx, customer, models.LineInput{Description: "Matching oak bench, 160cm"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), line.ID)
	assert.Len(t, draft.Lines, 1)

	close(release)
	require.NoError(t, <-done)

	kept, err := f.svc.GetDraft(ctx, customer)
	require.NoError(t, err)
	require.Len(t, kept.Lines, 1)
	assert.Equal(t, "Matching oak bench, 160cm", kept.Lines[0].Description)
	f.repo.AssertExpectations(t)
}

func TestOrderService_FailedSubmissionRestoresDraft(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, _, _ = f.svc.AddDraftLine(ctx, customer, oakTable())
	_, _, _ = f.svc.AddDraftLine(ctx, customer, models.LineInput{Description: "Matching oak bench, 160cm"})

	f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, models.ErrUpstreamUnavailable).Once()

	_, err := f.svc.RequestQuote(ctx, customer, "draft-42", models.RequestQuoteInput{})
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))

	draft, err := f.svc.GetDraft(ctx, customer)
	require.NoError(t, err)
	require.Len(t, draft.Lines, 2)
	assert.Equal(t, "Solid oak dining table, 180cm", draft.Lines[0].Description)
	f.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_EmptyDraftIsKeptOnSubmission(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, err := f.drafts.Ensure(ctx, 42)
	require.NoError(t, err)

	_, err = f.svc.RequestQuote(ctx, customer, "draft-42", models.RequestQuoteInput{})
	assert.True(t, errors.Is(err, models.ErrValidation))

	draft, err := f.svc.GetDraft(ctx, customer)
	require.NoError(t, err)
	assert.Empty(t, draft.Lines)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_DiscardDraft(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, _, _ = f.svc.AddDraftLine(ctx, customer, oakTable())

	require.NoError(t, f.svc.DiscardDraft(ctx, customer))
	require.NoError(t, f.svc.DiscardDraft(ctx, customer))

	_, err := f.svc.GetDraft(ctx, customer)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.True(t, errors.Is(f.svc.DiscardDraft(ctx, models.Actor{}), models.ErrUnauthenticated))
}

func TestOrderService_RequestQuoteOnOthersDraftIsForbidden(t *testing.T) {
	f := newOrderFixture(t)
	_, _, _ = f.svc.AddDraftLine(context.Background(), customer, oakTable())

	_, err := f.svc.RequestQuote(context.Background(), stranger, "draft-42", models.RequestQuoteInput{})

	assert.True(t, errors.Is(err, models.ErrForbidden))
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_RequestQuotePersistedOrder(t *testing.T) {
	f := newOrderFixture(t)
	order := &models.Order{ID: 8, OwnerID: 42, Status: models.StatusQuoting}
	f.repo.On("GetByID", mock.Anything, "client-token", int64(8)).Return(order, nil)

	_, err := f.svc.RequestQuote(context.Background(), customer, "8", models.RequestQuoteInput{})

	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	f.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	_, err = f.svc.RequestQuote(context.Background(), customer, "not-a-number", models.RequestQuoteInput{})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestOrderService_GetOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, _, _ = f.svc.AddDraftLine(ctx, customer, oakTable())
	f.repo.On("GetByID", mock.Anything, mock.Anything, int64(12)).Return(&models.Order{ID: 12, OwnerID: 42, Status: models.StatusNew}, nil)

	view, err := f.svc.GetOrder(ctx, customer, "draft-42")
	require.NoError(t, err)
	require.NotNil(t, view.Draft)
	assert.Nil(t, view.Order)
	assert.Len(t, view.Draft.Lines, 1)

	_, err = f.svc.GetOrder(ctx, admin, "draft-42")
	assert.True(t, errors.Is(err, models.ErrForbidden))

	view, err = f.svc.GetOrder(ctx, admin, "12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), view.Order.ID)

	_, err = f.svc.GetOrder(ctx, stranger, "12")
	assert.True(t, errors.Is(err, models.ErrForbidden))
}

func TestOrderService_ListUserOrdersPutsDraftFirst(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, _, _ = f.svc.AddDraftLine(ctx, customer, models.LineInput{Description: "Oak coffee table 90cm", UnitPrice: func() *decimal.Decimal { d := decimal.NewFromInt(80); return &d }()})

	page := &models.OrderPage{
		Orders:     []models.Order{{ID: 4, OwnerID: 42, Status: models.StatusApproved, EstimatedTotal: decimal.NewFromInt(900)}},
		Pagination: models.NewPagination(1, 10, 1),
	}
	f.repo.On("List", mock.Anything, mock.Anything, mock.MatchedBy(func(fl models.OrderFilter) bool {
		return fl.OwnerID != nil && *fl.OwnerID == 42 && fl.Page == 1 && fl.Limit == 10
	})).Return(page, nil)

	out, err := f.svc.ListUserOrders(ctx, customer, 42, 0, 0)
	require.NoError(t, err)
	require.Len(t, out.Orders, 2)
	assert.Equal(t, "draft-42", out.Orders[0].ID)
	assert.Equal(t, models.StatusDraft, out.Orders[0].Status)
	assert.True(t, decimal.NewFromInt(80).Equal(out.Orders[0].Total))
	assert.Equal(t, "4", out.Orders[1].ID)
	assert.Equal(t, 2, out.Pagination.Total)

	out, err = f.svc.ListUserOrders(ctx, admin, 42, 1, 10)
	require.NoError(t, err)
	assert.Len(t, out.Orders, 1)

	_, err = f.svc.ListUserOrders(ctx, stranger, 42, 1, 10)
	assert.True(t, errors.Is(err, models.ErrForbidden))
}

func TestOrderService_ListOrdersAdminOnly(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.ListOrders(context.Background(), customer, models.OrderFilter{})
	assert.True(t, errors.Is(err, models.ErrForbidden))

	_, err = f.svc.ListOrders(context.Background(), admin, models.OrderFilter{Status: "shipped"})
	assert.True(t, errors.Is(err, models.ErrValidation))

	f.repo.On("List", mock.Anything, "admin-token", mock.MatchedBy(func(fl models.OrderFilter) bool {
		return fl.Status == models.StatusQuoting && fl.OwnerID == nil
	})).Return(models.EmptyOrderPage(1, 10), nil)
	out, err := f.svc.ListOrders(context.Background(), admin, models.OrderFilter{Status: models.StatusQuoting})
	require.NoError(t, err)
	assert.Empty(t, out.Orders)
	assert.Equal(t, 0, out.Pagination.Total)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, customer, 5, models.StatusUpdateInput{Status: models.StatusApproved})
	assert.True(t, errors.Is(err, models.ErrForbidden))
	f.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)

	f.repo.On("GetByID", mock.Anything, "admin-token", int64(5)).Return(&models.Order{ID: 5, OwnerID: 42, Status: models.StatusApproved}, nil)
	_, err = f.svc.UpdateStatus(ctx, admin, 5, models.StatusUpdateInput{Status: models.StatusDelivered})
	var terr *models.TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, []models.Status{models.StatusInProduction, models.StatusCancelled}, terr.Allowed)

	f.repo.On("UpdateStatus", mock.Anything, "admin-token", int64(5), mock.MatchedBy(func(c models.StatusChange) bool {
		return c.ToStatus == models.StatusInProduction && c.ChangedBy != nil && *c.ChangedBy == admin.ID
	}), "cutting wood", mock.Anything).Return(&models.Order{ID: 5, OwnerID: 42, Status: models.StatusInProduction}, nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	order, err := f.svc.UpdateStatus(ctx, admin, 5, models.StatusUpdateInput{Status: models.StatusInProduction, AdminNotes: "cutting wood"})

	require.NoError(t, err)
	assert.Equal(t, models.StatusInProduction, order.Status)
	f.notifier.AssertExpectations(t)
}

func TestOrderService_StaleStatusWriteIsRejected(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	stale := &models.TransitionError{From: models.StatusCancelled, To: models.StatusApproved}

	f.repo.On("GetByID", mock.Anything, "admin-token", int64(5)).Return(&models.Order{ID: 5, OwnerID: 42, Status: models.StatusQuoting}, nil)
	f.repo.On("UpdateStatus", mock.Anything, "admin-token", int64(5), mock.MatchedBy(func(c models.StatusChange) bool {
		return c.FromStatus == models.StatusQuoting && c.ToStatus == models.StatusApproved
	}), "", mock.Anything).Return(nil, stale).Once()

	_, err := f.svc.UpdateStatus(ctx, admin, 5, models.StatusUpdateInput{Status: models.StatusApproved})

	var terr *models.TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, models.StatusCancelled, terr.From)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestOrderService_ConcurrentStatusChangesAreSerialized(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	current := models.StatusQuoting
	f.repo.On("GetByID", mock.Anything, mock.Anything, int64(5)).Return(func(context.Context, string, int64) *models.Order {
		mu.Lock()
		defer mu.Unlock()
		return &models.Order{ID: 5, OwnerID: 42, Status: current}
	}, nil)
	f.repo.On("UpdateStatus", mock.Anything, mock.Anything, int64(5), mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			change := args.Get(3).(models.StatusChange)
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, current, change.FromStatus)
			current = change.ToStatus
		}).
		Return(&models.Order{ID: 5, OwnerID: 42}, nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	targets := []models.Status{models.StatusApproved, models.StatusCancelled}
	results := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to models.Status) {
			defer wg.Done()
			_, results[i] = f.svc.UpdateStatus(ctx, admin, 5, models.StatusUpdateInput{Status: to})
		}(i, to)
	}
	wg.Wait()

	assert.NoError(t, results[1])
	if results[0] != nil {
		// cancelled first, approval is then refused
		assert.True(t, errors.Is(results[0], models.ErrInvalidTransition))
		f.repo.AssertNumberOfCalls(t, "UpdateStatus", 1)
	} else {
		f.repo.AssertNumberOfCalls(t, "UpdateStatus", 2)
	}
	assert.Equal(t, models.StatusCancelled, current)
}

func TestOrderService_RecordQuoteTrustsSuppliedTotal(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := &models.Order{ID: 100, OwnerID: 42, Status: models.StatusQuoting, Lines: []models.LineItem{{ID: 1, OrderID: 100, Quantity: 2}}}
	priced := &models.Order{ID: 100, OwnerID: 42, Status: models.StatusQuoting, EstimatedTotal: decimal.NewFromInt(250),
		Lines: []models.LineItem{{ID: 1, OrderID: 100, Quantity: 2, UnitPrice: decimal.NewNullDecimal(decimal.NewFromInt(150))}}}

	f.repo.On("GetByID", mock.Anything, "admin-token", int64(100)).Return(order, nil)
	f.repo.On("UpdateQuote", mock.Anything, "admin-token", int64(100), mock.MatchedBy(func(q models.Quote) bool {
		return len(q.Lines) == 1 && q.EstimatedTotal.Equal(decimal.NewFromInt(250))
	})).Return(priced, nil)

	total := decimal.NewFromInt(250)
	result, err := f.svc.RecordQuote(ctx, admin, 100, models.QuoteInput{
		Lines:          []models.LineQuoteInput{{LineID: 1, UnitPrice: decimalPtr(150)}, {LineID: 99, UnitPrice: decimalPtr(1)}},
		EstimatedTotal: &total,
	})

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(250).Equal(result.Order.EstimatedTotal))
	assert.True(t, decimal.NewFromInt(300).Equal(result.ComputedTotal))
	assert.True(t, result.TotalMismatch)
	assert.Equal(t, []int64{99}, result.UnmatchedLines)
}

func TestOrderService_RecordQuoteErrors(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	total := decimal.NewFromInt(10)
	in := models.QuoteInput{Lines: []models.LineQuoteInput{{LineID: 1, UnitPrice: decimalPtr(10)}}, EstimatedTotal: &total}

	_, err := f.svc.RecordQuote(ctx, customer, 1, in)
	assert.True(t, errors.Is(err, models.ErrForbidden))

	f.repo.On("GetByID", mock.Anything, mock.Anything, int64(404)).Return(nil, models.ErrNotFound)
	_, err = f.svc.RecordQuote(ctx, admin, 404, in)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	negative := decimal.NewFromInt(-1)
	_, err = f.svc.RecordQuote(ctx, admin, 1, models.QuoteInput{Lines: in.Lines, EstimatedTotal: &negative})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "estimatedTotal")

	// an unpriced line is refused before anything is written
	_, err = f.svc.RecordQuote(ctx, admin, 1, models.QuoteInput{Lines: []models.LineQuoteInput{{LineID: 1}}, EstimatedTotal: &total})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "lines[0].price")
	f.repo.AssertNotCalled(t, "UpdateQuote", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_CreateOrderNotifiesOwner(t *testing.T) {
	f := newOrderFixture(t)
	f.repo.On("Create", mock.Anything, "client-token", mock.Anything).
		Return(&models.Order{ID: 21, OwnerID: 42, Status: models.StatusNew, Lines: []models.LineItem{{ID: 1}}}, nil)
	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.Kind == services.KindOrderCreated && strings.Contains(n.Message, "created successfully")
	})).Return(nil).Once()

	order, err := f.svc.CreateOrder(context.Background(), customer, models.CreateOrderInput{Lines: []models.LineInput{oakTable()}})

	require.NoError(t, err)
	assert.Equal(t, int64(21), order.ID)
	f.notifier.AssertExpectations(t)

	_, err = f.svc.CreateOrder(context.Background(), customer, models.CreateOrderInput{})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestOrderService_Stats(t *testing.T) {
	f := newOrderFixture(t)
	f.repo.On("List", mock.Anything, mock.Anything, mock.MatchedBy(func(fl models.OrderFilter) bool { return fl.Page == 1 })).
		Return(&models.OrderPage{
			Orders: []models.Order{
				{ID: 1, Status: models.StatusNew, EstimatedTotal: decimal.NewFromInt(100)},
				{ID: 2, Status: models.StatusNew, EstimatedTotal: decimal.NewFromInt(50)},
			},
			Pagination: models.Pagination{Page: 1, Limit: 100, Total: 3, Pages: 2},
		}, nil).Once()
	f.repo.On("List", mock.Anything, mock.Anything, mock.MatchedBy(func(fl models.OrderFilter) bool { return fl.Page == 2 })).
		Return(&models.OrderPage{
			Orders:     []models.Order{{ID: 3, Status: models.StatusDelivered, EstimatedTotal: decimal.NewFromInt(700)}},
			Pagination: models.Pagination{Page: 2, Limit: 100, Total: 3, Pages: 2},
		}, nil).Once()

	stats, err := f.svc.Stats(context.Background(), admin)

	require.NoError(t, err)
	require.Len(t, stats, len(models.OrderStatuses))
	assert.Equal(t, models.StatusNew, stats[0].Status)
	assert.Equal(t, 2, stats[0].Count)
	assert.True(t, decimal.NewFromInt(150).Equal(stats[0].TotalValue))
	assert.Equal(t, 1, stats[4].Count)
	f.repo.AssertExpectations(t)

	_, err = f.svc.Stats(context.Background(), customer)
	assert.True(t, errors.Is(err, models.ErrForbidden))
}
