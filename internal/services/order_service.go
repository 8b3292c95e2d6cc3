package services

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"muebles/internal/models"
	"muebles/internal/repositories"
)

// statsPageLimit bounds how many pages Stats walks through.
const statsPageLimit = 200

// OrderService handles the draft, quoting and lifecycle flow of orders.
type OrderService struct {
	orders   repositories.OrderRepository
	drafts   repositories.DraftRepository
	notifier Notifier
	machine  *StateMachine
	logger   *zap.Logger

	materialize singleflight.Group
	statusLocks *orderLocks
}

// NewOrderService creates a new OrderService. notifier may be nil.
func NewOrderService(orders repositories.OrderRepository, drafts repositories.DraftRepository, notifier Notifier, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:   orders,
		drafts:   drafts,
		notifier: notifier,
		machine:  NewStateMachine(),
		logger:   logger.Named("orders"),

		statusLocks: newOrderLocks(),
	}
}

// OrderView is what GetOrder resolves an id to: a persisted order, or the
// caller's draft when the id is a draft key.
type OrderView struct {
	Order *models.Order
	Draft *models.Draft
}

func (s *OrderService) notify(ctx context.Context, n *models.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notification not delivered",
			zap.String("kind", n.Kind),
			zap.Int64("user_id", n.UserID),
			zap.Error(err))
	}
}

// AddDraftLine appends a line to the caller's draft.
func (s *OrderService) AddDraftLine(ctx context.Context, actor models.Actor, in models.LineInput) (*models.Draft, *models.LineItem, error) {
	if actor.ID == 0 {
		return nil, nil, models.ErrUnauthenticated
	}
	if err := models.Validate(in); err != nil {
		return nil, nil, err
	}
	return s.drafts.AddLine(ctx, actor.ID, in.ToLine())
}

// GetDraft returns the caller's draft.
func (s *OrderService) GetDraft(ctx context.Context, actor models.Actor) (*models.Draft, error) {
	draft, err := s.drafts.Get(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, errors.Wrapf(models.ErrNotFound, "draft for user %d", actor.ID)
	}
	return draft, nil
}

// DiscardDraft drops the caller's draft. Discarding a missing draft is a no-op.
func (s *OrderService) DiscardDraft(ctx context.Context, actor models.Actor) error {
	if actor.ID == 0 {
		return models.ErrUnauthenticated
	}
	return s.drafts.Clear(ctx, actor.ID)
}

// CreateOrder persists an order from explicit lines, bypassing the draft.
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Actor, in models.CreateOrderInput) (*models.Order, error) {
	if actor.ID == 0 {
		return nil, models.ErrUnauthenticated
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	lines := make([]models.LineItem, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, l.ToLine())
	}
	order, err := s.persist(ctx, actor.Token, &models.Order{
		OwnerID:         actor.ID,
		Status:          models.StatusNew,
		ClientNotes:     in.ClientNotes,
		DeliveryAddress: in.DeliveryAddress,
		Lines:           lines,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order created", zap.Int64("order_id", order.ID), zap.Int64("owner_id", order.OwnerID), zap.Int("lines", len(order.Lines)))
	s.notify(ctx, createdNotification(order))
	return order, nil
}

// persist creates order and, when the store did not keep the nested lines,
// creates them one by one.
func (s *OrderService) persist(ctx context.Context, token string, order *models.Order) (*models.Order, error) {
	lines := order.Lines
	order.Lines = make([]models.LineItem, len(lines))
	for i, l := range lines {
		l.ID = 0
		l.OrderID = 0
		order.Lines[i] = l
	}
	created, err := s.orders.Create(ctx, token, order)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	if len(created.Lines) > 0 || len(lines) == 0 {
		return created, nil
	}
	for _, l := range order.Lines {
		line, err := s.orders.CreateLine(ctx, token, created.ID, l)
		if err != nil {
			return nil, errors.Wrapf(err, "create line of order %d", created.ID)
		}
		created.Lines = append(created.Lines, *line)
	}
	return created, nil
}

// RequestQuote moves a new order to quoting on behalf of its owner. A draft
// key is first materialized into a persisted order; concurrent requests for
// the same draft share one materialization.
func (s *OrderService) RequestQuote(ctx context.Context, actor models.Actor, id string, in models.RequestQuoteInput) (*models.Order, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	if owner, ok := models.ParseDraftID(id); ok {
		if !actor.CanAccess(owner) {
			return nil, models.ErrForbidden
		}
		v, err, _ := s.materialize.Do(id, func() (interface{}, error) {
			return s.submitDraft(ctx, actor, owner, in)
		})
		if err != nil {
			return nil, err
		}
		return v.(*models.Order), nil
	}

	orderID, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}
	unlock := s.statusLocks.lock(orderID)
	defer unlock()
	order, err := s.orders.GetByID(ctx, actor.Token, orderID)
	if err != nil {
		return nil, err
	}
	return s.requestQuote(ctx, actor, order)
}

// submitDraft detaches the owner's draft before persisting it, so lines
// added while the order is being created land in a new draft. The detached
// draft is put back when persisting it fails.
func (s *OrderService) submitDraft(ctx context.Context, actor models.Actor, owner int64, in models.RequestQuoteInput) (*models.Order, error) {
	draft, err := s.drafts.Take(ctx, owner)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, errors.Wrapf(models.ErrNotFound, "draft for user %d", owner)
	}
	if len(draft.Lines) == 0 {
		s.restoreDraft(ctx, draft)
		return nil, models.NewValidationError("lines", "draft has no lines")
	}

	order, err := s.persist(ctx, actor.Token, &models.Order{
		OwnerID:         owner,
		Status:          models.StatusNew,
		ClientNotes:     in.ClientNotes,
		DeliveryAddress: in.DeliveryAddress,
		Lines:           draft.Lines,
	})
	if err != nil {
		s.restoreDraft(ctx, draft)
		return nil, err
	}
	s.logger.Info("draft materialized", zap.Int64("owner_id", owner), zap.Int64("order_id", order.ID), zap.Int("lines", len(order.Lines)))

	unlock := s.statusLocks.lock(order.ID)
	defer unlock()
	quoted, err := s.requestQuote(ctx, actor, order)
	if err != nil {
		s.logger.Error("materialized order left in new status", zap.Int64("order_id", order.ID), zap.Error(err))
		return nil, err
	}
	return quoted, nil
}

func (s *OrderService) restoreDraft(ctx context.Context, draft *models.Draft) {
	if err := s.drafts.Restore(ctx, draft); err != nil {
		s.logger.Error("draft not restored after failed submission", zap.Int64("owner_id", draft.OwnerID), zap.Int("lines", len(draft.Lines)), zap.Error(err))
	}
}

// requestQuote must run under the order's status lock.
func (s *OrderService) requestQuote(ctx context.Context, actor models.Actor, order *models.Order) (*models.Order, error) {
	change, err := s.machine.RequestQuote(order, actor)
	if err != nil {
		return nil, err
	}
	updated, err := s.orders.UpdateStatus(ctx, actor.Token, order.ID, change, "", nil)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "request quote for order %d", order.ID)
	}
	s.notify(ctx, statusNotification(updated, change))
	return updated, nil
}

// GetOrder resolves id to the caller's draft or to a persisted order the
// caller may see. Drafts are visible to their owner only.
func (s *OrderService) GetOrder(ctx context.Context, actor models.Actor, id string) (*OrderView, error) {
	if owner, ok := models.ParseDraftID(id); ok {
		if !actor.Owns(owner) {
			return nil, models.ErrForbidden
		}
		draft, err := s.GetDraft(ctx, actor)
		if err != nil {
			return nil, err
		}
		return &OrderView{Draft: draft}, nil
	}

	orderID, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, actor.Token, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.OwnerID) {
		return nil, models.ErrForbidden
	}
	return &OrderView{Order: order}, nil
}

// ListUserOrders lists userID's orders. The first page starts with the
// owner's draft when the caller is that owner and has one.
func (s *OrderService) ListUserOrders(ctx context.Context, actor models.Actor, userID int64, page, limit int) (*models.SummaryPage, error) {
	if !actor.CanAccess(userID) {
		return nil, models.ErrForbidden
	}
	filter := models.OrderFilter{OwnerID: &userID, Page: page, Limit: limit}.Normalize()
	result, err := s.orders.List(ctx, actor.Token, filter)
	if err != nil {
		return nil, err
	}
	out := summarize(result)

	if filter.Page == 1 && actor.Owns(userID) {
		draft, err := s.drafts.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if draft != nil && len(draft.Lines) > 0 {
			out.Orders = append([]models.OrderSummary{draft.Summarize()}, out.Orders...)
			out.Pagination = models.NewPagination(filter.Page, filter.Limit, out.Pagination.Total+1)
		}
	}
	return out, nil
}

// ListOrders lists every order for an administrator.
func (s *OrderService) ListOrders(ctx context.Context, actor models.Actor, filter models.OrderFilter) (*models.SummaryPage, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.NewValidationError("status", "unknown status '"+string(filter.Status)+"'")
	}
	result, err := s.orders.List(ctx, actor.Token, filter.Normalize())
	if err != nil {
		return nil, err
	}
	return summarize(result), nil
}

func summarize(page *models.OrderPage) *models.SummaryPage {
	out := &models.SummaryPage{Orders: make([]models.OrderSummary, 0, len(page.Orders)), Pagination: page.Pagination}
	for i := range page.Orders {
		out.Orders = append(out.Orders, page.Orders[i].Summary())
	}
	return out
}

// UpdateStatus moves an order along the transition table.
func (s *OrderService) UpdateStatus(ctx context.Context, actor models.Actor, id int64, in models.StatusUpdateInput) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	unlock := s.statusLocks.lock(id)
	defer unlock()
	order, err := s.orders.GetByID(ctx, actor.Token, id)
	if err != nil {
		return nil, err
	}
	change, err := s.machine.Transition(order, in.Status, actor, in.AdminNotes)
	if err != nil {
		return nil, err
	}
	updated, err := s.orders.UpdateStatus(ctx, actor.Token, id, change, in.AdminNotes, in.DeliveryDate)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "update status of order %d", id)
	}
	s.logger.Info("order status changed",
		zap.Int64("order_id", id),
		zap.String("from", string(change.FromStatus)),
		zap.String("to", string(change.ToStatus)),
		zap.Int64("admin_id", actor.ID))
	s.notify(ctx, statusNotification(updated, change))
	return updated, nil
}

// RecordQuote prices the lines of an order and stores the supplied total.
// The total is not recomputed; the result shows both for auditing.
func (s *OrderService) RecordQuote(ctx context.Context, actor models.Actor, id int64, in models.QuoteInput) (*models.QuoteResult, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, actor.Token, id)
	if err != nil {
		return nil, err
	}
	quote, unmatched, err := s.machine.RecordQuote(order, in.ToQuote(), actor)
	if err != nil {
		return nil, err
	}
	if len(unmatched) > 0 {
		s.logger.Warn("quote references lines outside the order", zap.Int64("order_id", id), zap.Int64s("line_ids", unmatched))
	}
	updated, err := s.orders.UpdateQuote(ctx, actor.Token, id, quote)
	if err != nil {
		return nil, errors.Wrapf(err, "record quote for order %d", id)
	}

	computed := updated.ComputedTotal()
	result := &models.QuoteResult{
		Order:          updated,
		SuppliedTotal:  quote.EstimatedTotal,
		ComputedTotal:  computed,
		TotalMismatch:  !computed.Equal(quote.EstimatedTotal),
		UnmatchedLines: unmatched,
	}
	if result.TotalMismatch {
		s.logger.Warn("quoted total differs from line prices",
			zap.Int64("order_id", id),
			zap.String("supplied", quote.EstimatedTotal.String()),
			zap.String("computed", computed.String()))
	}
	return result, nil
}

// Stats counts orders and sums their totals per status, in lifecycle order.
func (s *OrderService) Stats(ctx context.Context, actor models.Actor) ([]models.StatusStat, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	byStatus := make(map[models.Status]*models.StatusStat, len(models.OrderStatuses))
	for _, st := range models.OrderStatuses {
		byStatus[st] = &models.StatusStat{Status: st}
	}

	filter := models.OrderFilter{Page: 1, Limit: 100}
	for filter.Page <= statsPageLimit {
		page, err := s.orders.List(ctx, actor.Token, filter)
		if err != nil {
			return nil, err
		}
		for i := range page.Orders {
			o := &page.Orders[i]
			stat, ok := byStatus[o.Status]
			if !ok {
				continue
			}
			stat.Count++
			stat.TotalValue = stat.TotalValue.Add(o.Summary().Total)
		}
		if len(page.Orders) == 0 || filter.Page >= page.Pagination.Pages {
			break
		}
		filter.Page++
	}

	out := make([]models.StatusStat, 0, len(models.OrderStatuses))
	for _, st := range models.OrderStatuses {
		out = append(out, *byStatus[st])
	}
	return out, nil
}

func parseOrderID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, models.NewValidationError("id", "order id must be a positive integer or a draft key")
	}
	return n, nil
}
