package xano

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"muebles/internal/models"
)

// OrderGateway stores orders in the upstream API. It satisfies
// repositories.OrderRepository.
type OrderGateway struct {
	client   *Client
	orderRes []string
	lineRes  []string
	groups   []Group
}

// NewOrderGateway builds the gateway from the resource names in cfg.
func NewOrderGateway(client *Client, cfg Config) *OrderGateway {
	orderRes := cfg.OrderResources
	if len(orderRes) == 0 {
		orderRes = DefaultOrderResources
	}
	lineRes := cfg.LineResources
	if len(lineRes) == 0 {
		lineRes = DefaultLineResources
	}
	return &OrderGateway{
		client:   client,
		orderRes: orderRes,
		lineRes:  lineRes,
		groups:   []Group{GroupAuth, GroupGeneral},
	}
}

type linePayload struct {
	ID          int64            `json:"id,omitempty"`
	OrderID     int64            `json:"pedido_id,omitempty"`
	Description string           `json:"descripcion"`
	Dimensions  string           `json:"medidas,omitempty"`
	Material    string           `json:"material,omitempty"`
	Color       string           `json:"color,omitempty"`
	Style       string           `json:"estilo,omitempty"`
	Quantity    int              `json:"cantidad"`
	UnitPrice   *decimal.Decimal `json:"precio_unitario,omitempty"`
	Notes       string           `json:"observaciones,omitempty"`
	ImageURL    string           `json:"imagen_url,omitempty"`
}

func toLinePayload(orderID int64, l models.LineItem) linePayload {
	p := linePayload{
		OrderID:     orderID,
		Description: l.Description,
		Dimensions:  l.Dimensions,
		Material:    l.Material,
		Color:       l.Color,
		Style:       l.Style,
		Quantity:    l.Quantity,
		Notes:       l.Notes,
		ImageURL:    l.ReferenceImageURL,
	}
	if p.Quantity < 1 {
		p.Quantity = 1
	}
	if l.UnitPrice.Valid {
		price := l.UnitPrice.Decimal
		p.UnitPrice = &price
	}
	return p
}

type orderPayload struct {
	OwnerID         int64         `json:"usuario_id"`
	Status          string        `json:"estado"`
	ClientNotes     string        `json:"notas_cliente,omitempty"`
	DeliveryAddress string        `json:"direccion_entrega,omitempty"`
	Lines           []linePayload `json:"detalles"`
}

type statusPayload struct {
	Status         string     `json:"estado"`
	PreviousStatus string     `json:"estado_anterior"`
	AdminNotes     string     `json:"notas_admin,omitempty"`
	DeliveryDate   *time.Time `json:"fecha_entrega,omitempty"`
	ChangedBy      *int64     `json:"usuario_cambio_id"`
	Comment        string     `json:"comentario,omitempty"`
}

type lineQuotePayload struct {
	ID    int64           `json:"id"`
	Price decimal.Decimal `json:"cotizacion"`
}

type quotePayload struct {
	Lines          []lineQuotePayload `json:"detalles"`
	EstimatedTotal decimal.Decimal    `json:"total_estimado"`
}

func (g *OrderGateway) orderCandidates(shape func(res string) []Candidate) []Candidate {
	return expand(g.groups, g.orderRes, shape)
}

// Create posts a new order with its lines.
func (g *OrderGateway) Create(ctx context.Context, token string, order *models.Order) (*models.Order, error) {
	status := order.Status
	if status == "" {
		status = models.StatusNew
	}
	payload := orderPayload{
		OwnerID:         order.OwnerID,
		Status:          UpstreamStatus(status),
		ClientNotes:     order.ClientNotes,
		DeliveryAddress: order.DeliveryAddress,
		Lines:           make([]linePayload, 0, len(order.Lines)),
	}
	for _, l := range order.Lines {
		payload.Lines = append(payload.Lines, toLinePayload(0, l))
	}

	cands := g.orderCandidates(func(res string) []Candidate {
		return []Candidate{{Method: http.MethodPost, Path: "/" + res}}
	})
	res := g.client.probe(ctx, "create order", cands, token, payload, nil)
	switch res.Outcome {
	case OutcomeFatal:
		return nil, res.Err
	case OutcomeShapeFailure:
		return nil, res.exhausted("create order")
	}

	created, err := g.decodeOrder(res.Data)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	if created.ID == 0 {
		return nil, errors.Wrap(models.ErrUpstreamUnavailable, "create order: response carries no id")
	}
	if created.OwnerID == 0 {
		created.OwnerID = order.OwnerID
	}
	if created.Status == "" {
		created.Status = status
	}
	return created, nil
}

// GetByID reads one order. Exhausting every candidate means not found.
func (g *OrderGateway) GetByID(ctx context.Context, token string, id int64) (*models.Order, error) {
	sid := strconv.FormatInt(id, 10)
	cands := g.orderCandidates(func(res string) []Candidate {
		return []Candidate{{Method: http.MethodGet, Path: "/" + res + "/" + sid}}
	})
	res := g.client.probe(ctx, "get order", cands, token, nil, nil)
	switch res.Outcome {
	case OutcomeFatal:
		return nil, res.Err
	case OutcomeShapeFailure:
		return nil, errors.Wrapf(models.ErrNotFound, "order %d", id)
	}

	order, err := g.decodeOrder(res.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	if order.ID == 0 {
		order.ID = id
	}
	return order, nil
}

// List reads a page of orders. Owner and status filters are applied again
// locally because not every upstream shape honours them.
func (g *OrderGateway) List(ctx context.Context, token string, filter models.OrderFilter) (*models.OrderPage, error) {
	filter = filter.Normalize()
	page, limit := strconv.Itoa(filter.Page), strconv.Itoa(filter.Limit)
	status := ""
	if filter.Status != "" {
		status = UpstreamStatus(filter.Status)
	}

	var cands []Candidate
	if filter.OwnerID != nil {
		uid := strconv.FormatInt(*filter.OwnerID, 10)
		cands = g.orderCandidates(func(res string) []Candidate {
			return []Candidate{
				{Method: http.MethodGet, Path: "/" + res + "/user/" + uid, Query: queryOf("page", page, "per_page", limit, "estado", status)},
				{Method: http.MethodGet, Path: "/" + res, Query: queryOf("usuario_id", uid, "page", page, "per_page", limit, "estado", status)},
			}
		})
	} else {
		cands = g.orderCandidates(func(res string) []Candidate {
			return []Candidate{{Method: http.MethodGet, Path: "/" + res, Query: queryOf("page", page, "per_page", limit, "estado", status)}}
		})
	}

	res := g.client.probe(ctx, "list orders", cands, token, nil, nil)
	switch res.Outcome {
	case OutcomeFatal:
		return nil, res.Err
	case OutcomeShapeFailure:
		return models.EmptyOrderPage(filter.Page, filter.Limit), nil
	}

	v, err := decode(res.Data)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	upstream := normalizeOrderPage(v, filter.Page, filter.Limit)
	return refilter(upstream, filter), nil
}

// refilter drops records outside the filter and pages unpaged answers.
func refilter(upstream *models.OrderPage, filter models.OrderFilter) *models.OrderPage {
	kept := make([]models.Order, 0, len(upstream.Orders))
	for _, o := range upstream.Orders {
		if filter.OwnerID != nil && o.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		kept = append(kept, o)
	}
	if len(kept) == len(upstream.Orders) && len(kept) <= filter.Limit {
		return upstream
	}
	if len(upstream.Orders) <= filter.Limit {
		// already a single upstream page; totals beyond it are unknown
		return &models.OrderPage{Orders: kept, Pagination: models.NewPagination(filter.Page, filter.Limit, len(kept))}
	}

	total := len(kept)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return &models.OrderPage{Orders: kept[start:end], Pagination: models.NewPagination(filter.Page, filter.Limit, total)}
}

// UpdateStatus writes the new status together with its history entry. The
// upstream has no conditional update, so the stored status is re-read first
// and a write whose change.FromStatus is stale is refused.
func (g *OrderGateway) UpdateStatus(ctx context.Context, token string, id int64, change models.StatusChange, adminNotes string, deliveryDate *time.Time) (*models.Order, error) {
	current, err := g.GetByID(ctx, token, id)
	if err != nil {
		return nil, err
	}
	if current.Status != change.FromStatus {
		return nil, &models.TransitionError{From: current.Status, To: change.ToStatus, Allowed: current.Status.AllowedTransitions()}
	}

	sid := strconv.FormatInt(id, 10)
	payload := statusPayload{
		Status:         UpstreamStatus(change.ToStatus),
		PreviousStatus: UpstreamStatus(change.FromStatus),
		AdminNotes:     adminNotes,
		DeliveryDate:   deliveryDate,
		ChangedBy:      change.ChangedBy,
		Comment:        change.Comment,
	}
	cands := g.orderCandidates(func(res string) []Candidate {
		base := "/" + res + "/" + sid
		return []Candidate{
			{Method: http.MethodPatch, Path: base + "/status"},
			{Method: http.MethodPatch, Path: base + "/estado"},
			{Method: http.MethodPatch, Path: base},
		}
	})
	res := g.client.probe(ctx, "update order status", cands, token, payload, nil)
	switch res.Outcome {
	case OutcomeFatal:
		return nil, res.Err
	case OutcomeShapeFailure:
		return nil, res.exhausted("update order status")
	}
	return g.afterWrite(ctx, token, id, res.Data)
}

// UpdateQuote writes line prices and the supplied total.
func (g *OrderGateway) UpdateQuote(ctx context.Context, token string, id int64, quote models.Quote) (*models.Order, error) {
	sid := strconv.FormatInt(id, 10)
	payload := quotePayload{
		Lines:          make([]lineQuotePayload, 0, len(quote.Lines)),
		EstimatedTotal: quote.EstimatedTotal,
	}
	for _, lq := range quote.Lines {
		payload.Lines = append(payload.Lines, lineQuotePayload{ID: lq.LineID, Price: lq.UnitPrice})
	}
	cands := g.orderCandidates(func(res string) []Candidate {
		base := "/" + res + "/" + sid
		return []Candidate{
			{Method: http.MethodPatch, Path: base + "/quote"},
			{Method: http.MethodPut, Path: base + "/cotizacion"},
			{Method: http.MethodPatch, Path: base},
		}
	})
	res := g.client.probe(ctx, "update order quote", cands, token, payload, nil)
	switch res.Outcome {
	case OutcomeFatal:
		return nil, res.Err
	case OutcomeShapeFailure:
		return nil, res.exhausted("update order quote")
	}
	return g.afterWrite(ctx, token, id, res.Data)
}

// CreateLine posts one line under an existing order.
func (g *OrderGateway) CreateLine(ctx context.Context, token string, orderID int64, line models.LineItem) (*models.LineItem, error) {
	cands := expand(g.groups, g.lineRes, func(res string) []Candidate {
		return []Candidate{{Method: http.MethodPost, Path: "/" + res}}
	})
	res := g.client.probe(ctx, "create order line", cands, token, toLinePayload(orderID, line), nil)
	switch res.Outcome {
	case OutcomeFatal:
		return nil, res.Err
	case OutcomeShapeFailure:
		return nil, res.exhausted("create order line")
	}

	v, err := decode(res.Data)
	if err != nil {
		return nil, errors.Wrap(err, "create order line")
	}
	m, ok := asObject(v)
	if !ok {
		return nil, errors.Wrap(models.ErrUpstreamUnavailable, "create order line: unexpected response")
	}
	created := normalizeLine(m)
	if created.OrderID == 0 {
		created.OrderID = orderID
	}
	return &created, nil
}

// afterWrite returns the order echoed by a write, or reads it back when the
// upstream answered with something that is not an order record.
func (g *OrderGateway) afterWrite(ctx context.Context, token string, id int64, data []byte) (*models.Order, error) {
	order, err := g.decodeOrder(data)
	if err == nil && order.ID == id && order.Status != "" {
		return order, nil
	}
	return g.GetByID(ctx, token, id)
}

func (g *OrderGateway) decodeOrder(data []byte) (*models.Order, error) {
	v, err := decode(data)
	if err != nil {
		return nil, err
	}
	order, ok := normalizeOrder(v)
	if !ok {
		return nil, errors.Errorf("unexpected order payload %T", v)
	}
	return order, nil
}
