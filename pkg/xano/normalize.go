package xano

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"muebles/internal/models"
)

// Upstream records use Spanish names and several historical aliases. The
// functions here map them onto the canonical model once, right after a read.

var upstreamStatus = map[models.Status]string{
	models.StatusDraft:        "borrador",
	models.StatusNew:          "nuevo",
	models.StatusQuoting:      "en_cotizacion",
	models.StatusApproved:     "aprobado",
	models.StatusInProduction: "en_produccion",
	models.StatusDelivered:    "entregado",
	models.StatusCancelled:    "cancelado",
}

var statusAliases = map[string]models.Status{
	"borrador":      models.StatusDraft,
	"nuevo":         models.StatusNew,
	"pendiente":     models.StatusNew,
	"en_cotizacion": models.StatusQuoting,
	"cotizacion":    models.StatusQuoting,
	"en cotizacion": models.StatusQuoting,
	"aprobado":      models.StatusApproved,
	"en_produccion": models.StatusInProduction,
	"en produccion": models.StatusInProduction,
	"entregado":     models.StatusDelivered,
	"cancelado":     models.StatusCancelled,
}

// UpstreamStatus is the wire value for s.
func UpstreamStatus(s models.Status) string {
	if v, ok := upstreamStatus[s]; ok {
		return v
	}
	return string(s)
}

// ParseStatus accepts canonical and upstream spellings.
func ParseStatus(raw string) models.Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s := models.Status(key); s.Valid() || s == models.StatusDraft {
		return s
	}
	if s, ok := statusAliases[key]; ok {
		return s
	}
	return models.Status(key)
}

var (
	orderIDKeys       = []string{"id", "pedido_id", "order_id"}
	ownerKeys         = []string{"usuario_id", "user_id", "owner_id", "cliente_id"}
	statusKeys        = []string{"estado", "status"}
	createdKeys       = []string{"fecha_creacion", "created_at", "fecha", "createdAt"}
	updatedKeys       = []string{"updated_at", "fecha_actualizacion", "updatedAt"}
	totalKeys         = []string{"total_estimado", "total", "cotizacion_total", "importe_total", "cotizacion", "monto_total", "valor_total", "subtotal"}
	numberKeys        = []string{"numero_pedido", "numero", "order_number"}
	notesKeys         = []string{"notas_cliente", "client_notes", "notas"}
	addressKeys       = []string{"direccion_entrega", "delivery_address", "direccion"}
	adminNotesKeys    = []string{"notas_admin", "admin_notes"}
	deliveryDateKeys  = []string{"fecha_entrega", "delivery_date", "fecha_entrega_estimada"}
	linesKeys         = []string{"detalles", "lines", "items", "productos", "detalles_pedido"}
	historyKeys       = []string{"historial", "history", "historial_estados"}
	listEnvelopeKeys  = []string{"pedidos", "data", "items", "result", "records"}
	orderEnvelopeKeys = []string{"pedido", "order", "data", "result"}
)

func field(m map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func asDecimal(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	}
	return decimal.Zero, false
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// asTime reads ISO strings and the epoch milliseconds Xano uses for timestamps.
func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case json.Number:
		if ms, err := t.Int64(); err == nil && ms > 0 {
			return time.UnixMilli(ms).UTC(), true
		}
	case float64:
		if t > 0 {
			return time.UnixMilli(int64(t)).UTC(), true
		}
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms).UTC(), true
		}
	}
	return time.Time{}, false
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func stringField(m map[string]interface{}, keys ...string) string {
	v, _ := field(m, keys...)
	return asString(v)
}

// unwrapOrder digs a single record out of the envelopes seen upstream.
func unwrapOrder(v interface{}) (map[string]interface{}, bool) {
	m, ok := asObject(v)
	if !ok {
		return nil, false
	}
	if _, has := field(m, orderIDKeys...); has {
		return m, true
	}
	for _, k := range orderEnvelopeKeys {
		if inner, ok := asObject(m[k]); ok {
			return unwrapOrder(inner)
		}
	}
	return m, true
}

// normalizeOrder maps one upstream record onto models.Order.
func normalizeOrder(v interface{}) (*models.Order, bool) {
	m, ok := unwrapOrder(v)
	if !ok {
		return nil, false
	}
	order := &models.Order{
		OrderNumber:     stringField(m, numberKeys...),
		Status:          ParseStatus(stringField(m, statusKeys...)),
		ClientNotes:     stringField(m, notesKeys...),
		DeliveryAddress: stringField(m, addressKeys...),
		AdminNotes:      stringField(m, adminNotesKeys...),
		Lines:           []models.LineItem{},
		History:         []models.StatusChange{},
	}
	if raw, ok := field(m, orderIDKeys...); ok {
		order.ID, _ = asInt64(raw)
	}
	if raw, ok := field(m, ownerKeys...); ok {
		order.OwnerID, _ = asInt64(raw)
	}
	if raw, ok := field(m, createdKeys...); ok {
		order.CreatedAt, _ = asTime(raw)
	}
	if raw, ok := field(m, updatedKeys...); ok {
		order.UpdatedAt, _ = asTime(raw)
	}
	if raw, ok := field(m, deliveryDateKeys...); ok {
		if ts, ok := asTime(raw); ok {
			order.DeliveryDate = &ts
		}
	}
	if raw, ok := field(m, linesKeys...); ok {
		if list, ok := raw.([]interface{}); ok {
			for _, item := range list {
				if lm, ok := asObject(item); ok {
					line := normalizeLine(lm)
					if line.OrderID == 0 {
						line.OrderID = order.ID
					}
					order.Lines = append(order.Lines, line)
				}
			}
		}
	}
	if raw, ok := field(m, historyKeys...); ok {
		if list, ok := raw.([]interface{}); ok {
			for _, item := range list {
				if hm, ok := asObject(item); ok {
					order.History = append(order.History, normalizeChange(hm, order.ID))
				}
			}
		}
	}
	if raw, ok := field(m, totalKeys...); ok {
		if d, ok := asDecimal(raw); ok {
			order.EstimatedTotal = d
		}
	} else {
		order.EstimatedTotal = order.ComputedTotal()
	}
	return order, true
}

func normalizeLine(m map[string]interface{}) models.LineItem {
	line := models.LineItem{
		Description:       stringField(m, "descripcion", "description", "nombre", "name"),
		Dimensions:        stringField(m, "medidas", "dimensions"),
		Material:          stringField(m, "material"),
		Color:             stringField(m, "color"),
		Style:             stringField(m, "estilo", "style"),
		Notes:             stringField(m, "observaciones", "notes"),
		ReferenceImageURL: stringField(m, "imagen_url", "reference_image_url", "image_url"),
		Quantity:          1,
	}
	if raw, ok := field(m, "id"); ok {
		line.ID, _ = asInt64(raw)
	}
	if raw, ok := field(m, "pedido_id", "order_id"); ok {
		line.OrderID, _ = asInt64(raw)
	}
	if raw, ok := field(m, "cantidad", "quantity"); ok {
		if q, ok := asInt64(raw); ok && q > 0 {
			line.Quantity = int(q)
		}
	}
	if raw, ok := field(m, "precio_unitario", "cotizacion", "unit_price", "price"); ok {
		if d, ok := asDecimal(raw); ok {
			line.UnitPrice = decimal.NewNullDecimal(d)
		}
	}
	return line
}

func normalizeChange(m map[string]interface{}, orderID int64) models.StatusChange {
	change := models.StatusChange{
		OrderID:    orderID,
		FromStatus: ParseStatus(stringField(m, "estado_anterior", "from_status")),
		ToStatus:   ParseStatus(stringField(m, "estado_nuevo", "to_status", "estado")),
		Comment:    stringField(m, "comentario", "comment"),
	}
	if raw, ok := field(m, "id"); ok {
		change.ID, _ = asInt64(raw)
	}
	if raw, ok := field(m, "usuario_cambio_id", "changed_by"); ok {
		if id, ok := asInt64(raw); ok && id > 0 {
			change.ChangedBy = &id
		}
	}
	if raw, ok := field(m, "fecha_cambio", "changed_at", "created_at"); ok {
		change.ChangedAt, _ = asTime(raw)
	}
	return change
}

// normalizeOrderPage accepts a bare array or any of the known envelopes.
func normalizeOrderPage(v interface{}, page, limit int) *models.OrderPage {
	var list []interface{}
	var meta map[string]interface{}
	switch t := v.(type) {
	case []interface{}:
		list = t
	case map[string]interface{}:
		if raw, ok := field(t, listEnvelopeKeys...); ok {
			list, _ = raw.([]interface{})
		}
		if raw, ok := field(t, "pagination", "meta"); ok {
			meta, _ = asObject(raw)
		} else {
			meta = t
		}
	}

	orders := make([]models.Order, 0, len(list))
	for _, item := range list {
		if o, ok := normalizeOrder(item); ok {
			orders = append(orders, *o)
		}
	}

	p := models.NewPagination(page, limit, len(orders))
	if meta != nil {
		if raw, ok := field(meta, "page", "current_page", "curPage"); ok {
			if n, ok := asInt64(raw); ok && n > 0 {
				p.Page = int(n)
			}
		}
		if raw, ok := field(meta, "limit", "per_page", "perPage"); ok {
			if n, ok := asInt64(raw); ok && n > 0 {
				p.Limit = int(n)
			}
		}
		if raw, ok := field(meta, "total", "itemsTotal"); ok {
			if n, ok := asInt64(raw); ok && n >= 0 {
				p.Total = int(n)
			}
		}
		if raw, ok := field(meta, "pages", "last_page", "pageTotal"); ok {
			if n, ok := asInt64(raw); ok && n >= 0 {
				p.Pages = int(n)
			}
		} else {
			p = models.NewPagination(p.Page, p.Limit, p.Total)
		}
	}
	return &models.OrderPage{Orders: orders, Pagination: p}
}

// normalizeActor maps an upstream user profile onto an Actor.
func normalizeActor(v interface{}) (*models.Actor, bool) {
	m, ok := asObject(v)
	if !ok {
		return nil, false
	}
	if inner, ok := asObject(m["user"]); ok {
		m = inner
	}
	raw, ok := field(m, "id", "user_id", "usuario_id")
	if !ok {
		return nil, false
	}
	id, ok := asInt64(raw)
	if !ok || id <= 0 {
		return nil, false
	}
	name := stringField(m, "nombre", "name", "full_name", "first_name")
	if name == "" {
		name = "User"
	}
	return &models.Actor{
		ID:    id,
		Name:  name,
		Email: stringField(m, "email", "correo", "correo_electronico"),
		Role:  models.ParseRole(stringField(m, "rol", "role")),
	}, true
}

// extractToken finds the credential in a login response.
func extractToken(v interface{}) string {
	m, ok := asObject(v)
	if !ok {
		return ""
	}
	if tok := stringField(m, "authToken", "token", "access_token"); tok != "" {
		return tok
	}
	if inner, ok := asObject(m["data"]); ok {
		return stringField(inner, "token", "authToken")
	}
	return ""
}
