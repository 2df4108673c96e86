package catalog

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/internal/marketplace"
	"github.com/fastygo/sellerdesk/repository"
	"github.com/fastygo/sellerdesk/usecase"
)

// readOne serves a single entity from cache unless refresh is set, and mirrors the upstream
// payload on a miss.
func (c *Coordinator) readOne(ctx context.Context, kind domain.Kind, id string, refresh bool,
	fetch func(marketplace.API) (json.RawMessage, error)) (*Result, error) {
	if id == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, string(kind)+" id is required")
	}
	if !refresh {
		if cached := c.lookup(ctx, kind, id); cached != nil {
			return &Result{Data: cached.Payload, Cached: true}, nil
		}
	}

	api, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := fetch(api)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 || gjson.ParseBytes(payload).Type == gjson.Null {
		return nil, domain.NewError(domain.ErrCodeNotFound, string(kind)+" not found")
	}
	if e, ok := c.entity(kind, "", id, payload); ok {
		c.persist(ctx, usecase.CacheWrite{Op: usecase.CacheOpUpsert, Kind: kind, Entities: []domain.CachedEntity{e}})
	}
	return &Result{Data: payload}, nil
}

// readScoped serves a mirrored list: all rows from the cache when any exist for scope,
// otherwise the upstream list, which then replaces the scope.
func (c *Coordinator) readScoped(ctx context.Context, kind domain.Kind, scope, field string, refresh bool,
	fetch func(marketplace.API) (json.RawMessage, error)) (*Result, json.RawMessage, error) {
	if !refresh {
		if rows := c.scoped(ctx, kind, scope); len(rows) > 0 {
			return &Result{Data: payloads(rows), Cached: true}, nil, nil
		}
	}

	api, err := c.client(ctx)
	if err != nil {
		return nil, nil, err
	}
	payload, err := fetch(api)
	if err != nil {
		return nil, nil, err
	}
	list := listOf(payload, field)
	if gjson.GetBytes(payload, field).IsArray() {
		c.persist(ctx, usecase.CacheWrite{
			Op:       usecase.CacheOpReplace,
			Kind:     kind,
			Scope:    scope,
			Entities: c.entities(kind, scope, list),
		})
	}
	return &Result{Data: json.RawMessage(list.Raw)}, payload, nil
}

// cachedList reads rows that only exist locally, newest first.
func (c *Coordinator) cachedList(ctx context.Context, kind domain.Kind, filter repository.CacheFilter) (*Result, error) {
	rows, err := c.cache.List(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	return &Result{Data: payloads(rows), Cached: true}, nil
}

// passThrough calls upstream without touching the cache.
func (c *Coordinator) passThrough(ctx context.Context, fetch func(marketplace.API) (json.RawMessage, error)) (*Result, error) {
	api, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := fetch(api)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return &Result{Data: payload}, nil
}

// Orders

func (c *Coordinator) ListOrders(ctx context.Context, limit int) (*Result, error) {
	return c.cachedList(ctx, domain.KindOrder, repository.CacheFilter{Limit: limit, All: limit <= 0})
}

func (c *Coordinator) GetOrder(ctx context.Context, orderID string, refresh bool) (*Result, error) {
	return c.readOne(ctx, domain.KindOrder, orderID, refresh, func(api marketplace.API) (json.RawMessage, error) {
		return api.GetOrder(ctx, orderID)
	})
}

// DeliverOrder posts delivery codes, then re-fetches the order so the cached copy reflects
// the new delivery state.
func (c *Coordinator) DeliverOrder(ctx context.Context, orderID string, body json.RawMessage) (*Result, error) {
	if orderID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "order id is required")
	}
	api, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := api.DeliverOrder(ctx, orderID, body)
	if err != nil {
		return nil, err
	}

	order, err := api.GetOrder(ctx, orderID)
	switch {
	case err != nil:
		c.logger.Warn("order refresh after delivery failed", zap.String("order_id", orderID), zap.Error(err))
	case len(order) > 0:
		if e, ok := c.entity(domain.KindOrder, "", orderID, order); ok {
			c.persist(ctx, usecase.CacheWrite{Op: usecase.CacheOpUpsert, Kind: domain.KindOrder, Entities: []domain.CachedEntity{e}})
		}
	}
	return &Result{Data: orNull(payload)}, nil
}

func (c *Coordinator) DeliveryStatus(ctx context.Context, orderID, deliveryID string) (*Result, error) {
	return c.passThrough(ctx, func(api marketplace.API) (json.RawMessage, error) {
		return api.DeliveryStatus(ctx, orderID, deliveryID)
	})
}

// Offers

func (c *Coordinator) ListOffers(ctx context.Context, limit int) (*Result, error) {
	return c.cachedList(ctx, domain.KindOffer, repository.CacheFilter{Limit: limit, All: limit <= 0})
}

func (c *Coordinator) GetOffer(ctx context.Context, offerID string, refresh bool) (*Result, error) {
	return c.readOne(ctx, domain.KindOffer, offerID, refresh, func(api marketplace.API) (json.RawMessage, error) {
		return api.GetOffer(ctx, offerID)
	})
}

func (c *Coordinator) CreateOffer(ctx context.Context, body json.RawMessage) (*Result, error) {
	return c.writeOffer(ctx, "", func(api marketplace.API) (json.RawMessage, error) {
		return api.CreateOffer(ctx, body)
	})
}

func (c *Coordinator) UpdateOffer(ctx context.Context, offerID string, body json.RawMessage) (*Result, error) {
	if offerID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "offer id is required")
	}
	return c.writeOffer(ctx, offerID, func(api marketplace.API) (json.RawMessage, error) {
		return api.UpdateOffer(ctx, offerID, body)
	})
}

func (c *Coordinator) writeOffer(ctx context.Context, offerID string, call func(marketplace.API) (json.RawMessage, error)) (*Result, error) {
	api, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := call(api)
	if err != nil {
		return nil, err
	}
	if e, ok := c.entity(domain.KindOffer, "", offerID, payload); ok && len(payload) > 0 {
		c.persist(ctx, usecase.CacheWrite{Op: usecase.CacheOpUpsert, Kind: domain.KindOffer, Entities: []domain.CachedEntity{e}})
	}
	return &Result{Data: orNull(payload)}, nil
}

func (c *Coordinator) DeleteOffer(ctx context.Context, offerID string) (*Result, error) {
	if offerID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "offer id is required")
	}
	api, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := api.DeleteOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	c.persist(ctx, usecase.CacheWrite{Op: usecase.CacheOpDelete, Kind: domain.KindOffer, ID: offerID})
	return &Result{Data: orNull(payload)}, nil
}

// Services, brands and products are full mirrors of their upstream scope.

func (c *Coordinator) Services(ctx context.Context, language string, refresh bool) (*Result, error) {
	res, _, err := c.readScoped(ctx, domain.KindService, "", "service_list", refresh, func(api marketplace.API) (json.RawMessage, error) {
		return api.Services(ctx, language)
	})
	return res, err
}

// Brands bypasses the cache entirely for searches and pages past the first.
func (c *Coordinator) Brands(ctx context.Context, serviceID string, query marketplace.BrandQuery, refresh bool) (*Result, error) {
	if serviceID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "service_id is required")
	}
	fetch := func(api marketplace.API) (json.RawMessage, error) {
		return api.Brands(ctx, serviceID, query)
	}

	if query.Filtered() {
		res, err := c.passThrough(ctx, fetch)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:  json.RawMessage(listOf(res.Data, "brand_list").Raw),
			After: gjson.GetBytes(res.Data, "after").String(),
		}, nil
	}

	res, payload, err := c.readScoped(ctx, domain.KindBrand, domain.BrandScope(serviceID), "brand_list", refresh, fetch)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		res.After = gjson.GetBytes(payload, "after").String()
	}
	return res, nil
}

func (c *Coordinator) Products(ctx context.Context, serviceID, brandID string, refresh bool) (*Result, error) {
	if serviceID == "" || brandID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "service_id and brand_id are required")
	}
	res, _, err := c.readScoped(ctx, domain.KindProduct, domain.ProductScope(serviceID, brandID), "product_list", refresh,
		func(api marketplace.API) (json.RawMessage, error) {
			return api.Products(ctx, serviceID, brandID)
		})
	return res, err
}

func (c *Coordinator) ProductAttributes(ctx context.Context, productID string) (*Result, error) {
	if productID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "product id is required")
	}
	res, err := c.passThrough(ctx, func(api marketplace.API) (json.RawMessage, error) {
		return api.ProductAttributes(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	if string(res.Data) == "null" {
		res.Data = json.RawMessage("[]")
	}
	return res, nil
}

// Inventory is append-only locally: uploads add rows, deletes remove them.

// InventoryUpload is the code upload request body.
type InventoryUpload struct {
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	ReferenceID string `json:"reference_id,omitempty"`
}

func (c *Coordinator) UploadInventoryItem(ctx context.Context, offerID string, upload InventoryUpload) (*Result, error) {
	if offerID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "offer id is required")
	}
	if strings.TrimSpace(upload.Content) == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "content is required")
	}
	body, err := json.Marshal(upload)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "encode upload", err)
	}

	api, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := api.UploadInventoryItem(ctx, offerID, body)
	if err != nil {
		return nil, err
	}

	owner := gjson.GetBytes(payload, "offer_id").String()
	if owner == "" {
		owner = offerID
	}
	row, _ := json.Marshal(map[string]string{
		"item_id":      gjson.GetBytes(payload, "item_id").String(),
		"offer_id":     owner,
		"content":      upload.Content,
		"content_type": upload.ContentType,
		"reference_id": upload.ReferenceID,
	})
	if e, ok := c.entity(domain.KindInventoryItem, domain.InventoryScope(owner), "", row); ok {
		e.SortKey = e.FetchedAt.UnixMilli()
		c.persist(ctx, usecase.CacheWrite{Op: usecase.CacheOpInsertMissing, Kind: domain.KindInventoryItem, Entities: []domain.CachedEntity{e}})
	}
	return &Result{Data: orNull(payload)}, nil
}

func (c *Coordinator) ListInventory(ctx context.Context, offerID string) (*Result, error) {
	if offerID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "offer id is required")
	}
	return c.cachedList(ctx, domain.KindInventoryItem, repository.CacheFilter{Scope: domain.InventoryScope(offerID), All: true})
}

func (c *Coordinator) GetInventoryItem(ctx context.Context, offerID, itemID string) (*Result, error) {
	return c.passThrough(ctx, func(api marketplace.API) (json.RawMessage, error) {
		return api.GetInventoryItem(ctx, offerID, itemID)
	})
}

func (c *Coordinator) DeleteInventoryItem(ctx context.Context, offerID, itemID string) (*Result, error) {
	if offerID == "" || itemID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "offer id and item id are required")
	}
	api, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := api.DeleteInventoryItem(ctx, offerID, itemID)
	if err != nil {
		return nil, err
	}
	c.persist(ctx, usecase.CacheWrite{Op: usecase.CacheOpDelete, Kind: domain.KindInventoryItem, ID: itemID})
	return &Result{Data: orNull(payload)}, nil
}

// Store settings are always read live.
func (c *Coordinator) Store(ctx context.Context) (*Result, error) {
	return c.passThrough(ctx, func(api marketplace.API) (json.RawMessage, error) {
		return api.Store(ctx)
	})
}

// Webhook logs

// SearchWebhookLogs mirrors unfiltered results additively. Any filter or page field set in
// the body makes the call bypass the cache in both directions.
func (c *Coordinator) SearchWebhookLogs(ctx context.Context, body json.RawMessage) (*Result, error) {
	if len(body) > 0 && !gjson.ValidBytes(body) {
		return nil, domain.NewError(domain.ErrCodeInvalid, "search body must be JSON")
	}
	res, err := c.passThrough(ctx, func(api marketplace.API) (json.RawMessage, error) {
		return api.SearchWebhookLogs(ctx, body)
	})
	if err != nil {
		return nil, err
	}
	if filtered(body) {
		return res, nil
	}
	if results := gjson.GetBytes(res.Data, "results"); results.IsArray() {
		if rows := c.entities(domain.KindWebhookLog, "", results); len(rows) > 0 {
			c.persist(ctx, usecase.CacheWrite{Op: usecase.CacheOpInsertMissing, Kind: domain.KindWebhookLog, Entities: rows})
		}
	}
	return res, nil
}

// ListWebhookLogs returns cached logs newest first. limit defaults to 50.
func (c *Coordinator) ListWebhookLogs(ctx context.Context, limit int) (*Result, error) {
	if limit <= 0 {
		limit = 50
	}
	return c.cachedList(ctx, domain.KindWebhookLog, repository.CacheFilter{Limit: limit})
}

// filtered reports whether a search body carries any non-empty field.
func filtered(body json.RawMessage) bool {
	found := false
	gjson.ParseBytes(body).ForEach(func(_, v gjson.Result) bool {
		switch v.Type {
		case gjson.Null:
		case gjson.String:
			found = v.String() != ""
		default:
			found = !(v.IsArray() && len(v.Array()) == 0) && !(v.IsObject() && v.Raw == "{}")
		}
		return !found
	})
	return found
}

func orNull(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 {
		return json.RawMessage("null")
	}
	return payload
}
