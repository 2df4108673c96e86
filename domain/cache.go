package domain

import (
	"encoding/json"
	"time"
)

// Kind identifies one cached marketplace entity type. Each kind has its own logical store.
type Kind string

const (
	KindOrder         Kind = "order"
	KindOffer         Kind = "offer"
	KindService       Kind = "service"
	KindBrand         Kind = "brand"
	KindProduct       Kind = "product"
	KindInventoryItem Kind = "inventory_item"
	KindWebhookLog    Kind = "webhook_log"
)

// KindSpec describes how a kind is stored: its table/bucket, the upstream id field, the
// scalar payload fields denormalized for listing, and the numeric field used for ordering.
type KindSpec struct {
	Kind      Kind
	Table     string
	IDField   string
	Labels    []string
	SortField string
}

var kindSpecs = map[Kind]KindSpec{
	KindOrder: {
		Kind:      KindOrder,
		Table:     "orders",
		IDField:   "order_id",
		Labels:    []string{"order_status", "amount", "currency", "buyer_id", "seller_store_name"},
		SortField: "created_at",
	},
	KindOffer: {
		Kind:      KindOffer,
		Table:     "offers",
		IDField:   "offer_id",
		Labels:    []string{"status", "title", "unit_price", "currency", "product_id", "available_qty"},
		SortField: "created_at",
	},
	KindService: {
		Kind:    KindService,
		Table:   "services",
		IDField: "service_id",
		Labels:  []string{"service_name", "delivery_method"},
	},
	KindBrand: {
		Kind:    KindBrand,
		Table:   "brands",
		IDField: "brand_id",
		Labels:  []string{"brand_name"},
	},
	KindProduct: {
		Kind:    KindProduct,
		Table:   "products",
		IDField: "product_id",
		Labels:  []string{"product_name", "service_name", "brand_name", "region_name"},
	},
	KindInventoryItem: {
		Kind:    KindInventoryItem,
		Table:   "inventory_items",
		IDField: "item_id",
		Labels:  []string{"content_type", "reference_id"},
	},
	KindWebhookLog: {
		Kind:      KindWebhookLog,
		Table:     "webhook_logs",
		IDField:   "event_id",
		Labels:    []string{"event_type", "http_status", "webhook_url"},
		SortField: "event_sent_at",
	},
}

// Kinds lists every cached kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindOrder, KindOffer, KindService, KindBrand, KindProduct, KindInventoryItem, KindWebhookLog}
}

// SpecFor returns the storage description of k.
func SpecFor(k Kind) (KindSpec, bool) {
	spec, ok := kindSpecs[k]
	return spec, ok
}

// CachedEntity is the local mirror of one upstream record.
type CachedEntity struct {
	Kind      Kind              `json:"kind"`
	ID        string            `json:"id"`
	Scope     string            `json:"scope,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	SortKey   int64             `json:"sort_key"`
	Payload   json.RawMessage   `json:"payload"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// Label returns a denormalized field or "".
func (e *CachedEntity) Label(name string) string {
	if e == nil || e.Labels == nil {
		return ""
	}
	return e.Labels[name]
}

// FetchedAfter reports whether the row holds data newer than t.
func (e *CachedEntity) FetchedAfter(t time.Time) bool {
	return e != nil && e.FetchedAt.After(t)
}

// AsOf defaults a zero write time to now.
func AsOf(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// Scope helpers: brands are scoped by service, products by service and brand, inventory by offer.
func BrandScope(serviceID string) string { return serviceID }

func ProductScope(serviceID, brandID string) string { return serviceID + "/" + brandID }

func InventoryScope(offerID string) string { return offerID }
