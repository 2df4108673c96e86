// Package marketplace is the typed client for the seller marketplace REST API.
package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/fastygo/sellerdesk/domain"
)

// SuccessCode is the only envelope code that carries a usable payload.
const SuccessCode = 20000001

// Envelope wraps every marketplace response.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// API is the set of marketplace calls the service makes. Every method returns the envelope
// payload on success and a *domain.UpstreamError otherwise.
type API interface {
	Services(ctx context.Context, language string) (json.RawMessage, error)
	Brands(ctx context.Context, serviceID string, query BrandQuery) (json.RawMessage, error)
	Products(ctx context.Context, serviceID, brandID string) (json.RawMessage, error)
	ProductAttributes(ctx context.Context, productID string) (json.RawMessage, error)

	CreateOffer(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	GetOffer(ctx context.Context, offerID string) (json.RawMessage, error)
	UpdateOffer(ctx context.Context, offerID string, body json.RawMessage) (json.RawMessage, error)
	DeleteOffer(ctx context.Context, offerID string) (json.RawMessage, error)

	GetOrder(ctx context.Context, orderID string) (json.RawMessage, error)
	DeliverOrder(ctx context.Context, orderID string, body json.RawMessage) (json.RawMessage, error)
	DeliveryStatus(ctx context.Context, orderID, deliveryID string) (json.RawMessage, error)

	UploadInventoryItem(ctx context.Context, offerID string, body json.RawMessage) (json.RawMessage, error)
	GetInventoryItem(ctx context.Context, offerID, itemID string) (json.RawMessage, error)
	DeleteInventoryItem(ctx context.Context, offerID, itemID string) (json.RawMessage, error)

	Store(ctx context.Context) (json.RawMessage, error)
	SearchWebhookLogs(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
}

// BrandQuery holds the optional brand listing parameters. Q or After turn the call into a
// search that is never cached.
type BrandQuery struct {
	Language string
	Q        string
	After    string
}

// Filtered reports whether the query is a search or a page beyond the first.
func (q BrandQuery) Filtered() bool {
	return q.Q != "" || q.After != ""
}

// Client is the resty-backed API implementation. It never retries.
type Client struct {
	http *resty.Client
}

// New builds a client for one api key and base url.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = domain.DefaultMarketplaceURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &Client{http: client}
}

func (c *Client) Services(ctx context.Context, language string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/services", url.Values{"language": {orDefault(language, "en")}}, nil)
}

func (c *Client) Brands(ctx context.Context, serviceID string, query BrandQuery) (json.RawMessage, error) {
	params := url.Values{"language": {orDefault(query.Language, "en")}}
	if query.Q != "" {
		params.Set("q", query.Q)
	}
	if query.After != "" {
		params.Set("after", query.After)
	}
	return c.do(ctx, http.MethodGet, "/v1/services/"+url.PathEscape(serviceID)+"/brands", params, nil)
}

func (c *Client) Products(ctx context.Context, serviceID, brandID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/products", url.Values{"service_id": {serviceID}, "brand_id": {brandID}}, nil)
}

func (c *Client) ProductAttributes(ctx context.Context, productID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/products/"+url.PathEscape(productID)+"/attributes", nil, nil)
}

func (c *Client) CreateOffer(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/v1/offers", nil, body)
}

func (c *Client) GetOffer(ctx context.Context, offerID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/offers/"+url.PathEscape(offerID), nil, nil)
}

func (c *Client) UpdateOffer(ctx context.Context, offerID string, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, "/v1/offers/"+url.PathEscape(offerID), nil, body)
}

func (c *Client) DeleteOffer(ctx context.Context, offerID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, "/v1/offers/"+url.PathEscape(offerID), nil, nil)
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, nil)
}

func (c *Client) DeliverOrder(ctx context.Context, orderID string, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/v1/orders/"+url.PathEscape(orderID)+"/delivery", nil, body)
}

func (c *Client) DeliveryStatus(ctx context.Context, orderID, deliveryID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID)+"/delivery/"+url.PathEscape(deliveryID), nil, nil)
}

func (c *Client) UploadInventoryItem(ctx context.Context, offerID string, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/v1/offers/"+url.PathEscape(offerID)+"/inventory_items", nil, body)
}

func (c *Client) GetInventoryItem(ctx context.Context, offerID, itemID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, inventoryPath(offerID, itemID), nil, nil)
}

func (c *Client) DeleteInventoryItem(ctx context.Context, offerID, itemID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, inventoryPath(offerID, itemID), nil, nil)
}

func (c *Client) Store(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/store", nil, nil)
}

func (c *Client) SearchWebhookLogs(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}
	return c.do(ctx, http.MethodPost, "/v1/logs/webhooks/search", nil, body)
}

// do issues one request and folds every failure into *domain.UpstreamError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body json.RawMessage) (json.RawMessage, error) {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody([]byte(body))
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, transportError(err)
	}

	raw := json.RawMessage(resp.Body())
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, &domain.UpstreamError{
			HTTPStatus: resp.StatusCode(),
			Message:    messageOf(raw, "API Error"),
			RawBody:    validJSON(raw),
		}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.UpstreamError{
			HTTPStatus: resp.StatusCode(),
			Message:    "malformed response from API server",
			RawBody:    validJSON(raw),
		}
	}
	if env.Code != SuccessCode {
		return nil, &domain.UpstreamError{
			HTTPStatus: resp.StatusCode(),
			Message:    orDefault(env.Message, fmt.Sprintf("unexpected response code %d", env.Code)),
			RawBody:    raw,
		}
	}
	return env.Payload, nil
}

func transportError(err error) *domain.UpstreamError {
	message := "No response from API server"
	if errors.Is(err, context.DeadlineExceeded) {
		message = "API server timed out"
	}
	return &domain.UpstreamError{Message: message + ": " + err.Error()}
}

func messageOf(raw []byte, fallback string) string {
	if msg := gjson.GetBytes(raw, "message"); msg.Type == gjson.String && msg.String() != "" {
		return msg.String()
	}
	return fallback
}

func validJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	return raw
}

func inventoryPath(offerID, itemID string) string {
	return "/v1/offers/" + url.PathEscape(offerID) + "/inventory_items/" + url.PathEscape(itemID)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

var _ API = (*Client)(nil)
