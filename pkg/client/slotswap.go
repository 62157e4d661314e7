package client

import (
	"context"
	"fmt"
	"net/url"

	"slotswap/pkg/model"
)

// SlotClient calls the slot endpoints on behalf of one principal.
type SlotClient struct {
	httpClient *HttpClient
}

func NewSlotClient(baseURL, token string) *SlotClient {
	return &SlotClient{httpClient: NewHttpClient(baseURL).WithToken(token)}
}

func (c *SlotClient) Create(ctx context.Context, input model.SlotInput) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/slots", input)
}

func (c *SlotClient) ListMine(ctx context.Context) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/slots")
}

func (c *SlotClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/slots/id/"+url.PathEscape(id))
}

func (c *SlotClient) Update(ctx context.Context, id string, update model.SlotUpdate) (*Response, error) {
	return c.httpClient.PATCH(ctx, "/api/v1/slots/id/"+url.PathEscape(id), update)
}

func (c *SlotClient) SetStatus(ctx context.Context, id string, status model.SlotStatus) (*Response, error) {
	return c.httpClient.PUT(ctx, "/api/v1/slots/id/"+url.PathEscape(id)+"/status", model.StatusChange{Status: status})
}

func (c *SlotClient) Delete(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.DELETE(ctx, "/api/v1/slots/id/"+url.PathEscape(id))
}

func (c *SlotClient) ListSwappable(ctx context.Context, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, fmt.Sprintf("/api/v1/swappable-slots?limit=%d&offset=%d", limit, offset))
}

// SwapClient calls the swap request endpoints on behalf of one principal.
type SwapClient struct {
	httpClient *HttpClient
}

func NewSwapClient(baseURL, token string) *SwapClient {
	return &SwapClient{httpClient: NewHttpClient(baseURL).WithToken(token)}
}

func (c *SwapClient) Request(ctx context.Context, offeredSlotID, requestedSlotID string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/swap-requests", model.SwapRequestInput{
		OfferedSlotID:   offeredSlotID,
		RequestedSlotID: requestedSlotID,
	})
}

func (c *SwapClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/swap-requests/id/"+url.PathEscape(id))
}

func (c *SwapClient) Respond(ctx context.Context, id string, accept bool) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/swap-requests/id/"+url.PathEscape(id)+"/response", model.SwapResponseInput{Accept: &accept})
}

func (c *SwapClient) Cancel(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/swap-requests/id/"+url.PathEscape(id)+"/cancel", nil)
}

func (c *SwapClient) Incoming(ctx context.Context, status model.SwapStatus) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/swap-requests/incoming"+statusQuery(status))
}

func (c *SwapClient) Outgoing(ctx context.Context, status model.SwapStatus) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/swap-requests/outgoing"+statusQuery(status))
}

func statusQuery(status model.SwapStatus) string {
	if status == "" {
		return ""
	}
	return "?status=" + url.QueryEscape(string(status))
}
