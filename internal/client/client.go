// Package client calls the librarian HTTP API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"libraryflow/internal/acquisitions"
	"libraryflow/internal/catalog"
	"libraryflow/internal/circulation"
	"libraryflow/internal/membership"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Message)
}

// Client is safe for concurrent use once logged in.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns a client for the API rooted at baseURL. A nil httpClient uses
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// Login authenticates a staff member and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*membership.Staff, error) {
	var resp struct {
		Token string            `json:"token"`
		Staff *membership.Staff `json:"staff"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/members/auth/login", body, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return resp.Staff, nil
}

func (c *Client) RegisterPatron(ctx context.Context, email, name, tier string) (*membership.Patron, error) {
	var patron membership.Patron
	body := map[string]string{"email": email, "name": name, "membership_tier": tier}
	if err := c.do(ctx, http.MethodPost, "/api/v1/members/patrons", body, &patron); err != nil {
		return nil, err
	}
	return &patron, nil
}

func (c *Client) OpenBranch(ctx context.Context, name, address string) (*membership.Branch, error) {
	var branch membership.Branch
	body := map[string]string{"name": name, "address": address}
	if err := c.do(ctx, http.MethodPost, "/api/v1/members/branches", body, &branch); err != nil {
		return nil, err
	}
	return &branch, nil
}

func (c *Client) AssignStaffToBranch(ctx context.Context, staffID, branchID uuid.UUID) (*membership.Staff, error) {
	var staff membership.Staff
	path := fmt.Sprintf("/api/v1/members/staff/%s/branch", staffID)
	if err := c.do(ctx, http.MethodPost, path, map[string]uuid.UUID{"branch_id": branchID}, &staff); err != nil {
		return nil, err
	}
	return &staff, nil
}

func (c *Client) CatalogItem(ctx context.Context, in catalog.ItemInput) (*catalog.Item, error) {
	var item catalog.Item
	if err := c.do(ctx, http.MethodPost, "/api/v1/catalog/items", in, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) GetItem(ctx context.Context, id uuid.UUID) (*catalog.Item, error) {
	var item catalog.Item
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/catalog/items/%s", id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// AddCopy adds a copy at branchID. An empty barcode lets the server issue one.
func (c *Client) AddCopy(ctx context.Context, itemID, branchID uuid.UUID, barcode string) (*catalog.Copy, error) {
	var cp catalog.Copy
	body := map[string]any{"branch_id": branchID, "barcode": barcode}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/catalog/items/%s/copies", itemID), body, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (c *Client) ListCopies(ctx context.Context, itemID uuid.UUID) ([]*catalog.Copy, error) {
	var copies []*catalog.Copy
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/catalog/items/%s/copies", itemID), nil, &copies); err != nil {
		return nil, err
	}
	return copies, nil
}

func (c *Client) GetCopy(ctx context.Context, id uuid.UUID) (*catalog.Copy, error) {
	var cp catalog.Copy
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/catalog/copies/%s", id), nil, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (c *Client) Checkout(ctx context.Context, copyID, patronID uuid.UUID) (*circulation.Loan, error) {
	var loan circulation.Loan
	body := map[string]uuid.UUID{"copy_id": copyID, "patron_id": patronID}
	if err := c.do(ctx, http.MethodPost, "/api/v1/circulation/loans", body, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *Client) Return(ctx context.Context, loanID uuid.UUID) (*circulation.Loan, error) {
	var loan circulation.Loan
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/circulation/loans/%s/return", loanID), nil, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *Client) PlaceHold(ctx context.Context, itemID, patronID uuid.UUID) (*circulation.Hold, error) {
	var hold circulation.Hold
	body := map[string]uuid.UUID{"item_id": itemID, "patron_id": patronID}
	if err := c.do(ctx, http.MethodPost, "/api/v1/circulation/holds", body, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (c *Client) GetHold(ctx context.Context, id uuid.UUID) (*circulation.Hold, error) {
	var hold circulation.Hold
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/circulation/holds/%s", id), nil, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (c *Client) CreateOrder(ctx context.Context, vendorID uuid.UUID) (*acquisitions.Order, error) {
	var order acquisitions.Order
	if err := c.do(ctx, http.MethodPost, "/api/v1/acquisitions/orders", map[string]uuid.UUID{"vendor_id": vendorID}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) AddOrderLine(ctx context.Context, orderID, itemID uuid.UUID, quantity int, unitPriceCents int64) (*acquisitions.Order, error) {
	var order acquisitions.Order
	body := map[string]any{"item_id": itemID, "quantity": quantity, "unit_price_cents": unitPriceCents}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/acquisitions/orders/%s/lines", orderID), body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ReceiveOrder(ctx context.Context, orderID uuid.UUID) (*acquisitions.Order, error) {
	var order acquisitions.Order
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/acquisitions/orders/%s/receive", orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
