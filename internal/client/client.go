// Package client is a typed HTTP client for the stocktaker API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/validate"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, validate.ErrInvalid) hold for rejected input.
func (e *APIError) Is(target error) bool {
	return target == validate.ErrInvalid && e.Status == http.StatusBadRequest
}

// Client talks to one server with one bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current bearer token.
func (c *Client) Token() string { return c.token }

// do sends body as JSON and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var res LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// Signup registers a new, unapproved account.
func (c *Client) Signup(ctx context.Context, email, name, password string) (*model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"email": email, "name": name, "password": password,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout revokes the current token and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.do(ctx, http.MethodPut, "/api/auth/password", map[string]string{
		"current_password": current, "new_password": next,
	}, nil)
}

// ProductQuery filters a product listing. A zero PerPage returns every match.
type ProductQuery struct {
	StockCategory   string
	ProductCategory string
	Search          string
	Page            int
	PerPage         int
}

func (q ProductQuery) encode() string {
	v := url.Values{}
	if q.StockCategory != "" {
		v.Set("stock_category", q.StockCategory)
	}
	if q.ProductCategory != "" {
		v.Set("product_category", q.ProductCategory)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products []model.Product `json:"products"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
}

// ListProducts returns products matching q.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	var page ProductPage
	if err := c.do(ctx, http.MethodGet, "/api/products"+q.encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Products returns the whole catalog.
func (c *Client) Products(ctx context.Context) ([]model.Product, error) {
	page, err := c.ListProducts(ctx, ProductQuery{})
	if err != nil {
		return nil, err
	}
	return page.Products, nil
}

// ActiveConversions returns the user's in-progress conversions.
func (c *Client) ActiveConversions(ctx context.Context) ([]model.ActiveConversion, error) {
	var active []model.ActiveConversion
	if err := c.do(ctx, http.MethodGet, "/api/conversions/active", nil, &active); err != nil {
		return nil, err
	}
	return active, nil
}

// GetConversion returns a conversion with its items.
func (c *Client) GetConversion(ctx context.Context, id string) (*model.ConversionDetail, error) {
	var d model.ConversionDetail
	if err := c.do(ctx, http.MethodGet, "/api/conversions/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// StartConversion begins a conversion.
func (c *Client) StartConversion(ctx context.Context, req model.StartConversion) (*model.Conversion, error) {
	var conv model.Conversion
	if err := c.do(ctx, http.MethodPost, "/api/conversions", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// CompleteConversion records all outputs of a conversion.
func (c *Client) CompleteConversion(ctx context.Context, id string, outputs []model.ConversionOutput) (*model.Conversion, error) {
	var conv model.Conversion
	body := map[string]any{"outputs": outputs}
	if err := c.do(ctx, http.MethodPost, "/api/conversions/"+url.PathEscape(id)+"/complete", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// CancelConversion abandons an in-progress conversion.
func (c *Client) CancelConversion(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/conversions/"+url.PathEscape(id), nil, nil)
}
