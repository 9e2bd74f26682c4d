package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

type Customer struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
	Email        string `json:"email"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type CreateCustomerRequest struct {
	Type         string `json:"type"` // individual | business
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
	Email        string `json:"email"`
}

// CreateCustomer registers a KYC/KYB customer. 5xx answers are retried.
func (c *Client) CreateCustomer(ctx context.Context, in CreateCustomerRequest) (*Customer, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	data, err := c.doWithRetry(ctx, request{
		operation:      "create_customer",
		method:         http.MethodPost,
		path:           "/customers",
		body:           in,
		idempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	return decodeCustomer(data)
}

// GetCustomer reads a customer, including its current verification status.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	data, err := c.doWithRetry(ctx, request{
		operation: "get_customer",
		method:    http.MethodGet,
		path:      "/customers/" + url.PathEscape(customerID),
	})
	if err != nil {
		return nil, err
	}
	return decodeCustomer(data)
}

func decodeCustomer(data []byte) (*Customer, error) {
	var out Customer
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode customer: %w", err)
	}
	return &out, nil
}
