package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// Rail is one side of a provider transaction.
type Rail struct {
	PaymentRail string `json:"payment_rail"`
	Currency    string `json:"currency"`
}

// Transaction is a wallet history record as Bridge returns it. Bridge does
// not expose an id for these records.
type Transaction struct {
	Amount       string  `json:"amount"`
	DeveloperFee *string `json:"developer_fee,omitempty"`
	CustomerID   string  `json:"customer_id"`
	Source       Rail    `json:"source"`
	Destination  Rail    `json:"destination"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`

	// Raw is the record exactly as received.
	Raw json.RawMessage `json:"-"`
}

func (t *Transaction) UnmarshalJSON(b []byte) error {
	type plain Transaction
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = Transaction(p)
	t.Raw = append(json.RawMessage(nil), b...)
	return nil
}

type HistoryResponse struct {
	Count int           `json:"count"`
	Data  []Transaction `json:"data"`
}

type Wallet struct {
	ID         string   `json:"id"`
	Chain      string   `json:"chain"`
	Address    string   `json:"address"`
	Tags       []string `json:"tags"`
	CustomerID string   `json:"customer_id"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

type walletList struct {
	Count int      `json:"count"`
	Data  []Wallet `json:"data"`
}

const walletPageSize = 100

// GetWalletHistory lists transactions for a Bridge wallet, optionally only
// those updated after updatedAfterMs. Without an API key it returns an empty result.
func (c *Client) GetWalletHistory(ctx context.Context, walletID string, limit int, updatedAfterMs *int64) (*HistoryResponse, error) {
	if !c.Configured() {
		return &HistoryResponse{Count: 0, Data: []Transaction{}}, nil
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if updatedAfterMs != nil {
		q.Set("updated_after_ms", strconv.FormatInt(*updatedAfterMs, 10))
	}

	data, err := c.do(ctx, request{
		operation: "wallet_history",
		method:    http.MethodGet,
		path:      "/wallets/" + url.PathEscape(walletID) + "/history",
		query:     q,
	})
	if err != nil {
		return nil, err
	}

	var out HistoryResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode wallet history: %w", err)
	}
	if out.Data == nil {
		out.Data = []Transaction{}
	}
	return &out, nil
}

// ListWallets pages through every custody wallet visible to the API key.
func (c *Client) ListWallets(ctx context.Context) ([]Wallet, error) {
	if !c.Configured() {
		return []Wallet{}, nil
	}

	var all []Wallet
	startingAfter := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(walletPageSize))
		if startingAfter != "" {
			q.Set("starting_after", startingAfter)
		}

		data, err := c.do(ctx, request{
			operation: "list_wallets",
			method:    http.MethodGet,
			path:      "/wallets",
			query:     q,
		})
		if err != nil {
			return nil, err
		}

		var page walletList
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("failed to decode wallet list: %w", err)
		}
		all = append(all, page.Data...)

		if len(page.Data) < walletPageSize {
			return all, nil
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}
}

// CreateWallet provisions a custody wallet for a customer on chain.
func (c *Client) CreateWallet(ctx context.Context, customerID, chain string) (*Wallet, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	data, err := c.do(ctx, request{
		operation:      "create_wallet",
		method:         http.MethodPost,
		path:           "/customers/" + url.PathEscape(customerID) + "/wallets",
		body:           map[string]string{"chain": chain},
		idempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	var w Wallet
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode created wallet: %w", err)
	}
	return &w, nil
}
