package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = &RetryConfig{
	MaxRetries:      3,
	InitialDelay:    time.Millisecond,
	MaxDelay:        5 * time.Millisecond,
	BackoffMultiple: 2,
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, APIKey: "sk-test", Retry: fastRetry})
}

func TestGetWalletHistory_DegradedWithoutAPIKey(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	res, err := c.GetWalletHistory(context.Background(), "wal_1", 100, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Zero(t, atomic.LoadInt32(&calls), "no request without credentials")
}

func TestGetWalletHistory_RequestShapeAndDecode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/wallets/wal_1/history", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "1700000000000", r.URL.Query().Get("updated_after_ms"))
		assert.Equal(t, "sk-test", r.Header.Get("Api-Key"))

		_, _ = w.Write([]byte(`{"count":1,"data":[{
			"amount":"12.50","developer_fee":"0.10","customer_id":"cus_1",
			"source":{"payment_rail":"ach","currency":"usd"},
			"destination":{"payment_rail":"ethereum","currency":"usdc"},
			"created_at":"2024-01-02T03:04:05.000Z","updated_at":"2024-01-02T03:05:00.000Z",
			"extra_field":"kept"}]}`))
	})

	after := int64(1700000000000)
	res, err := c.GetWalletHistory(context.Background(), "wal_1", 100, &after)
	require.NoError(t, err)
	require.Len(t, res.Data, 1)

	tx := res.Data[0]
	assert.Equal(t, "12.50", tx.Amount)
	require.NotNil(t, tx.DeveloperFee)
	assert.Equal(t, "0.10", *tx.DeveloperFee)
	assert.Equal(t, "ach", tx.Source.PaymentRail)
	assert.Equal(t, "usdc", tx.Destination.Currency)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(tx.Raw, &raw))
	assert.Equal(t, "kept", raw["extra_field"], "raw payload is kept verbatim")
}

func TestGetWalletHistory_Non2xxIsProviderErrorWithoutRetry(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	})

	_, err := c.GetWalletHistory(context.Background(), "wal_1", 100, nil)
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "history reads are not retried")
}

func TestListWallets_Paginates(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		var page walletList
		if n == 1 {
			assert.Empty(t, r.URL.Query().Get("starting_after"))
			for i := 0; i < walletPageSize; i++ {
				page.Data = append(page.Data, Wallet{ID: "wal_" + string(rune('a'+i%26)), Chain: "solana"})
			}
			page.Data[walletPageSize-1].ID = "wal_last"
		} else {
			assert.Equal(t, "wal_last", r.URL.Query().Get("starting_after"))
			page.Data = []Wallet{{ID: "wal_tail", Chain: "base"}}
		}
		_ = json.NewEncoder(w).Encode(page)
	})

	wallets, err := c.ListWallets(context.Background())
	require.NoError(t, err)
	assert.Len(t, wallets, walletPageSize+1)
	assert.Equal(t, "wal_tail", wallets[len(wallets)-1].ID)
}

func TestCreateWallet_RequiresAPIKey(t *testing.T) {
	c := New(Options{})
	_, err := c.CreateWallet(context.Background(), "cus_1", "solana")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreateWallet_SendsIdempotencyKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/customers/cus_1/wallets", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "solana", body["chain"])
		_, _ = w.Write([]byte(`{"id":"wal_new","chain":"solana","address":"So1ana","tags":["general_use"]}`))
	})

	wallet, err := c.CreateWallet(context.Background(), "cus_1", "solana")
	require.NoError(t, err)
	assert.Equal(t, "wal_new", wallet.ID)
	assert.Equal(t, "So1ana", wallet.Address)
}

func TestCreateCustomer_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"cus_1","status":"not_started","type":"individual","email":"a@b.co"}`))
	})

	cust, err := c.CreateCustomer(context.Background(), CreateCustomerRequest{Type: "individual", Email: "a@b.co"})
	require.NoError(t, err)
	assert.Equal(t, "cus_1", cust.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCreateCustomer_NeverRetriesClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := c.CreateCustomer(context.Background(), CreateCustomerRequest{Type: "individual", Email: "bad"})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusUnprocessableEntity, pe.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetCustomer_StopsAtRetryCeiling(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.GetCustomer(context.Background(), "cus_1")
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, int32(1+fastRetry.MaxRetries), atomic.LoadInt32(&calls))
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	c := New(Options{Retry: &RetryConfig{
		MaxRetries:      5,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        300 * time.Millisecond,
		BackoffMultiple: 2,
	}})
	assert.Equal(t, 100*time.Millisecond, c.backoff(0))
	assert.Equal(t, 200*time.Millisecond, c.backoff(1))
	assert.Equal(t, 300*time.Millisecond, c.backoff(2))
	assert.Equal(t, 300*time.Millisecond, c.backoff(5))
}

func TestCreateCustomer_RetriesReuseIdempotencyKey(t *testing.T) {
	var keys []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if len(keys) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"cus_1","status":"not_started"}`))
	})

	_, err := c.CreateCustomer(context.Background(), CreateCustomerRequest{Type: "individual", Email: "a@b.co"})
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, keys[0], keys[2])

	// A new logical call gets a new key.
	_, err = c.CreateCustomer(context.Background(), CreateCustomerRequest{Type: "individual", Email: "a@b.co"})
	require.NoError(t, err)
	require.Len(t, keys, 4)
	assert.NotEqual(t, keys[0], keys[3])
}
