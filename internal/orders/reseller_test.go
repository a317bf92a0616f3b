package orders_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadxpress/loadxpress/internal/orders"
)

func TestNormalizeRecipient(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"local 11 digits", "08031234567", "08031234567", false},
		{"missing leading zero", "8031234567", "08031234567", false},
		{"e164", "+2348031234567", "08031234567", false},
		{"too short", "0803123", "", true},
		{"letters", "080312345ab", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := orders.NormalizeRecipient(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, orders.ErrInvalidRecipient)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFindBundle(t *testing.T) {
	network, bundle, ok := orders.FindBundle(orders.NetworkMTN, 46)
	require.True(t, ok)
	assert.Equal(t, 1, network.ID)
	assert.Equal(t, "1GB", bundle.Size)
	assert.Equal(t, int64(570), bundle.Price)

	_, _, ok = orders.FindBundle(orders.NetworkMTN, 9999)
	assert.False(t, ok)

	_, _, ok = orders.FindBundle("9mobile", 46)
	assert.False(t, ok)
}

func TestCatalogCoversAllNetworks(t *testing.T) {
	catalog := orders.Catalog()
	require.Len(t, catalog, 3)

	assert.Equal(t, 1, catalog[orders.NetworkMTN].ID)
	assert.Equal(t, 2, catalog[orders.NetworkGlo].ID)
	assert.Equal(t, 3, catalog[orders.NetworkAirtel].ID)

	for key, network := range catalog {
		assert.NotEmpty(t, network.Data, "network %s has no bundles", key)
	}
}

func TestBuyAirtimeSendsExpectedPayload(t *testing.T) {
	var got map[string]any
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"status": "true"})
	}))
	defer srv.Close()

	client := orders.NewResellerClient(srv.URL, "test-token")
	err := client.BuyAirtime(context.Background(), "08031234567", 500, 1)
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", auth)
	assert.Equal(t, float64(1), got["provider_id"])
	assert.Equal(t, "08031234567", got["phone_number"])
	assert.Equal(t, float64(500), got["amount"])
}

func TestBuyDataSendsExpectedPayload(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"status": "success"})
	}))
	defer srv.Close()

	client := orders.NewResellerClient(srv.URL, "test-token")
	err := client.BuyData(context.Background(), "08031234567", 46)
	require.NoError(t, err)

	assert.Equal(t, float64(46), got["bundle_id"])
	assert.Equal(t, "08031234567", got["phone_number"])
	assert.NotContains(t, got, "amount")
}

func TestPurchaseDeclinedByStatusField(t *testing.T) {
	// upstream answers 200 but flags the decline in the body
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "false",
			"message": "insufficient reseller balance",
		})
	}))
	defer srv.Close()

	client := orders.NewResellerClient(srv.URL, "test-token")
	err := client.BuyAirtime(context.Background(), "08031234567", 500, 1)
	assert.ErrorIs(t, err, orders.ErrPurchaseFailed)
}

func TestPurchaseDeclinedByHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{"message": "upstream down"})
	}))
	defer srv.Close()

	client := orders.NewResellerClient(srv.URL, "test-token")
	err := client.BuyData(context.Background(), "08031234567", 46)
	assert.ErrorIs(t, err, orders.ErrPurchaseFailed)
}

func TestPurchaseUnreachableUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := orders.NewResellerClient(srv.URL, "test-token")
	err := client.BuyAirtime(context.Background(), "08031234567", 500, 1)
	assert.ErrorIs(t, err, orders.ErrPurchaseFailed)
}
