package bybit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/launchwatch/core"
	"github.com/raykavin/launchwatch/exchange"
	logzerolog "github.com/raykavin/launchwatch/logger/zerolog"
)

func testLogger() core.Logger {
	l := zerolog.Nop()
	return logzerolog.NewAdapter(&l)
}

func newTestExchange(t *testing.T, handler http.Handler) *Exchange {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewExchange(Config{
		APIKey:        "test-key",
		APISecret:     "test-secret",
		CustomBaseURL: server.URL,
	}, testLogger())
}

func TestExchange_Sign(t *testing.T) {
	e := NewExchange(Config{APIKey: "key", APISecret: "secret"}, testLogger())

	// HMAC-SHA256 over timestamp + key + recvWindow + payload
	got := e.sign("1700000000000", "category=linear")
	again := e.sign("1700000000000", "category=linear")

	require.Len(t, got, 64)
	assert.Equal(t, got, again)
	assert.NotEqual(t, got, e.sign("1700000000001", "category=linear"))
}

func TestExchange_LastQuote(t *testing.T) {
	e := newTestExchange(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/tickers", r.URL.Path)
		assert.Equal(t, "linear", r.URL.Query().Get("category"))
		assert.Equal(t, "MNTUSDT", r.URL.Query().Get("symbol"))

		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"MNTUSDT","lastPrice":"0.6412"}]}}`))
	}))

	quote, err := e.LastQuote(context.Background(), "MNTUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 0.6412, quote, 1e-9)
}

func TestExchange_AssetsInfoCached(t *testing.T) {
	calls := 0
	e := newTestExchange(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[{
			"symbol":"MNTUSDT","baseCoin":"MNT","quoteCoin":"USDT",
			"lotSizeFilter":{"minOrderQty":"1","maxOrderQty":"100000","qtyStep":"1"},
			"priceFilter":{"tickSize":"0.0001"}}]}}`))
	}))

	info, err := e.AssetsInfo(context.Background(), "MNTUSDT")
	require.NoError(t, err)
	assert.Equal(t, "MNT", info.BaseAsset)
	assert.Equal(t, "USDT", info.QuoteAsset)
	assert.Equal(t, 1.0, info.MinQuantity)
	assert.Equal(t, 0.0001, info.TickSize)

	_, err = e.AssetsInfo(context.Background(), "MNTUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExchange_CreateOrderMarket(t *testing.T) {
	var orderParams map[string]string

	e := newTestExchange(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/market/instruments-info":
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[{
				"symbol":"MNTUSDT","baseCoin":"MNT","quoteCoin":"USDT",
				"lotSizeFilter":{"minOrderQty":"1","maxOrderQty":"100000","qtyStep":"1"},
				"priceFilter":{"tickSize":"0.0001"}}]}}`))
		case "/v5/order/create":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"))
			assert.Equal(t, "test-key", r.Header.Get("X-BAPI-API-KEY"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&orderParams))
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"orderId":"abc-123"}}`))
		case "/v5/order/realtime":
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[{
				"orderId":"abc-123","symbol":"MNTUSDT","side":"Buy","orderType":"Market",
				"orderStatus":"Filled","avgPrice":"0.64","qty":"10","cumExecQty":"10",
				"stopLoss":"0.6272","takeProfit":"0.6656"}]}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	stop, take := 0.6272, 0.6656
	order, err := e.CreateOrderMarket(context.Background(), core.SideTypeBuy, "MNTUSDT", 10.4, &stop, &take)
	require.NoError(t, err)

	// quantity snapped to the 1.0 lot step
	assert.Equal(t, "10", orderParams["qty"])
	assert.Equal(t, "Buy", orderParams["side"])
	assert.Equal(t, "Market", orderParams["orderType"])
	assert.Equal(t, "0.6272", orderParams["stopLoss"])
	assert.Equal(t, "0.6656", orderParams["takeProfit"])
	assert.Equal(t, "0", orderParams["positionIdx"])

	assert.Equal(t, "abc-123", order.ExchangeID)
	assert.True(t, order.IsFilled())
	assert.InDelta(t, 0.64, order.Price, 1e-9)
}

func TestExchange_SetLeverageAlreadySet(t *testing.T) {
	e := newTestExchange(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":110043,"retMsg":"leverage not modified","result":{}}`))
	}))

	require.NoError(t, e.SetLeverage(context.Background(), "MNTUSDT", 5))
}

func TestExchange_CreateOrderMarketInsufficientBalance(t *testing.T) {
	e := newTestExchange(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/market/instruments-info":
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[{
				"symbol":"MNTUSDT","baseCoin":"MNT","quoteCoin":"USDT",
				"lotSizeFilter":{"minOrderQty":"1","maxOrderQty":"100000","qtyStep":"1"},
				"priceFilter":{"tickSize":"0.0001"}}]}}`))
		case "/v5/order/create":
			_, _ = w.Write([]byte(`{"retCode":110007,"retMsg":"ab not enough for new order","result":{}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	_, err := e.CreateOrderMarket(context.Background(), core.SideTypeBuy, "MNTUSDT", 10, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrInsufficientFunds)

	var orderErr *exchange.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, "MNTUSDT", orderErr.Pair)

	// not worth resubmitting
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, apiErr.Temporary())
}

func TestExchange_AssetsInfoUnknownSymbol(t *testing.T) {
	e := newTestExchange(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[]}}`))
	}))

	_, err := e.AssetsInfo(context.Background(), "NOPEUSDT")
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrInvalidAsset)
}

func TestExchange_APIError(t *testing.T) {
	e := newTestExchange(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":10006,"retMsg":"too many requests","result":{}}`))
	}))

	_, err := e.LastQuote(context.Background(), "MNTUSDT")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 10006, apiErr.Code)
	assert.True(t, apiErr.Temporary())
}
