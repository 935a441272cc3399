package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RESTClient is the signed REST surface of the venue: market config,
// balance, positions, order lifecycle, and the cancel-all sweep. Every
// request passes through the rate limiter before hitting the wire.
type RESTClient struct {
	BaseURL      string
	HTTPClient   *http.Client
	RecvWindowMs int
	Limiter      RateLimiter
	Oracle       SigningOracle
}

func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func NewRESTClient(baseURL string, oracle SigningOracle, limiter RateLimiter) *RESTClient {
	return &RESTClient{
		BaseURL:      baseURL,
		HTTPClient:   NewDefaultHTTPClient(),
		RecvWindowMs: 5000,
		Limiter:      limiter,
		Oracle:       oracle,
	}
}

// GetBestBidAsk backs BackupPoller's REST fallback.
func (c *RESTClient) GetBestBidAsk(ctx context.Context, market string) (BestBidAsk, error) {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	url := fmt.Sprintf("%s/orderbook/%s", c.BaseURL, market)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return BestBidAsk{}, Wrap(KindInvariant, "build orderbook request", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return BestBidAsk{}, Wrap(KindTransient, "orderbook request failed", err)
	}
	defer resp.Body.Close()
	if err := statusToError(resp); err != nil {
		return BestBidAsk{}, err
	}
	var out BestBidAsk
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return BestBidAsk{}, Wrap(KindProtocol, "decode orderbook response", err)
	}
	out.Ts = time.Now()
	return out, nil
}

// GetMarketConfig backs startup's tick_size/size_increment/min_notional
// fetch.
func (c *RESTClient) GetMarketConfig(ctx context.Context, market string) (MarketConfig, error) {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	url := fmt.Sprintf("%s/markets/%s/config", c.BaseURL, market)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return MarketConfig{}, Wrap(KindInvariant, "build market config request", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return MarketConfig{}, Wrap(KindTransient, "market config request failed", err)
	}
	defer resp.Body.Close()
	if err := statusToError(resp); err != nil {
		return MarketConfig{}, err
	}
	var out MarketConfig
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return MarketConfig{}, Wrap(KindProtocol, "decode market config response", err)
	}
	return out, nil
}

// GetPositions backs startup/periodic inventory reconciliation.
func (c *RESTClient) GetPositions(ctx context.Context) ([]Position, error) {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	url := c.BaseURL + "/positions"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Wrap(KindInvariant, "build positions request", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, Wrap(KindTransient, "positions request failed", err)
	}
	defer resp.Body.Close()
	if err := statusToError(resp); err != nil {
		return nil, err
	}
	var out []Position
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, Wrap(KindProtocol, "decode positions response", err)
	}
	return out, nil
}

// GetBalance backs the P&L anchor: equity in USD per GET /balance.
func (c *RESTClient) GetBalance(ctx context.Context) (Balance, error) {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/balance", nil)
	if err != nil {
		return Balance{}, Wrap(KindInvariant, "build balance request", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Balance{}, Wrap(KindTransient, "balance request failed", err)
	}
	defer resp.Body.Close()
	if err := statusToError(resp); err != nil {
		return Balance{}, err
	}
	var out Balance
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Balance{}, Wrap(KindProtocol, "decode balance response", err)
	}
	return out, nil
}

// PlaceOrder signs and submits fields as POST /orders.
func (c *RESTClient) PlaceOrder(ctx context.Context, fields OrderFields) (PlaceResult, error) {
	if c.Oracle == nil {
		return PlaceResult{}, Wrap(KindFatal, "no signing oracle configured", nil)
	}
	sig, err := c.Oracle.Sign(ctx, fields)
	if err != nil {
		return PlaceResult{}, err
	}

	body := map[string]interface{}{
		"market":           fields.Market,
		"side":             fields.Side,
		"type":             fields.Type,
		"price":            fields.Price,
		"qty":              fields.Qty,
		"time_in_force":    fields.TimeInForce,
		"reduce_only":      fields.ReduceOnly,
		"nonce":            fields.Nonce,
		"client_order_id":  fields.ClientOrderID,
		"signature":        map[string]string{"r": sig.R, "s": sig.S},
		"stark_public_key": fields.StarkPublicKey,
		"vault_id":         fields.VaultID,
		"fee":              map[string]float64{"rate": fields.FeeRate},
		"expiry_sec":       fields.ExpirySec,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return PlaceResult{}, Wrap(KindInvariant, "marshal order body", err)
	}

	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return PlaceResult{}, Wrap(KindInvariant, "build place order request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return PlaceResult{}, Wrap(KindTransient, "place order request failed", err)
	}
	defer resp.Body.Close()
	if err := statusToError(resp); err != nil {
		return PlaceResult{}, err
	}

	var out struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PlaceResult{}, Wrap(KindProtocol, "decode place order response", err)
	}
	return PlaceResult{OrderID: out.OrderID, Ts: time.Now()}, nil
}

// GetOrderByClientID backs OrderManager's idempotence/recovery poll: on a
// network timeout mid-place, it asks the venue whether the client-order-id
// was actually accepted before deciding to retry. Returns KindInvariant if
// the venue has no record of the id yet (caller should keep polling).
func (c *RESTClient) GetOrderByClientID(ctx context.Context, clientOrderID string) (PlaceResult, error) {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	url := fmt.Sprintf("%s/orders?client_order_id=%s", c.BaseURL, clientOrderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PlaceResult{}, Wrap(KindInvariant, "build order lookup request", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return PlaceResult{}, Wrap(KindTransient, "order lookup request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return PlaceResult{}, Wrap(KindInvariant, "order not found yet", nil)
	}
	if err := statusToError(resp); err != nil {
		return PlaceResult{}, err
	}
	var out struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PlaceResult{}, Wrap(KindProtocol, "decode order lookup response", err)
	}
	return PlaceResult{OrderID: out.OrderID, Ts: time.Now()}, nil
}

// GetOpenOrders backs ordermgr's periodic Reconciler: the independent pass
// that diffs local LiveOrders against venue truth once every reconciler
// interval.
func (c *RESTClient) GetOpenOrders(ctx context.Context, market string) ([]OpenOrder, error) {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	url := fmt.Sprintf("%s/orders?market=%s&status=open", c.BaseURL, market)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Wrap(KindInvariant, "build open orders request", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, Wrap(KindTransient, "open orders request failed", err)
	}
	defer resp.Body.Close()
	if err := statusToError(resp); err != nil {
		return nil, err
	}
	var out []OpenOrder
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, Wrap(KindProtocol, "decode open orders response", err)
	}
	return out, nil
}

// CancelOrder issues DELETE /orders/{id}.
func (c *RESTClient) CancelOrder(ctx context.Context, orderID string) error {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	url := fmt.Sprintf("%s/orders/%s", c.BaseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return Wrap(KindInvariant, "build cancel request", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Wrap(KindTransient, "cancel request failed", err)
	}
	defer resp.Body.Close()
	return statusToError(resp)
}

// SweepCancelAll cancels every open order matching the client-order-id
// prefix the Supervisor uses to disambiguate this process's own orders on
// restart/shutdown.
func (c *RESTClient) SweepCancelAll(ctx context.Context, market, clientOrderIDPrefix string) error {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	url := fmt.Sprintf("%s/orders?market=%s&prefix=%s", c.BaseURL, market, clientOrderIDPrefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return Wrap(KindInvariant, "build sweep request", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Wrap(KindTransient, "sweep request failed", err)
	}
	defer resp.Body.Close()
	return statusToError(resp)
}

func statusToError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Wrap(KindAuth, fmt.Sprintf("http %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return Wrap(KindRateLimited, "rate limited", nil)
	case resp.StatusCode >= 500:
		return Wrap(KindTransient, fmt.Sprintf("http %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return Wrap(KindInvariant, fmt.Sprintf("http %d", resp.StatusCode), nil)
	default:
		return nil
	}
}
