package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gridengine/internal/simulator"
	"gridengine/internal/tradingerr"
	"gridengine/internal/tradingtypes"
)

// LiveExchange implements Exchange against a real Binance-style
// REST/WebSocket API: HMAC request signing, server time sync and
// generic doRequest plumbing, with margin/leverage/position-mode
// endpoints deliberately left out since those concerns are out of
// scope here.
type LiveExchange struct {
	apiKey     string
	secretKey  string
	baseURL    string
	wsBaseURL  string
	httpClient *http.Client
	logger     *zap.Logger

	mu         sync.Mutex
	wsConn     *websocket.Conn
	timeOffset int64
}

// NewLiveExchange constructs a LiveExchange and synchronizes its clock
// against the server, since Binance rejects signed requests whose
// timestamp has drifted.
func NewLiveExchange(apiKey, secretKey, baseURL, wsBaseURL string, logger *zap.Logger) (*LiveExchange, error) {
	e := &LiveExchange{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		wsBaseURL:  wsBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
	if err := e.syncTime(); err != nil {
		return nil, fmt.Errorf("sync server time: %w", err)
	}
	return e, nil
}

func (e *LiveExchange) syncTime() error {
	serverTime, err := e.getServerTime()
	if err != nil {
		return err
	}
	e.timeOffset = serverTime - time.Now().UnixMilli()
	e.logger.Info("synced exchange clock", zap.Int64("offset_ms", e.timeOffset))
	return nil
}

func (e *LiveExchange) getServerTime() (int64, error) {
	data, err := e.doRequest("GET", "/fapi/v1/time", nil, false)
	if err != nil {
		return 0, err
	}
	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, err
	}
	return resp.ServerTime, nil
}

func (e *LiveExchange) sign(data string) string {
	h := hmac.New(sha256.New, []byte(e.secretKey))
	h.Write([]byte(data))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// wireError mirrors a Binance error response's shape.
type wireError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (w *wireError) Error() string { return fmt.Sprintf("exchange error %d: %s", w.Code, w.Msg) }

func (e *LiveExchange) doRequest(method, endpoint string, params url.Values, signed bool) ([]byte, error) {
	fullURL := e.baseURL + endpoint
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}

	var encoded string
	if signed {
		query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli()+e.timeOffset, 10))
		payload := query.Encode()
		encoded = payload + "&signature=" + e.sign(payload)
	} else {
		encoded = query.Encode()
	}

	var req *http.Request
	var err error
	if method == http.MethodGet {
		target := fullURL
		if encoded != "" {
			target = fullURL + "?" + encoded
		}
		req, err = http.NewRequest(method, target, nil)
	} else {
		req, err = http.NewRequest(method, fullURL, strings.NewReader(encoded))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("X-MBX-APIKEY", e.apiKey)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, tradingerr.Wrap(tradingerr.ExchangeRetriable, "exchange request failed", err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, tradingerr.Wrap(tradingerr.ExchangeRetriable, "read exchange response", err)
	}

	var wErr wireError
	if json.Unmarshal(body, &wErr) == nil && wErr.Code != 0 {
		if resp.StatusCode >= 500 {
			return body, tradingerr.Wrap(tradingerr.ExchangeRetriable, wErr.Error(), &wErr)
		}
		return body, tradingerr.Wrap(tradingerr.ExchangeFatal, wErr.Error(), &wErr)
	}
	if resp.StatusCode != http.StatusOK {
		return body, tradingerr.New(tradingerr.ExchangeFatal, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, body))
	}
	return body, nil
}

func (e *LiveExchange) GetPrice(pair string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", pair)
	data, err := e.doRequest("GET", "/fapi/v1/ticker/price", params, false)
	if err != nil {
		return 0, err
	}
	var ticker struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(data, &ticker); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(ticker.Price, 64)
}

func (e *LiveExchange) GetOrderBookSnapshot(pair string) (tradingtypes.OrderBookSnapshot, error) {
	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("limit", "50")
	data, err := e.doRequest("GET", "/fapi/v1/depth", params, false)
	if err != nil {
		return tradingtypes.OrderBookSnapshot{}, err
	}

	var depth struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	if err := json.Unmarshal(data, &depth); err != nil {
		return tradingtypes.OrderBookSnapshot{}, err
	}

	snapshot := tradingtypes.OrderBookSnapshot{Pair: pair, Timestamp: time.Now()}
	for _, b := range depth.Bids {
		price, _ := strconv.ParseFloat(b[0], 64)
		size, _ := strconv.ParseFloat(b[1], 64)
		snapshot.Bids = append(snapshot.Bids, tradingtypes.OrderBookLevel{Price: price, Size: size})
	}
	for _, a := range depth.Asks {
		price, _ := strconv.ParseFloat(a[0], 64)
		size, _ := strconv.ParseFloat(a[1], 64)
		snapshot.Asks = append(snapshot.Asks, tradingtypes.OrderBookLevel{Price: price, Size: size})
	}
	return snapshot, nil
}

// ExecuteOrder places a market order and synthesizes a Fill from the
// exchange's immediate order response. The response does not carry an
// exact commission figure (that requires a separate user-trades
// lookup), so the fee is estimated at the taker rate against filled
// notional, matching the simulator's fee convention.
func (e *LiveExchange) ExecuteOrder(order tradingtypes.Order) (tradingtypes.Fill, error) {
	params := url.Values{}
	params.Set("symbol", order.Pair)
	params.Set("side", sideToWire(order.Side))
	params.Set("type", "MARKET")
	params.Set("quantity", fmt.Sprintf("%f", order.Quantity))
	if order.ID != "" {
		params.Set("newClientOrderId", order.ID)
	}

	data, err := e.doRequest("POST", "/fapi/v1/order", params, true)
	if err != nil {
		return tradingtypes.Fill{}, err
	}

	var resp struct {
		AvgPrice     string `json:"avgPrice"`
		ExecutedQty  string `json:"executedQty"`
		OrigQty      string `json:"origQty"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return tradingtypes.Fill{}, fmt.Errorf("parse order response: %w", err)
	}

	avgPrice, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	executed, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	origQty, _ := strconv.ParseFloat(resp.OrigQty, 64)

	return tradingtypes.Fill{
		OrderID:           order.ID,
		FilledQuantity:    executed,
		AveragePrice:      avgPrice,
		Fee:               simulator.TakerFeeRate * avgPrice * executed,
		RemainingQuantity: origQty - executed,
		IsMaker:           false,
	}, nil
}

func sideToWire(side tradingtypes.Side) string {
	if side == tradingtypes.Buy {
		return "BUY"
	}
	return "SELL"
}

func (e *LiveExchange) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.wsConn != nil {
		return e.wsConn.Close()
	}
	return nil
}

// BookTickerFeed streams best-bid/ask updates over a WebSocket
// connection and reports their midpoint as a PriceSource, the live
// counterpart to exchange.PriceSeriesFeed.
type BookTickerFeed struct {
	pair   string
	conn   *websocket.Conn
	prices chan tickerMsg
	errs   chan error
}

type tickerMsg struct {
	price float64
	ts    time.Time
}

// NewBookTickerFeed dials wsBaseURL's book ticker stream for pair.
func NewBookTickerFeed(wsBaseURL, pair string) (*BookTickerFeed, error) {
	streamURL := fmt.Sprintf("%s/ws/%s@bookTicker", wsBaseURL, strings.ToLower(pair))
	conn, _, err := websocket.DefaultDialer.Dial(streamURL, nil)
	if err != nil {
		return nil, tradingerr.Wrap(tradingerr.FeedError, "dial book ticker stream", err)
	}

	f := &BookTickerFeed{pair: pair, conn: conn, prices: make(chan tickerMsg, 64), errs: make(chan error, 1)}
	go f.readLoop()
	return f, nil
}

func (f *BookTickerFeed) readLoop() {
	for {
		var msg struct {
			BidPrice string `json:"b"`
			AskPrice string `json:"a"`
		}
		if err := f.conn.ReadJSON(&msg); err != nil {
			f.errs <- tradingerr.Wrap(tradingerr.FeedError, "book ticker read failed", err)
			return
		}
		bid, _ := strconv.ParseFloat(msg.BidPrice, 64)
		ask, _ := strconv.ParseFloat(msg.AskPrice, 64)
		if bid == 0 || ask == 0 {
			continue
		}
		f.prices <- tickerMsg{price: (bid + ask) / 2, ts: time.Now()}
	}
}

func (f *BookTickerFeed) NextPrice(ctx context.Context) (float64, time.Time, error) {
	select {
	case m := <-f.prices:
		return m.price, m.ts, nil
	case err := <-f.errs:
		return 0, time.Time{}, err
	case <-ctx.Done():
		return 0, time.Time{}, ctx.Err()
	}
}

func (f *BookTickerFeed) Close() error {
	return f.conn.Close()
}
