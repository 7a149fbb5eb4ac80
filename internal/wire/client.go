// Package wire owns the single streaming connection to the venue: login,
// market-data and execution-report subscription, order entry, and the
// reconnect-with-backoff loop that keeps the agent attached to the feed.
package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fransolofran/mesita-go/internal/auth"
	"github.com/fransolofran/mesita-go/internal/core"
	"github.com/fransolofran/mesita-go/internal/erbus"
	"github.com/fransolofran/mesita-go/internal/quotecache"
)

// Config configures a Client.
type Config struct {
	WSURL           string
	RestURL         string
	Account         string
	ProprietaryTag  string
	Symbols         []string
	ReconnectMinWait time.Duration
	ReconnectMaxWait time.Duration
	PingInterval     time.Duration
	PingTimeout      time.Duration
}

// Client owns the single WebSocket connection to the venue.
type Client struct {
	cfg    Config
	tokens *auth.TokenSource
	quotes *quotecache.Cache
	bus    *erbus.Bus
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *websocket.Conn
	symbols []string

	writeMu sync.Mutex
}

// NewClient creates a Client. tokens supplies the bearer token used both to
// obtain the WebSocket auth query param and to re-authenticate on reconnect.
func NewClient(cfg Config, tokens *auth.TokenSource, quotes *quotecache.Cache, bus *erbus.Bus, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectMinWait <= 0 {
		cfg.ReconnectMinWait = time.Second
	}
	if cfg.ReconnectMaxWait <= 0 {
		cfg.ReconnectMaxWait = 30 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 10 * time.Second
	}
	return &Client{
		cfg:     cfg,
		tokens:  tokens,
		quotes:  quotes,
		bus:     bus,
		logger:  logger,
		symbols: append([]string(nil), cfg.Symbols...),
	}
}

// Run connects and reads until ctx is canceled, reconnecting with
// exponential backoff (reset to the minimum on every successful connect) on
// any disconnect.
func (c *Client) Run(ctx context.Context) error {
	wait := c.cfg.ReconnectMinWait

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if c.tokens.Token() == "" {
			if _, err := c.tokens.Login(ctx); err != nil {
				c.logger.Warn("wire login failed", "error", err)
				if !sleepOrDone(ctx, wait) {
					return ctx.Err()
				}
				wait = nextBackoff(wait, c.cfg.ReconnectMaxWait)
				continue
			}
		}

		if err := c.connectAndConsume(ctx); err != nil {
			c.logger.Warn("wire connection lost", "error", err)
			if !sleepOrDone(ctx, wait) {
				return ctx.Err()
			}
			wait = nextBackoff(wait, c.cfg.ReconnectMaxWait)
			// Best-effort re-login before the next attempt; a failure is
			// logged and the loop stays in backoff.
			if _, err := c.tokens.Login(ctx); err != nil {
				c.logger.Warn("wire re-login failed", "error", err)
			}
			continue
		}

		wait = c.cfg.ReconnectMinWait
	}
}

func nextBackoff(wait, max time.Duration) time.Duration {
	wait *= 2
	if wait > max {
		wait = max
	}
	return wait
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Client) connectAndConsume(ctx context.Context) error {
	header := http.Header{}
	query := url.Values{}
	query.Set(auth.AuthHeader, c.tokens.Token())
	dialURL := c.cfg.WSURL + "?" + query.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, dialURL, header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	symbols := append([]string(nil), c.symbols...)
	c.mu.Unlock()

	c.logger.Info("wire connected", "url", c.cfg.WSURL, "symbols", len(symbols))

	if len(symbols) > 0 {
		if err := c.sendLocked(subscribeMarketData{Type: "smd", Level: 1, Symbols: symbols, Entries: []string{"BI", "OF"}}); err != nil {
			conn.Close()
			return fmt.Errorf("subscribe market data: %w", err)
		}
	}
	if err := c.sendLocked(subscribeReports{Type: "spr", Accounts: []string{c.cfg.Account}, All: true}); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe reports: %w", err)
	}

	conn.SetPingHandler(func(data string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	errCh := make(chan error, 1)
	go c.readLoop(conn, errCh)

	select {
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case err := <-errCh:
		conn.Close()
		return err
	}
}

func (c *Client) readLoop(conn *websocket.Conn, errCh chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			errCh <- err
			return
		}
		c.dispatch(data, receivedAt)
	}
}

func (c *Client) dispatch(data []byte, receivedAt time.Time) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logger.Debug("wire decode error", "error", core.NewDecodeError(data, err))
		return
	}

	switch envelope.Type {
	case "md":
		c.handleMD(data, receivedAt)
	case "er":
		c.handleER(data, receivedAt)
	}
}

func (c *Client) handleMD(data []byte, receivedAt time.Time) {
	var msg mdMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Debug("wire md decode error", "error", err)
		return
	}

	bid, bidQty := firstLevel(msg.Entries["BI"])
	ask, askQty := firstLevel(msg.Entries["OF"])

	c.quotes.Update(core.TopOfBook{
		Symbol:    msg.Symbol,
		Timestamp: receivedAt,
		Bid:       bid,
		Ask:       ask,
		BidQty:    bidQty,
		AskQty:    askQty,
	})
}

func firstLevel(levels []priceLevel) (price, size float64) {
	if len(levels) == 0 {
		return 0, 0
	}
	return levels[0].Price, levels[0].Size
}

func (c *Client) handleER(data []byte, receivedAt time.Time) {
	var msg erMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Debug("wire er decode error", "error", err)
		return
	}

	price := msg.LastPx
	if price == 0 {
		price = msg.Price
	}
	qty := msg.LastQty
	if qty == 0 {
		qty = msg.Quantity
	}

	report := core.ExecReport{
		Timestamp:     receivedAt,
		Symbol:        msg.Product.Symbol,
		Side:          core.Side(msg.Side),
		Price:         price,
		Qty:           qty,
		Status:        core.OrderStatus(msg.Status),
		OrderID:       msg.OrderID,
		ClientOrderID: msg.ClOrdID,
	}
	c.bus.Publish(report)
}

// SubscribedSymbols returns the currently subscribed symbol list.
func (c *Client) SubscribedSymbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.symbols...)
}

// UpdateSymbols changes the subscribed symbol set and evicts stale quotes,
// then resubscribes if currently connected.
func (c *Client) UpdateSymbols(ctx context.Context, symbols []string) error {
	c.mu.Lock()
	c.symbols = append([]string(nil), symbols...)
	keep := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		keep[s] = struct{}{}
	}
	c.mu.Unlock()

	c.quotes.Evict(keep)

	return c.sendLocked(subscribeMarketData{Type: "smd", Level: 1, Symbols: symbols, Entries: []string{"BI", "OF"}})
}

// SendLimit submits a limit order and returns the generated client order id,
// which callers match against subsequent execution reports. iceberg and
// displayQty are optional: displayQty only takes effect when iceberg is
// true and positive, matching the venue's own gating of the field.
func (c *Client) SendLimit(ctx context.Context, symbol string, side core.Side, qty int64, price float64, tif core.TimeInForce, iceberg bool, displayQty int64) (string, error) {
	clientOrderID := uuid.NewString()
	order := newOrder{
		Type:        "no",
		Product:     product{MarketID: "ROFX", Symbol: symbol},
		Price:       price,
		Quantity:    float64(qty),
		Side:        string(side),
		Account:     c.cfg.Account,
		TimeInForce: string(tif),
		Iceberg:     iceberg,
		Proprietary: c.cfg.ProprietaryTag,
		ClOrdID:     clientOrderID,
	}
	if iceberg && displayQty > 0 {
		order.DisplayQuantity = float64(displayQty)
	}
	if err := c.sendLocked(order); err != nil {
		return "", err
	}
	return clientOrderID, nil
}

// SendMarket submits a market order and returns the generated client order id.
func (c *Client) SendMarket(ctx context.Context, symbol string, side core.Side, qty int64, tif core.TimeInForce) (string, error) {
	clientOrderID := uuid.NewString()
	order := newOrder{
		Type:        "no",
		Product:     product{MarketID: "ROFX", Symbol: symbol},
		Quantity:    float64(qty),
		Side:        string(side),
		Account:     c.cfg.Account,
		OrdType:     "MARKET",
		TimeInForce: string(tif),
		Proprietary: c.cfg.ProprietaryTag,
		ClOrdID:     clientOrderID,
	}
	if err := c.sendLocked(order); err != nil {
		return "", err
	}
	return clientOrderID, nil
}

func (c *Client) sendLocked(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return core.NewTransientNetworkError("wire.send", fmt.Errorf("not connected"))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}
