// Package binanceclient adapts the Binance futures API to the exchange ports.
package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"antigravity/internal/domain"
	"antigravity/internal/ports"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// Client implements ports.ExchangeClient using the go-binance library.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance client adapter. Empty API keys are allowed: the
// client then serves public market-data endpoints only, and order placement
// fails with an authentication error (which the executor turns into a
// simulated fill).
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "Binance API keys not set; only public endpoints will work")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{
		"baseURL": client.BaseURL,
		"testnet": cfg.UseTestnet,
	})

	return &Client{futuresClient: client, logger: cfg.Logger}, nil
}

// handleError translates Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code

		var mappedErr error
		switch apiErr.Code {
		case -1003:
			mappedErr = ports.ErrRateLimited
		case -1022, -2014, -2015:
			mappedErr = ports.ErrAuthenticationFailed
		case -2010, -2022:
			mappedErr = ports.ErrOrderPlacementFailed
		case -2019, -3005, -3041:
			mappedErr = ports.ErrInsufficientFunds
		case -4003, -4014:
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, operation+" failed with API error", err, fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "no such host"),
		strings.Contains(err.Error(), "use of closed network connection"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrExchangeUnavailable, err)
	}
	c.logger.Error(ctx, operation+" failed", err, fields)
	return finalErr
}

// Ping checks connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, "Ping")
	}
	return nil
}

// GetTickerPrice retrieves the last ticker price for a given symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := c.futuresClient.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, "GetTickerPrice")
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("GetTickerPrice: %w: no price returned for %s", ports.ErrNotFound, symbol)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("GetTickerPrice: failed to parse price %q: %w", prices[0].Price, err)
	}
	return price, nil
}

// GetKlines retrieves the most recent klines for the symbol, oldest first.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	raw, err := c.futuresClient.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, "GetKlines")
	}

	klines := make([]*domain.Kline, 0, len(raw))
	for _, bk := range raw {
		k, err := translateKline(bk, symbol, interval)
		if err != nil {
			c.logger.Warn(ctx, "Skipping unparseable kline", map[string]interface{}{"error": err.Error()})
			continue
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// GetAccountBalance retrieves the available balance for an asset (e.g., "USDT").
func (c *Client) GetAccountBalance(ctx context.Context, asset string) (float64, error) {
	balances, err := c.futuresClient.NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, "GetAccountBalance")
	}
	for _, b := range balances {
		if b.Asset == asset {
			avail, err := strconv.ParseFloat(b.AvailableBalance, 64)
			if err != nil {
				return 0, fmt.Errorf("GetAccountBalance: failed to parse balance %q: %w", b.AvailableBalance, err)
			}
			return avail, nil
		}
	}
	return 0, fmt.Errorf("GetAccountBalance: %w: asset %s", ports.ErrNotFound, asset)
}

// SubmitMarketOrder places a market order and returns the average fill price
// reported by the exchange (0 when the venue reports none yet).
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (float64, error) {
	order, err := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(formatQuantity(quantity)).
		Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, "SubmitMarketOrder")
	}

	fill, err := strconv.ParseFloat(order.AvgPrice, 64)
	if err != nil {
		c.logger.Warn(ctx, "Order filled but AvgPrice is unparseable", map[string]interface{}{
			"orderID":  order.OrderID,
			"avgPrice": order.AvgPrice,
		})
		return 0, nil
	}
	c.logger.Info(ctx, "Market order submitted", map[string]interface{}{
		"orderID":  order.OrderID,
		"symbol":   symbol,
		"side":     side,
		"quantity": quantity,
		"avgPrice": fill,
	})
	return fill, nil
}

// formatQuantity renders a quantity with the precision the futures API
// accepts, trimming float artifacts like 0.010000000000000002.
func formatQuantity(quantity float64) string {
	return decimal.NewFromFloat(quantity).Round(3).String()
}

func translateKline(bk *futures.Kline, symbol, interval string) (*domain.Kline, error) {
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid open %q: %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid high %q: %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid low %q: %w", bk.Low, err)
	}
	closePrice, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid close %q: %w", bk.Close, err)
	}
	volume, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid volume %q: %w", bk.Volume, err)
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Symbol:    symbol,
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}

// Compile-time interface check.
var _ ports.ExchangeClient = (*Client)(nil)
