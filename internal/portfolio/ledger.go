// Package portfolio owns positions, cash and the trade ledger for the paper
// account. Trades on one symbol are serialized; trades on different symbols
// proceed in parallel, with the aggregate cash/P&L mutation as the final,
// globally serialized step.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/marketdata"
	"paper-trader-go/internal/models"
	"paper-trader-go/internal/stream"
)

// PriceSource supplies the market-order fill price. Satisfied by the
// marketdata cache.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (marketdata.PricePoint, error)
}

// Publisher receives trade confirmation events. Satisfied by the stream hub;
// nil disables publishing.
type Publisher interface {
	Publish(event stream.Event)
}

// TradeRequest describes one execution to apply against the ledger.
type TradeRequest struct {
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"`
	Quantity  float64 `json:"quantity"`
	OrderType string  `json:"order_type"`
	Auto      bool    `json:"-"`
}

type position struct {
	quantity decimal.Decimal
	avgCost  decimal.Decimal
}

// Ledger is the paper-trading account.
type Ledger struct {
	logger     *zap.Logger
	db         *gorm.DB
	prices     PriceSource
	publisher  Publisher
	allowShort bool

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex // per-symbol execution locks

	posMu     sync.RWMutex
	positions map[string]position

	// aggMu guards cash and realized P&L and serializes the commit of every
	// trade. Acquired after the per-symbol lock, never before.
	aggMu    sync.Mutex
	cash     decimal.Decimal
	realized decimal.Decimal
}

// NewLedger loads the persisted portfolio state and positions.
func NewLedger(cfg *config.Trading, db *gorm.DB, prices PriceSource, publisher Publisher, logger *zap.Logger) (*Ledger, error) {
	l := &Ledger{
		logger:     logger.Named("ledger"),
		db:         db,
		prices:     prices,
		publisher:  publisher,
		allowShort: cfg.AllowShort,
		locks:      make(map[string]*sync.Mutex),
		positions:  make(map[string]position),
	}

	var state models.PortfolioState
	if err := db.First(&state).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("could not load portfolio state: %w", err)
		}
		state = models.PortfolioState{Cash: cfg.StartingCash}
		if err := db.Create(&state).Error; err != nil {
			return nil, fmt.Errorf("could not seed portfolio state: %w", err)
		}
	}
	l.cash = decimal.NewFromFloat(state.Cash)
	l.realized = decimal.NewFromFloat(state.RealizedPnL)

	var persisted []models.Position
	if err := db.Find(&persisted).Error; err != nil {
		return nil, fmt.Errorf("could not load positions: %w", err)
	}
	for _, p := range persisted {
		l.positions[p.Symbol] = position{
			quantity: decimal.NewFromFloat(p.Quantity),
			avgCost:  decimal.NewFromFloat(p.AvgPrice),
		}
	}

	l.logger.Info("Ledger loaded",
		zap.Float64("cash", state.Cash),
		zap.Int("positions", len(persisted)),
	)
	return l, nil
}

func (l *Ledger) symbolLock(symbol string) *sync.Mutex {
	l.lockMu.Lock()
	defer l.lockMu.Unlock()
	mu, ok := l.locks[symbol]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[symbol] = mu
	}
	return mu
}

// ExecuteTrade fills a market order at the current cached price and applies
// it atomically: one appended Trade row, the updated Position row and the
// aggregate PortfolioState row commit together or not at all. Validation
// failures leave every piece of state untouched.
func (l *Ledger) ExecuteTrade(ctx context.Context, req TradeRequest) (models.Trade, error) {
	if req.Quantity <= 0 {
		return models.Trade{}, models.ErrInvalidQuantity
	}
	if req.Action != models.ActionBuy && req.Action != models.ActionSell {
		return models.Trade{}, fmt.Errorf("%w: %q", models.ErrUnknownAction, req.Action)
	}
	if req.OrderType == "" {
		req.OrderType = models.OrderTypeMarket
	}

	mu := l.symbolLock(req.Symbol)
	mu.Lock()
	defer mu.Unlock()

	point, err := l.prices.GetPrice(ctx, req.Symbol)
	if err != nil {
		return models.Trade{}, fmt.Errorf("could not price %s: %w", req.Symbol, err)
	}

	price := decimal.NewFromFloat(point.Price)
	qty := decimal.NewFromFloat(req.Quantity)

	l.posMu.RLock()
	pos, held := l.positions[req.Symbol]
	l.posMu.RUnlock()

	if req.Action == models.ActionSell && !l.allowShort {
		if !held || qty.GreaterThan(pos.quantity) {
			return models.Trade{}, fmt.Errorf("%w: %s holds %s, sell of %s rejected",
				models.ErrInsufficientPosition, req.Symbol, pos.quantity, qty)
		}
	}

	trade := models.Trade{
		ID:        uuid.NewString(),
		Symbol:    req.Symbol,
		Action:    req.Action,
		Quantity:  req.Quantity,
		Price:     point.Price,
		OrderType: req.OrderType,
		Status:    models.StatusExecuted,
		Auto:      req.Auto,
		Timestamp: time.Now(),
	}

	l.aggMu.Lock()

	var newCash, newRealized decimal.Decimal
	var newPos position
	removePos := false

	switch req.Action {
	case models.ActionBuy:
		cost := price.Mul(qty)
		if cost.GreaterThan(l.cash) {
			l.aggMu.Unlock()
			return models.Trade{}, fmt.Errorf("%w: need %s, have %s",
				models.ErrInsufficientFunds, cost, l.cash)
		}
		newCash = l.cash.Sub(cost)
		newRealized = l.realized

		if held {
			totalCost := pos.avgCost.Mul(pos.quantity).Add(cost)
			newPos.quantity = pos.quantity.Add(qty)
			newPos.avgCost = totalCost.Div(newPos.quantity)
		} else {
			newPos = position{quantity: qty, avgCost: price}
		}

	case models.ActionSell:
		proceeds := price.Mul(qty)
		pnl := price.Sub(pos.avgCost).Mul(qty)
		newCash = l.cash.Add(proceeds)
		newRealized = l.realized.Add(pnl)
		trade.PnL = pnl.InexactFloat64()

		newPos = position{quantity: pos.quantity.Sub(qty), avgCost: pos.avgCost}
		removePos = newPos.quantity.IsZero()
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&trade).Error; err != nil {
			return err
		}
		if removePos {
			if err := tx.Delete(&models.Position{}, "symbol = ?", req.Symbol).Error; err != nil {
				return err
			}
		} else {
			row := models.Position{
				Symbol:    req.Symbol,
				Quantity:  newPos.quantity.InexactFloat64(),
				AvgPrice:  newPos.avgCost.InexactFloat64(),
				UpdatedAt: trade.Timestamp,
			}
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.PortfolioState{}).
			Where("1 = 1").
			Updates(map[string]interface{}{
				"cash":         newCash.InexactFloat64(),
				"realized_pnl": newRealized.InexactFloat64(),
			}).Error
	})
	if err != nil {
		l.aggMu.Unlock()
		return models.Trade{}, fmt.Errorf("could not persist trade: %w", err)
	}

	l.posMu.Lock()
	if removePos {
		delete(l.positions, req.Symbol)
	} else {
		l.positions[req.Symbol] = newPos
	}
	l.posMu.Unlock()

	l.cash = newCash
	l.realized = newRealized
	l.aggMu.Unlock()

	l.logger.Info("Trade executed",
		zap.String("id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("action", trade.Action),
		zap.Float64("quantity", trade.Quantity),
		zap.Float64("price", trade.Price),
		zap.Bool("auto", trade.Auto),
	)

	if l.publisher != nil {
		l.publisher.Publish(stream.NewEvent(stream.EventTrade, trade.Symbol, trade))
	}
	return trade, nil
}

// ClosePosition sells the full held quantity of a symbol.
func (l *Ledger) ClosePosition(ctx context.Context, symbol string) (models.Trade, error) {
	l.posMu.RLock()
	pos, held := l.positions[symbol]
	l.posMu.RUnlock()

	if !held || !pos.quantity.IsPositive() {
		return models.Trade{}, fmt.Errorf("%w: no open position for %s", models.ErrInsufficientPosition, symbol)
	}

	return l.ExecuteTrade(ctx, TradeRequest{
		Symbol:    symbol,
		Action:    models.ActionSell,
		Quantity:  pos.quantity.InexactFloat64(),
		OrderType: models.OrderTypeMarket,
	})
}

// PositionView is one holding valued at the current price.
type PositionView struct {
	Symbol               string  `json:"symbol"`
	Quantity             float64 `json:"quantity"`
	AvgPrice             float64 `json:"avg_price"`
	CurrentPrice         float64 `json:"current_price"`
	MarketValue          float64 `json:"market_value"`
	CostBasis            float64 `json:"cost_basis"`
	UnrealizedPnL        float64 `json:"unrealized_pnl"`
	UnrealizedPnLPercent float64 `json:"unrealized_pnl_percent"`
}

// Positions values every open holding at the current cached price. A symbol
// whose price is unavailable is valued at cost.
func (l *Ledger) Positions(ctx context.Context) []PositionView {
	l.posMu.RLock()
	snapshot := make(map[string]position, len(l.positions))
	for symbol, pos := range l.positions {
		snapshot[symbol] = pos
	}
	l.posMu.RUnlock()

	views := make([]PositionView, 0, len(snapshot))
	for symbol, pos := range snapshot {
		current := pos.avgCost
		if point, err := l.prices.GetPrice(ctx, symbol); err == nil {
			current = decimal.NewFromFloat(point.Price)
		} else {
			l.logger.Warn("No current price for position, valuing at cost",
				zap.String("symbol", symbol), zap.Error(err))
		}

		marketValue := pos.quantity.Mul(current)
		costBasis := pos.quantity.Mul(pos.avgCost)
		unrealized := marketValue.Sub(costBasis)

		view := PositionView{
			Symbol:        symbol,
			Quantity:      pos.quantity.InexactFloat64(),
			AvgPrice:      pos.avgCost.InexactFloat64(),
			CurrentPrice:  current.InexactFloat64(),
			MarketValue:   marketValue.InexactFloat64(),
			CostBasis:     costBasis.InexactFloat64(),
			UnrealizedPnL: unrealized.InexactFloat64(),
		}
		if costBasis.IsPositive() {
			view.UnrealizedPnLPercent = unrealized.Div(costBasis).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		views = append(views, view)
	}
	return views
}

// Summary is the on-demand aggregate view of the portfolio. It is computed
// from current positions and trade history on every call, never cached.
type Summary struct {
	Cash            float64        `json:"cash"`
	TotalValue      float64        `json:"total_value"`
	TotalCost       float64        `json:"total_cost"`
	UnrealizedPnL   float64        `json:"unrealized_pnl"`
	RealizedPnL     float64        `json:"realized_pnl"`
	TotalPnL        float64        `json:"total_pnl"`
	TotalTrades     int64          `json:"total_trades"`
	WinningTrades   int64          `json:"winning_trades"`
	WinRate         float64        `json:"win_rate"`
	PositionsCount  int            `json:"positions_count"`
	Positions       []PositionView `json:"positions"`
}

// GetSummary computes the portfolio summary.
func (l *Ledger) GetSummary(ctx context.Context) (Summary, error) {
	positions := l.Positions(ctx)

	var totalValue, totalCost, unrealized float64
	for _, p := range positions {
		totalValue += p.MarketValue
		totalCost += p.CostBasis
		unrealized += p.UnrealizedPnL
	}

	var totalSells, winningSells int64
	if err := l.db.Model(&models.Trade{}).Where("action = ?", models.ActionSell).Count(&totalSells).Error; err != nil {
		return Summary{}, fmt.Errorf("could not count trades: %w", err)
	}
	if err := l.db.Model(&models.Trade{}).Where("action = ? AND pnl > 0", models.ActionSell).Count(&winningSells).Error; err != nil {
		return Summary{}, fmt.Errorf("could not count winning trades: %w", err)
	}

	var totalTrades int64
	if err := l.db.Model(&models.Trade{}).Count(&totalTrades).Error; err != nil {
		return Summary{}, fmt.Errorf("could not count trades: %w", err)
	}

	l.aggMu.Lock()
	cash := l.cash.InexactFloat64()
	realized := l.realized.InexactFloat64()
	l.aggMu.Unlock()

	summary := Summary{
		Cash:           cash,
		TotalValue:     totalValue,
		TotalCost:      totalCost,
		UnrealizedPnL:  unrealized,
		RealizedPnL:    realized,
		TotalPnL:       unrealized + realized,
		TotalTrades:    totalTrades,
		WinningTrades:  winningSells,
		PositionsCount: len(positions),
		Positions:      positions,
	}
	if totalSells > 0 {
		summary.WinRate = float64(winningSells) / float64(totalSells) * 100
	}
	return summary, nil
}

// TradeHistory returns recorded trades, most recent first.
func (l *Ledger) TradeHistory(limit int) ([]models.Trade, error) {
	var trades []models.Trade
	q := l.db.Order("timestamp desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("could not load trade history: %w", err)
	}
	return trades, nil
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.aggMu.Lock()
	defer l.aggMu.Unlock()
	return l.cash.InexactFloat64()
}
