package cache

import "github.com/troubladore/venuecore/book"

// Balance is one currency's free/locked/total accounting.
type Balance struct {
	Total  book.Price
	Free   book.Price
	Locked book.Price
}

// Account is folded from a stream of AccountStateEvent.
type Account struct {
	ID       string
	Balances map[string]Balance
}

func newAccount(e AccountStateEvent) *Account {
	a := &Account{ID: e.AccountID, Balances: make(map[string]Balance)}
	a.apply(e)
	return a
}

func (a *Account) apply(e AccountStateEvent) {
	a.Balances[e.Currency] = Balance{Total: e.Total, Free: e.Free, Locked: e.Locked}
}

// OrderStatus mirrors the state machine in the matching engine's design.
type OrderStatus string

const (
	OrderStatusInitialized OrderStatus = "INITIALIZED"
	OrderStatusUpdated     OrderStatus = "UPDATED"
	OrderStatusPartFilled  OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled      OrderStatus = "FILLED"
	OrderStatusCanceled    OrderStatus = "CANCELED"
	OrderStatusRejected    OrderStatus = "REJECTED"
	OrderStatusExpired     OrderStatus = "EXPIRED"
)

// Order is folded from OrderInitialized plus subsequent lifecycle events.
type Order struct {
	ID            string
	InstrumentID  string
	Side          book.Side
	OrderType     string
	Price         book.Price
	TriggerPrice  book.Price
	Volume        book.Quantity
	FilledVolume  book.Quantity
	Status        OrderStatus
	RejectReason  string
}

func newOrder(e OrderInitializedEvent) *Order {
	return &Order{
		ID:           e.OrderID,
		InstrumentID: e.InstrumentID,
		Side:         e.Side,
		OrderType:    e.OrderType,
		Price:        e.Price,
		TriggerPrice: e.TriggerPrice,
		Volume:       e.Volume,
		Status:       OrderStatusInitialized,
	}
}

func (o *Order) apply(evt Event) {
	switch p := evt.Payload.(type) {
	case OrderUpdatedEvent:
		o.Price = p.NewPrice
		o.Volume = p.NewVolume
		o.Status = OrderStatusUpdated
	case OrderFilledEvent:
		o.FilledVolume += p.FillQty
		if o.FilledVolume >= o.Volume {
			o.Status = OrderStatusFilled
		} else {
			o.Status = OrderStatusPartFilled
		}
	case OrderCanceledEvent:
		o.Status = OrderStatusCanceled
	case OrderRejectedEvent:
		o.Status = OrderStatusRejected
		o.RejectReason = p.Reason
	case OrderExpiredEvent:
		o.Status = OrderStatusExpired
	}
}

// Position is seeded by the first OrderFilledEvent that references it and
// folds every subsequent fill on the same PositionID: same-side fills
// widen the average price, opposite-side fills reduce or flip it.
type Position struct {
	ID           string
	InstrumentID string
	Side         book.Side
	Volume       book.Quantity
	AvgPrice     book.Price
	RealizedPnL  book.Price
}

func newPosition(instrumentID string, e OrderFilledEvent) *Position {
	return &Position{
		ID:           e.PositionID,
		InstrumentID: instrumentID,
		Side:         e.Side,
		Volume:       e.FillQty,
		AvgPrice:     e.FillPrice,
	}
}

// apply folds one further fill against the position on the given side.
func (p *Position) apply(fillSide book.Side, qty book.Quantity, price book.Price) {
	if fillSide == p.Side {
		total := p.Volume + qty
		p.AvgPrice = weightedAverage(p.AvgPrice, p.Volume, price, qty)
		p.Volume = total
		return
	}
	switch {
	case qty < p.Volume:
		p.RealizedPnL += realizedPnL(p.Side, p.AvgPrice, price, qty)
		p.Volume -= qty
	case qty == p.Volume:
		p.RealizedPnL += realizedPnL(p.Side, p.AvgPrice, price, qty)
		p.Volume = 0
	default:
		closingQty := p.Volume
		p.RealizedPnL += realizedPnL(p.Side, p.AvgPrice, price, closingQty)
		flipQty := qty - closingQty
		p.Side = fillSide
		p.Volume = flipQty
		p.AvgPrice = price
	}
}

func weightedAverage(priceA book.Price, qtyA book.Quantity, priceB book.Price, qtyB book.Quantity) book.Price {
	total := qtyA + qtyB
	if total == 0 {
		return 0
	}
	return book.Price((int64(priceA)*int64(qtyA) + int64(priceB)*int64(qtyB)) / int64(total))
}

func realizedPnL(side book.Side, entryPrice, exitPrice book.Price, qty book.Quantity) book.Price {
	diff := int64(exitPrice) - int64(entryPrice)
	if side == book.Sell {
		diff = -diff
	}
	return book.Price(diff * int64(qty))
}
