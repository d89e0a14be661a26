package sim

import (
	"context"
	"time"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
)

// SpreadCaptureBot maintains a paired bid/ask quote and re-prices it when
// the spread moves past a tick threshold or the pair ages out.
type SpreadCaptureBot struct {
	Interval       time.Duration
	Lifetime       time.Duration
	ThresholdTicks int64
	Quantity       book.Quantity
}

type pairedOrders struct {
	buyID     string
	sellID    string
	anchorMid book.Price
	placedAt  time.Time
}

func NewSpreadCaptureBot() *SpreadCaptureBot {
	return &SpreadCaptureBot{
		Interval:       300 * time.Millisecond,
		Lifetime:       3 * time.Second,
		ThresholdTicks: 3,
		Quantity:       1,
	}
}

func (b *SpreadCaptureBot) Start(ctx context.Context, client *ThrottledClient) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	var pair *pairedOrders
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			top, ok := client.TopOfBook()
			if !ok {
				continue
			}
			pair = b.refreshPair(ctx, client, top, pair)
		}
	}
}

func (b *SpreadCaptureBot) refreshPair(ctx context.Context, client *ThrottledClient, top matching.TopOfBook, pair *pairedOrders) *pairedOrders {
	if top.BidPrice <= 0 || top.AskPrice <= 0 {
		return b.cancelPair(ctx, client, pair)
	}
	mid := (top.BidPrice + top.AskPrice) / 2
	tick := client.TickSize()
	threshold := book.Price(b.ThresholdTicks) * tick

	if pair != nil {
		if time.Since(pair.placedAt) > b.Lifetime {
			return b.cancelPair(ctx, client, pair)
		}
		if absPrice(mid-pair.anchorMid) >= threshold {
			pair = b.cancelPair(ctx, client, pair)
		}
	}

	if pair != nil {
		return pair
	}

	buyPrice := top.BidPrice
	if mid-tick > 0 {
		buyPrice = mid - tick
	}
	sellPrice := top.AskPrice
	if sellPrice <= buyPrice {
		sellPrice = buyPrice + tick
	}

	buyID, err := client.Submit(ctx, book.Buy, matching.Limit, buyPrice, b.Quantity)
	if err != nil {
		return pair
	}
	sellID, err := client.Submit(ctx, book.Sell, matching.Limit, sellPrice, b.Quantity)
	if err != nil {
		_ = client.Cancel(ctx, buyID)
		return pair
	}

	return &pairedOrders{buyID: buyID, sellID: sellID, anchorMid: mid, placedAt: time.Now()}
}

func (b *SpreadCaptureBot) cancelPair(ctx context.Context, client *ThrottledClient, pair *pairedOrders) *pairedOrders {
	if pair == nil {
		return nil
	}
	_ = client.Cancel(ctx, pair.buyID)
	_ = client.Cancel(ctx, pair.sellID)
	return nil
}

func absPrice(v book.Price) book.Price {
	if v < 0 {
		return -v
	}
	return v
}
