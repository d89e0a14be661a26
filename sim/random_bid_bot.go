package sim

import (
	"context"
	"math/rand"
	"time"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
)

// RandomBidBot places short-lived limit bids around the mid price.
type RandomBidBot struct {
	Interval   time.Duration
	Lifetime   time.Duration
	Quantity   book.Quantity
	RangeTicks int64
	rand       *rand.Rand
}

func NewRandomBidBot() *RandomBidBot {
	return &RandomBidBot{
		Interval:   200 * time.Millisecond,
		Lifetime:   2 * time.Second,
		Quantity:   1,
		RangeTicks: 5,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *RandomBidBot) Start(ctx context.Context, client *ThrottledClient) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.placeBid(ctx, client)
		}
	}
}

func (b *RandomBidBot) placeBid(ctx context.Context, client *ThrottledClient) {
	top, ok := client.TopOfBook()
	if !ok {
		return
	}
	mid := midPrice(top)
	if mid <= 0 {
		return
	}

	tick := client.TickSize()
	delta := book.Price(b.rand.Int63n(b.RangeTicks+1)) * tick
	price := mid - delta
	if price <= 0 {
		price = tick
	}

	id, err := client.Submit(ctx, book.Buy, matching.Limit, price, b.Quantity)
	if err != nil {
		return
	}

	go b.cancelAfter(ctx, client, id)
}

func (b *RandomBidBot) cancelAfter(ctx context.Context, client *ThrottledClient, clientOrderID string) {
	timer := time.NewTimer(b.Lifetime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		_ = client.Cancel(context.Background(), clientOrderID)
	}
}
