package sim

import (
	"context"
	"math/rand"
	"time"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
)

// RandomAskBot places short-lived limit asks around the mid price.
type RandomAskBot struct {
	Interval   time.Duration
	Lifetime   time.Duration
	Quantity   book.Quantity
	RangeTicks int64
	rand       *rand.Rand
}

func NewRandomAskBot() *RandomAskBot {
	return &RandomAskBot{
		Interval:   200 * time.Millisecond,
		Lifetime:   2 * time.Second,
		Quantity:   1,
		RangeTicks: 5,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *RandomAskBot) Start(ctx context.Context, client *ThrottledClient) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.placeAsk(ctx, client)
		}
	}
}

func (b *RandomAskBot) placeAsk(ctx context.Context, client *ThrottledClient) {
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
	price := mid + delta

	id, err := client.Submit(ctx, book.Sell, matching.Limit, price, b.Quantity)
	if err != nil {
		return
	}

	go b.cancelAfter(ctx, client, id)
}

func (b *RandomAskBot) cancelAfter(ctx context.Context, client *ThrottledClient, clientOrderID string) {
	timer := time.NewTimer(b.Lifetime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		_ = client.Cancel(context.Background(), clientOrderID)
	}
}
