// Command loadgen drives random order flow directly against an execution
// engine (bypassing risk and the HTTP gateway) to measure the matching
// engine's raw submit/fill throughput: a seeded RNG generates orders, an
// execution.Engine applies them, and optional CPU/heap profiles capture
// the run.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/execution"
	"github.com/troubladore/venuecore/matching"
	"github.com/troubladore/venuecore/matching/fillmodel"
)

func main() {
	totalOrders := flag.Int("orders", 500000, "number of orders to submit")
	priceLevels := flag.Int64("price-levels", 200, "unique price levels around the mid")
	tick := flag.Int64("tick", 1, "tick size for limit prices")
	basePrice := flag.Int64("base-price", 10000, "mid price used for randomization")
	instrumentID := flag.String("instrument", "SIM-USD", "instrument id to trade")
	cancelEvery := flag.Int("cancel-every", 0, "cancel a random earlier order every N submissions")
	seed := flag.Int64("seed", time.Now().UnixNano(), "seed for deterministic random streams")
	cpuProfile := flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile := flag.String("memprofile", "", "write heap profile to file")
	marketRatio := flag.Int("market-ratio", 5, "1 in N orders will be market instead of limit")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	var fills int64
	eng := execution.New(*totalOrders+1024, nil)
	eng.AddSink(func(evt any) {
		if _, ok := evt.(matching.OrderFilled); ok {
			atomic.AddInt64(&fills, 1)
		}
	})

	account := matching.NewAccount("loadgen", "USD", book.Price(1_000_000_000_00))
	fm := fillmodel.New(fillmodel.Config{ProbFillAtLimit: 1, ProbSlippage: 0, RandomSeed: *seed})
	exchange := matching.New(account, fm, eng.OnExchangeEvent, nil)
	eng.Attach(exchange)
	if err := exchange.RegisterInstrument(matching.Instrument{ID: *instrumentID, Currency: "USD", BookLevel: book.L2}); err != nil {
		panic(err)
	}

	eng.Start()

	start := time.Now()
	for i := 0; i < *totalOrders; i++ {
		cmd := nextRandomOrder(rng, i, *instrumentID, *basePrice, *priceLevels, *tick, *marketRatio)
		eng.Submit(cmd)
		if *cancelEvery > 0 && i > 0 && i%*cancelEvery == 0 {
			target := rng.Intn(i)
			eng.Cancel(matching.CancelOrder{ClientOrderID: "lg-" + strconv.Itoa(target)})
		}
	}
	eng.Stop()
	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err == nil {
			defer f.Close()
			_ = pprof.WriteHeapProfile(f)
		}
	}

	ordersPerSec := float64(*totalOrders) / elapsed.Seconds()
	fillsPerSec := float64(atomic.LoadInt64(&fills)) / elapsed.Seconds()

	fmt.Printf("submitted %d orders in %s (%.0f orders/s)\n", *totalOrders, elapsed.Truncate(time.Millisecond), ordersPerSec)
	fmt.Printf("filled %d executions (%.0f fills/s)\n", atomic.LoadInt64(&fills), fillsPerSec)
	fmt.Printf("config: instrument=%s market-ratio=1/%d price-levels=%d\n", *instrumentID, *marketRatio, *priceLevels)
}

func nextRandomOrder(rng *rand.Rand, id int, instrumentID string, mid, width, tick int64, marketRatio int) matching.SubmitOrder {
	side := book.Buy
	if rng.Intn(2) == 1 {
		side = book.Sell
	}

	var price int64
	if side == book.Buy {
		price = mid + rng.Int63n(width)
	} else {
		offset := rng.Int63n(width)
		if mid > offset {
			price = mid - offset
		} else {
			price = tick
		}
	}

	otype := matching.Limit
	if marketRatio > 0 && rng.Intn(marketRatio) == 0 {
		otype = matching.Market
		price = 0
	}

	qty := rng.Int63n(5) + 1

	return matching.SubmitOrder{
		ClientOrderID: "lg-" + strconv.Itoa(id),
		InstrumentID:  instrumentID,
		Side:          side,
		Type:          otype,
		Price:         book.Price(price),
		Volume:        book.Quantity(qty),
	}
}
