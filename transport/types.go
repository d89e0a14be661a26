package transport

import (
	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
)

// orderRequest is the wire shape of POST /orders and the entry/leg shape
// nested inside bracketRequest.
type orderRequest struct {
	ClientOrderID string `json:"client_order_id"`
	InstrumentID  string `json:"instrument_id"`
	AccountID     string `json:"account_id"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	PostOnly      bool   `json:"post_only"`
	ReduceOnly    bool   `json:"reduce_only"`
	Price         int64  `json:"price"`
	TriggerPrice  int64  `json:"trigger_price"`
	Volume        int64  `json:"volume"`
	ExpireTimeNs  int64  `json:"expire_time_ns"`
}

func (req orderRequest) toCommand() (matching.SubmitOrder, error) {
	side, err := parseSide(req.Side)
	if err != nil {
		return matching.SubmitOrder{}, err
	}
	typ, err := parseOrderType(req.Type)
	if err != nil {
		return matching.SubmitOrder{}, err
	}
	tif, err := parseTIF(req.TimeInForce)
	if err != nil {
		return matching.SubmitOrder{}, err
	}
	return matching.SubmitOrder{
		ClientOrderID: req.ClientOrderID,
		InstrumentID:  req.InstrumentID,
		AccountID:     req.AccountID,
		Side:          side,
		Type:          typ,
		TimeInForce:   tif,
		Instruction:   matching.ExecutionInstruction{PostOnly: req.PostOnly, ReduceOnly: req.ReduceOnly},
		Price:         book.Price(req.Price),
		TriggerPrice:  book.Price(req.TriggerPrice),
		Volume:        book.Quantity(req.Volume),
		ExpireTimeNs:  req.ExpireTimeNs,
	}, nil
}

// bracketRequest is the wire shape of POST /orders/bracket.
type bracketRequest struct {
	Entry      orderRequest  `json:"entry"`
	TakeProfit *orderRequest `json:"take_profit,omitempty"`
	StopLoss   *orderRequest `json:"stop_loss,omitempty"`
}

func (req bracketRequest) toCommand() (matching.SubmitBracketOrder, error) {
	entry, err := req.Entry.toCommand()
	if err != nil {
		return matching.SubmitBracketOrder{}, err
	}
	out := matching.SubmitBracketOrder{Entry: entry}
	if req.TakeProfit != nil {
		tp, err := req.TakeProfit.toCommand()
		if err != nil {
			return matching.SubmitBracketOrder{}, err
		}
		out.TakeProfit = &tp
	}
	if req.StopLoss != nil {
		sl, err := req.StopLoss.toCommand()
		if err != nil {
			return matching.SubmitBracketOrder{}, err
		}
		out.StopLoss = &sl
	}
	return out, nil
}

// updateRequest is the wire shape of PATCH /orders/{id}.
type updateRequest struct {
	AccountID string `json:"account_id"`
	NewPrice  int64  `json:"new_price"`
	NewVolume int64  `json:"new_volume"`
}

// cancelRequest is the optional wire shape of POST /orders/{id}/cancel.
type cancelRequest struct {
	AccountID     string `json:"account_id"`
	ClientOrderID string `json:"client_order_id"`
}

type topOfBookResponse struct {
	BidPrice int64 `json:"bid_price"`
	BidQty   int64 `json:"bid_qty"`
	AskPrice int64 `json:"ask_price"`
	AskQty   int64 `json:"ask_qty"`
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
