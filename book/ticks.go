package book

// QuoteTick is a top-of-book quote update, consumed by L1 books.
type QuoteTick struct {
	BidPrice    Price
	BidSize     Quantity
	AskPrice    Price
	AskSize     Quantity
	TimestampNs int64
}

// TradeTick is a single executed trade, consumed by L1 books and used to
// classify aggressor side against any book variant.
type TradeTick struct {
	Price         Price
	Size          Quantity
	AggressorSide Side
	TimestampNs   int64
}
