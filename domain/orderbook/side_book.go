package orderbook

// SideBook is one half of a symbol's book: the price-ordered levels
// for a single side. Best price means highest for bids, lowest for
// asks; Walk always goes best to worst.
type SideBook struct {
	side Side
	tree *RBTree
}

func NewSideBook(side Side) *SideBook {
	return &SideBook{side: side, tree: NewRBTree()}
}

func (b *SideBook) Side() Side { return b.side }

func (b *SideBook) Levels() int { return b.tree.Size() }

func (b *SideBook) Empty() bool { return b.tree.Size() == 0 }

// Best returns the best price level, or nil when the side is empty.
func (b *SideBook) Best() *PriceLevel {
	if b.side == Buy {
		return b.tree.MaxLevel()
	}
	return b.tree.MinLevel()
}

func (b *SideBook) Find(price int64) *PriceLevel {
	return b.tree.FindLevel(price)
}

func (b *SideBook) GetOrCreate(price int64) *PriceLevel {
	return b.tree.UpsertLevel(price)
}

func (b *SideBook) Drop(price int64) {
	b.tree.DeleteLevel(price)
}

// Marketable reports whether a resting level of this book at price
// can trade against an incoming order limited to limit. For an ask
// book that means level price at or below the buyer's limit; for a
// bid book, at or above the seller's limit.
func (b *SideBook) Marketable(price, limit int64) bool {
	if b.side == Sell {
		return price <= limit
	}
	return price >= limit
}

// Walk visits levels best to worst until fn returns false.
func (b *SideBook) Walk(fn func(*PriceLevel) bool) {
	if b.side == Buy {
		b.tree.ForEachDescending(fn)
	} else {
		b.tree.ForEachAscending(fn)
	}
}
