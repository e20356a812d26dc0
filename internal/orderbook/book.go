// Package orderbook is the in-process registry of tracked and take-profit
// orders. It is not safe for concurrent use; the owner serializes access.
package orderbook

import (
	"barrierBot/internal/domain"
)

// Book owns the two order sequences. Every appended record is stamped with a
// monotonic sequence number and "latest" queries select by it.
type Book struct {
	seq         uint64
	tracked     []*domain.TrackedOrder
	takeProfits []*domain.TakeProfitLimitOrder
}

// New creates an empty book.
func New() *Book {
	return &Book{}
}

func (b *Book) nextSeq() uint64 {
	b.seq++
	return b.seq
}

// AppendTrackedOrder stamps and stores a new tracked order.
func (b *Book) AppendTrackedOrder(o *domain.TrackedOrder) {
	o.Seq = b.nextSeq()
	b.tracked = append(b.tracked, o)
}

// AppendTakeProfitOrder stamps and stores a new take-profit order.
func (b *Book) AppendTakeProfitOrder(o *domain.TakeProfitLimitOrder) {
	o.Seq = b.nextSeq()
	b.takeProfits = append(b.takeProfits, o)
}

// RemoveTakeProfitOrder drops the take-profit order with orderID and returns
// it, or nil if there was none.
func (b *Book) RemoveTakeProfitOrder(orderID string) *domain.TakeProfitLimitOrder {
	for i, tp := range b.takeProfits {
		if tp.OrderID == orderID {
			b.takeProfits = append(b.takeProfits[:i:i], b.takeProfits[i+1:]...)
			return tp
		}
	}
	return nil
}

// TrackedOrders returns every tracked order, terminated ones included.
func (b *Book) TrackedOrders() []*domain.TrackedOrder {
	return append([]*domain.TrackedOrder(nil), b.tracked...)
}

// TakeProfitOrders returns every take-profit order still in the registry.
func (b *Book) TakeProfitOrders() []*domain.TakeProfitLimitOrder {
	return append([]*domain.TakeProfitLimitOrder(nil), b.takeProfits...)
}

// FindTrackedOrder returns the first tracked order with orderID, or nil.
func (b *Book) FindTrackedOrder(orderID string) *domain.TrackedOrder {
	for _, o := range b.tracked {
		if o.OrderID == orderID {
			return o
		}
	}
	return nil
}

// FindTakeProfitOrder returns the take-profit order with orderID, or nil.
func (b *Book) FindTakeProfitOrder(orderID string) *domain.TakeProfitLimitOrder {
	for _, o := range b.takeProfits {
		if o.OrderID == orderID {
			return o
		}
	}
	return nil
}

// FindLastTerminatedFilledOrder returns, among orders for side and ref that
// were both filled and terminated, the one terminated last. Ties go to the
// later sequence number.
func (b *Book) FindLastTerminatedFilledOrder(side domain.TradeSide, ref string) *domain.TrackedOrder {
	var last *domain.TrackedOrder
	for _, o := range b.tracked {
		if o.Side != side || o.Ref != ref || !o.IsFilled() || !o.IsTerminated() {
			continue
		}
		if last == nil || !o.TerminatedAt.Before(last.TerminatedAt) {
			last = o
		}
	}
	return last
}

// ActiveTrackedOrders returns created, non-terminated orders. An empty ref
// matches every order.
func (b *Book) ActiveTrackedOrders(ref string) []*domain.TrackedOrder {
	var active []*domain.TrackedOrder
	for _, o := range b.tracked {
		if o.IsActive() && (ref == "" || o.Ref == ref) {
			active = append(active, o)
		}
	}
	return active
}

// ActiveTrackedOrdersBySide splits the active orders by side.
func (b *Book) ActiveTrackedOrdersBySide(ref string) (sells, buys []*domain.TrackedOrder) {
	return splitBySide(b.ActiveTrackedOrders(ref))
}

// FilledTrackedOrders returns active orders with at least one fill.
func (b *Book) FilledTrackedOrders(ref string) []*domain.TrackedOrder {
	return filter(b.ActiveTrackedOrders(ref), func(o *domain.TrackedOrder) bool { return o.IsFilled() })
}

// UnfilledTrackedOrders returns active orders without any fill.
func (b *Book) UnfilledTrackedOrders(ref string) []*domain.TrackedOrder {
	return filter(b.ActiveTrackedOrders(ref), func(o *domain.TrackedOrder) bool { return !o.IsFilled() })
}

// FilledTrackedOrdersBySide splits the filled active orders by side.
func (b *Book) FilledTrackedOrdersBySide(ref string) (sells, buys []*domain.TrackedOrder) {
	return splitBySide(b.FilledTrackedOrders(ref))
}

// UnfilledTrackedOrdersBySide splits the unfilled active orders by side.
func (b *Book) UnfilledTrackedOrdersBySide(ref string) (sells, buys []*domain.TrackedOrder) {
	return splitBySide(b.UnfilledTrackedOrders(ref))
}

// UnfilledTakeProfitOrdersFor returns the resting take-profit orders of parent.
func (b *Book) UnfilledTakeProfitOrdersFor(parent *domain.TrackedOrder) []*domain.TakeProfitLimitOrder {
	var out []*domain.TakeProfitLimitOrder
	for _, tp := range b.takeProfits {
		if tp.Parent.OrderID == parent.OrderID && !tp.IsFilled() {
			out = append(out, tp)
		}
	}
	return out
}

// FilledTakeProfitOrders returns take-profit orders with at least one fill.
func (b *Book) FilledTakeProfitOrders() []*domain.TakeProfitLimitOrder {
	var out []*domain.TakeProfitLimitOrder
	for _, tp := range b.takeProfits {
		if tp.IsFilled() {
			out = append(out, tp)
		}
	}
	return out
}

// LatestFilledTakeProfitOrder returns the filled take-profit order with the
// highest sequence number, or nil.
func (b *Book) LatestFilledTakeProfitOrder() *domain.TakeProfitLimitOrder {
	var latest *domain.TakeProfitLimitOrder
	for _, tp := range b.takeProfits {
		if tp.IsFilled() && (latest == nil || tp.Seq > latest.Seq) {
			latest = tp
		}
	}
	return latest
}

func filter(orders []*domain.TrackedOrder, keep func(*domain.TrackedOrder) bool) []*domain.TrackedOrder {
	var out []*domain.TrackedOrder
	for _, o := range orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func splitBySide(orders []*domain.TrackedOrder) (sells, buys []*domain.TrackedOrder) {
	for _, o := range orders {
		if o.Side == domain.Sell {
			sells = append(sells, o)
		} else {
			buys = append(buys, o)
		}
	}
	return sells, buys
}
