package orderbook

import (
	"testing"

	"pgregory.net/rapid"
)

// Random command streams against the book; after every command the
// whole redundant state (chains, buckets, trees, index) must stay
// consistent.
func TestOrderBookRandomOperations(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ob := NewOrderBook(testSpec())
		nextID := uint64(1)
		var live []uint64

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 9).Draw(t, "op") {
			case 0, 1, 2, 3, 4, 5:
				id := nextID
				nextID++
				ot := GTC
				if rapid.Bool().Draw(t, "ioc") {
					ot = IOC
				}
				action := Ask
				if rapid.Bool().Draw(t, "bid") {
					action = Bid
				}
				price := rapid.Int64Range(90, 110).Draw(t, "price")
				cmd := &Command{
					OrderID:         id,
					UID:             rapid.Uint64Range(1, 4).Draw(t, "uid"),
					Action:          action,
					OrderType:       ot,
					Price:           price,
					Size:            rapid.Int64Range(1, 20).Draw(t, "size"),
					ReserveBidPrice: price + 10,
				}
				rc := ob.NewOrder(cmd)
				if rc != Success {
					t.Fatalf("new order %d: %s", id, rc)
				}
				if ot == GTC && ob.GetOrderByID(id) != nil {
					live = append(live, id)
				}
			case 6, 7:
				if len(live) == 0 {
					continue
				}
				k := rapid.IntRange(0, len(live)-1).Draw(t, "victim")
				id := live[k]
				o := ob.GetOrderByID(id)
				if o == nil {
					live = append(live[:k], live[k+1:]...)
					continue
				}
				rc := ob.CancelOrder(&Command{OrderID: id, UID: o.UID})
				if rc != Success {
					t.Fatalf("cancel %d: %s", id, rc)
				}
				live = append(live[:k], live[k+1:]...)
			default:
				if len(live) == 0 {
					continue
				}
				k := rapid.IntRange(0, len(live)-1).Draw(t, "moved")
				id := live[k]
				o := ob.GetOrderByID(id)
				if o == nil {
					live = append(live[:k], live[k+1:]...)
					continue
				}
				cmd := &Command{
					OrderID: id,
					UID:     o.UID,
					Price:   rapid.Int64Range(90, 110).Draw(t, "newPrice"),
				}
				rc := ob.MoveOrder(cmd)
				if rc != Success && rc != MatchingMoveFailedPriceOverRiskLimit {
					t.Fatalf("move %d: %s", id, rc)
				}
				if ob.GetOrderByID(id) == nil {
					live = append(live[:k], live[k+1:]...)
				}
			}

			if err := ob.ValidateInternalState(); err != nil {
				t.Fatalf("after step %d: %v", i, err)
			}
		}

		checkVolumes(t, ob)
	})
}

func checkVolumes(t *rapid.T, ob *OrderBook) {
	for _, side := range []Action{Ask, Bid} {
		var chainVolume int64
		chainOrders := 0
		walk := ob.AskOrders
		if side == Bid {
			walk = ob.BidOrders
		}
		walk(func(o *Order) bool {
			chainVolume += o.Remaining()
			chainOrders++
			return true
		})
		if got := ob.GetTotalOrdersVolume(side); got != chainVolume {
			t.Fatalf("%s volume: buckets %d, chain %d", side, got, chainVolume)
		}
		if got := ob.GetOrdersNum(side); got != chainOrders {
			t.Fatalf("%s orders: buckets %d, chain %d", side, got, chainOrders)
		}
	}
}
