// Package httpapi serves the read-only views: depth, order lookups
// and engine stats. Writes go through the gRPC API only.
package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"matchbook/domain/orderbook"
	"matchbook/service"
)

const maxDepthLimit = 256

type Server struct {
	engine *service.Engine
	log    *zap.Logger
}

func NewServer(engine *service.Engine, log *zap.Logger) *Server {
	return &Server{engine: engine, log: log}
}

// App builds the fiber application with all routes mounted.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	v1 := app.Group("/v1")
	v1.Get("/depth", s.handleDepth)
	v1.Get("/orders/:uid", s.handleUserOrders)
	v1.Get("/order/:id", s.handleOrder)
	v1.Get("/stats", s.handleStats)

	return app
}

type levelJSON struct {
	Price  int64 `json:"price"`
	Volume int64 `json:"volume"`
	Orders int64 `json:"orders"`
}

type depthJSON struct {
	SymbolID uint32      `json:"symbolId"`
	Asks     []levelJSON `json:"asks"`
	Bids     []levelJSON `json:"bids"`
}

func (s *Server) handleDepth(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > maxDepthLimit {
		return fiber.NewError(fiber.StatusBadRequest, "limit out of range")
	}

	data := s.engine.Depth(limit)
	resp := depthJSON{
		SymbolID: s.engine.SymbolID(),
		Asks:     toLevels(data.AskPrices, data.AskVolumes, data.AskOrders, data.AskSize),
		Bids:     toLevels(data.BidPrices, data.BidVolumes, data.BidOrders, data.BidSize),
	}
	return c.JSON(resp)
}

type orderJSON struct {
	OrderID   uint64 `json:"orderId"`
	UID       uint64 `json:"uid"`
	Action    string `json:"action"`
	Price     int64  `json:"price"`
	Size      int64  `json:"size"`
	Filled    int64  `json:"filled"`
	Timestamp int64  `json:"timestamp"`
}

func toOrderJSON(o orderbook.Order) orderJSON {
	return orderJSON{
		OrderID:   o.OrderID,
		UID:       o.UID,
		Action:    o.Action.String(),
		Price:     o.Price,
		Size:      o.Size,
		Filled:    o.Filled,
		Timestamp: o.Timestamp,
	}
}

func (s *Server) handleUserOrders(c *fiber.Ctx) error {
	uid, err := strconv.ParseUint(c.Params("uid"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid uid")
	}

	orders := s.engine.UserOrders(uid)
	out := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderJSON(o))
	}
	return c.JSON(out)
}

func (s *Server) handleOrder(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	o, ok := s.engine.OrderByID(id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}
	return c.JSON(toOrderJSON(o))
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	st := s.engine.Stats()
	return c.JSON(fiber.Map{
		"seq":       st.Seq,
		"askOrders": st.AskOrders,
		"bidOrders": st.BidOrders,
		"askVolume": st.AskVolume,
		"bidVolume": st.BidVolume,
	})
}

func toLevels(prices, volumes, orders []int64, n int) []levelJSON {
	out := make([]levelJSON, n)
	for i := 0; i < n; i++ {
		out[i] = levelJSON{Price: prices[i], Volume: volumes[i], Orders: orders[i]}
	}
	return out
}
