package grpcapi

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"matchbook/domain/orderbook"
	"matchbook/infra/outbox"
	"matchbook/infra/sequence"
	"matchbook/infra/wal"
	"matchbook/service"
)

func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()
	root := t.TempDir()

	w, err := wal.Open(wal.Config{Dir: filepath.Join(root, "wal"), SegmentSize: 1 << 20})
	require.NoError(t, err)
	ob, err := outbox.Open(filepath.Join(root, "outbox"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ob.Close() })

	book := orderbook.NewOrderBook(orderbook.SymbolSpec{SymbolID: 1, Type: orderbook.CurrencyExchangePair})
	engine := service.NewEngine(book, w, ob, sequence.New(0), zap.NewNop())

	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(NewServer(engine, zap.NewNop()))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(wireCodec{})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestCommandRPCs(t *testing.T) {
	conn := startServer(t)
	ctx := context.Background()

	placeReq := &PlaceOrderRequest{Cmd: orderbook.Command{
		OrderID: 1, UID: 10, Action: orderbook.Ask,
		OrderType: orderbook.GTC, Price: 100, Size: 5,
	}}
	var placeResp ExecutionResponse
	require.NoError(t, conn.Invoke(ctx, "/matchbook.v1.Matchbook/PlaceOrder", placeReq, &placeResp))
	assert.Equal(t, orderbook.Success, placeResp.Exec.Code)
	assert.Equal(t, uint64(1), placeResp.Exec.Seq)
	assert.Empty(t, placeResp.Exec.Events)

	crossReq := &PlaceOrderRequest{Cmd: orderbook.Command{
		OrderID: 2, UID: 20, Action: orderbook.Bid,
		OrderType: orderbook.GTC, Price: 100, Size: 2,
	}}
	var crossResp ExecutionResponse
	require.NoError(t, conn.Invoke(ctx, "/matchbook.v1.Matchbook/PlaceOrder", crossReq, &crossResp))
	require.Len(t, crossResp.Exec.Events, 1)
	assert.Equal(t, orderbook.EventTrade, crossResp.Exec.Events[0].Kind)
	assert.Equal(t, int64(2), crossResp.Exec.Events[0].Size)

	var moveResp ExecutionResponse
	require.NoError(t, conn.Invoke(ctx, "/matchbook.v1.Matchbook/MoveOrder",
		&MoveOrderRequest{OrderID: 1, UID: 10, Price: 101}, &moveResp))
	assert.Equal(t, orderbook.Success, moveResp.Exec.Code)

	var cancelResp ExecutionResponse
	require.NoError(t, conn.Invoke(ctx, "/matchbook.v1.Matchbook/CancelOrder",
		&CancelOrderRequest{OrderID: 1, UID: 10}, &cancelResp))
	assert.Equal(t, orderbook.Success, cancelResp.Exec.Code)

	require.NoError(t, conn.Invoke(ctx, "/matchbook.v1.Matchbook/CancelOrder",
		&CancelOrderRequest{OrderID: 1, UID: 10}, &cancelResp))
	assert.Equal(t, orderbook.MatchingUnknownOrderID, cancelResp.Exec.Code)
}

func TestPlaceOrderRejectsBadSize(t *testing.T) {
	conn := startServer(t)

	req := &PlaceOrderRequest{Cmd: orderbook.Command{
		OrderID: 1, UID: 10, Action: orderbook.Bid,
		OrderType: orderbook.GTC, Price: 100, Size: -5,
	}}
	var resp ExecutionResponse
	err := conn.Invoke(context.Background(), "/matchbook.v1.Matchbook/PlaceOrder", req, &resp)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
