package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"matchbook/api/grpcapi"
	"matchbook/api/httpapi"
	"matchbook/domain/orderbook"
	"matchbook/infra/kafka"
	"matchbook/infra/outbox"
	"matchbook/infra/sequence"
	"matchbook/infra/wal"
	"matchbook/jobs/broadcaster"
	"matchbook/jobs/marketdata"
	"matchbook/service"
)

func main() {
	var (
		dataDir          = flag.String("data-dir", "./data", "base directory for wal, outbox and snapshots")
		grpcAddr         = flag.String("grpc-addr", ":50051", "command API listen address")
		httpAddr         = flag.String("http-addr", ":8080", "read API listen address")
		symbolID         = flag.Uint("symbol-id", 1, "instrument id served by this engine")
		futures          = flag.Bool("futures", false, "treat the instrument as a futures contract")
		brokers          = flag.String("kafka-brokers", "localhost:9092", "comma separated kafka brokers")
		execTopic        = flag.String("exec-topic", "executions", "execution report topic")
		depthTopic       = flag.String("depth-topic", "depth", "market data topic")
		depthLevels      = flag.Int("depth-levels", 20, "published depth levels per side")
		depthInterval    = flag.Duration("depth-interval", time.Second, "market data publish interval")
		snapshotInterval = flag.Duration("snapshot-interval", time.Minute, "snapshot interval")
		segmentSize      = flag.Int64("wal-segment-size", 2<<20, "wal segment size in bytes")
	)
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	walDir := *dataDir + "/wal"
	outboxDir := *dataDir + "/outbox"
	snapshotDir := *dataDir + "/snapshots"

	// ---------------- Durability ----------------

	w, err := wal.Open(wal.Config{Dir: walDir, SegmentSize: *segmentSize})
	if err != nil {
		log.Fatal("open wal", zap.Error(err))
	}

	ob, err := outbox.Open(outboxDir)
	if err != nil {
		log.Fatal("open outbox", zap.Error(err))
	}
	defer ob.Close()

	// ---------------- Recovery ----------------

	book, afterSeq, err := service.LoadSnapshot(snapshotDir)
	if err != nil {
		log.Fatal("load snapshot", zap.Error(err))
	}
	if book == nil {
		symbolType := orderbook.CurrencyExchangePair
		if *futures {
			symbolType = orderbook.FuturesContract
		}
		book = orderbook.NewOrderBook(orderbook.SymbolSpec{
			SymbolID: uint32(*symbolID),
			Type:     symbolType,
		})
	}

	seq := sequence.New(0)
	if err := service.ReplayFromWAL(walDir, afterSeq, book, seq, log); err != nil {
		log.Fatal("wal replay", zap.Error(err))
	}

	// ---------------- Engine ----------------

	engine := service.NewEngine(book, w, ob, seq, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---------------- Background jobs ----------------

	brokerList := strings.Split(*brokers, ",")

	bc, err := broadcaster.New(ob, brokerList, *execTopic, log)
	if err != nil {
		log.Fatal("start broadcaster", zap.Error(err))
	}
	defer bc.Close()
	bc.Start(ctx)

	depthProducer := kafka.NewProducer(brokerList, *depthTopic)
	defer depthProducer.Close()
	marketdata.NewPublisher(engine, depthProducer, *depthLevels, *depthInterval, log).Start(ctx)

	engine.StartSnapshotJob(ctx, snapshotDir, *snapshotInterval)
	engine.StartValidationJob(ctx, 30*time.Second)

	// ---------------- APIs ----------------

	lis, err := net.Listen("tcp", *grpcAddr)
	if err != nil {
		log.Fatal("listen grpc", zap.Error(err))
	}
	grpcSrv := grpcapi.NewGRPCServer(grpcapi.NewServer(engine, log))
	go func() {
		log.Info("command API listening", zap.String("addr", *grpcAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatal("grpc serve", zap.Error(err))
		}
	}()

	app := httpapi.NewServer(engine, log).App()
	go func() {
		log.Info("read API listening", zap.String("addr", *httpAddr))
		if err := app.Listen(*httpAddr); err != nil {
			log.Fatal("http serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	grpcSrv.GracefulStop()
	_ = app.Shutdown()
	if err := engine.Close(); err != nil {
		log.Warn("close engine", zap.Error(err))
	}
}
