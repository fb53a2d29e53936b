package main

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"codesession/config"
	"codesession/logger"
	"codesession/natshandler"
	"codesession/progress"
	"codesession/sandbox"
	"codesession/service"
)

func main() {
	cfg := config.LoadConfig()

	zlog := logger.New(cfg.Environment)
	defer zlog.Sync()

	provider, err := sandbox.NewProvider(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to create sandbox provider", zap.Error(err))
	}

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		zlog.Fatal("Failed to connect to NATS",
			zap.String("url", cfg.NatsURL),
			zap.Error(err))
	}
	defer nc.Close()

	publisher := progress.NewNatsPublisher(nc, zlog)
	svc := service.NewSessionService(cfg, provider, publisher, zlog)

	nc.Subscribe(natshandler.SubjectInit, func(msg *nats.Msg) {
		natshandler.HandleInitRequest(msg, nc, svc)
	})
	nc.Subscribe(natshandler.SubjectExecute, func(msg *nats.Msg) {
		natshandler.HandleExecuteRequest(msg, nc, svc)
	})
	nc.Subscribe(natshandler.SubjectImages, func(msg *nats.Msg) {
		natshandler.HandleImagesRequest(msg, nc, svc)
	})
	nc.Subscribe(natshandler.SubjectCleanup, func(msg *nats.Msg) {
		natshandler.HandleCleanupRequest(msg, nc, svc)
	})

	zlog.Info("interpreter session service running", zap.String("nats", cfg.NatsURL))

	// Keep the service running
	select {}
}
