package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/qwenbot/internal/handler"
	"github.com/dmorgan81/qwenbot/internal/inject"
	"github.com/dmorgan81/qwenbot/internal/log"
	"github.com/samber/do"
)

func main() {
	logger := log.New(os.Stderr)
	ctx := log.NewContext(context.Background(), logger)
	injector := inject.Setup(ctx)

	h, err := do.Invoke[*handler.Handler](injector)
	if err != nil {
		logger.Error("wiring lambda handler", "error", err)
		if err := injector.Shutdown(); err != nil {
			logger.Error("shutting down", "error", err)
		}
		os.Exit(1)
	}

	lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
		logger.Info("received SIGTERM, shutting down")
		if err := injector.Shutdown(); err != nil {
			logger.Error("shutting down", "error", err)
		}
	}))
}
