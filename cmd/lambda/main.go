package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/charmbracelet/log"
	"github.com/vela-games/lfsserver/config"
	"github.com/vela-games/lfsserver/functions/apigateway"
	"github.com/vela-games/lfsserver/logging"
	"github.com/vela-games/lfsserver/services"
)

func main() {
	cfg, err := config.GetConfig(nil)
	if err != nil {
		log.Fatal("error getting configuration", "err", err)
	}

	logger := logging.NewLogger(cfg)
	ctx := log.WithContext(context.Background(), logger)

	storage, err := services.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("error opening storage", "backend", cfg.StorageBackend, "err", err)
	}

	handler := apigateway.NewHandler(storage)

	lambda.Start(func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return handler.Handle(log.WithContext(ctx, logger), event)
	})
}
