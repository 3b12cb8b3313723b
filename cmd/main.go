package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"github.com/rmarin/leaglink-whatsapp-agent/handler"
	"github.com/rmarin/leaglink-whatsapp-agent/internal/agent"
	"github.com/rmarin/leaglink-whatsapp-agent/internal/integrations/anthropic"
	"github.com/rmarin/leaglink-whatsapp-agent/internal/integrations/paramstore"
	"github.com/rmarin/leaglink-whatsapp-agent/internal/integrations/whatsapp"
	"github.com/rmarin/leaglink-whatsapp-agent/internal/repository"
	"github.com/rmarin/leaglink-whatsapp-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// Local runs read a .env file; in Lambda this is a no-op.
	_ = godotenv.Load()

	// ---- Configuration (read only here) ----
	verifyToken := mustEnv("WEBHOOK_VERIFY_TOKEN")
	paramPrefix := mustEnv("PARAM_PREFIX")
	stateTable := os.Getenv("STATE_TABLE") // empty selects the in-memory store
	model := os.Getenv("ANTHROPIC_MODEL")
	maxContextItems := envInt("MAX_CONTEXT_ITEMS", 20)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	llmClient, err := anthropic.NewClient(ssmClient, paramPrefix, anthropic.WithModel(model))
	if err != nil {
		slog.Error("failed to create Anthropic client", "err", err)
		os.Exit(1)
	}

	waClient, err := whatsapp.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create WhatsApp client", "err", err)
		os.Exit(1)
	}

	// ---- Storage ----
	memory := repository.NewMemoryStore()
	var history usecase.HistoryStore = memory
	if stateTable != "" {
		dynamoStore, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(cfg), stateTable)
		if err != nil {
			slog.Error("failed to create DynamoDB store", "err", err)
			os.Exit(1)
		}
		history = dynamoStore
	}

	// ---- Services ----
	pipeline, err := agent.NewPipeline(llmClient)
	if err != nil {
		slog.Error("failed to create pipeline", "err", err)
		os.Exit(1)
	}

	chatService, err := usecase.NewChatService(pipeline, history, maxContextItems)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	logService, err := usecase.NewMessageLogService(memory)
	if err != nil {
		slog.Error("failed to create message log service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(chatService, logService, waClient, waClient, verifyToken)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
