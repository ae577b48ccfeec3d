// Command refresh-lambda runs one due-site refresh per invocation. It answers
// API Gateway requests with the scheduled-trigger JSON contract and also
// accepts bare scheduled events.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/couchcryptid/mapshield-weather/internal/app"
	"github.com/couchcryptid/mapshield-weather/internal/config"
	"github.com/couchcryptid/mapshield-weather/internal/observability"
	"github.com/couchcryptid/mapshield-weather/internal/pipeline"
)

// Refresher runs one due-site refresh.
type Refresher interface {
	RefreshDue(ctx context.Context, trigger string) (pipeline.Summary, error)
}

type jobResult struct {
	Success      bool   `json:"success"`
	SitesUpdated int    `json:"sites_updated"`
	TotalSites   int    `json:"total_sites"`
	Error        string `json:"error,omitempty"`
}

type handler struct {
	refresher Refresher
	logger    *slog.Logger
}

func (h *handler) handle(ctx context.Context, _ events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	status := http.StatusOK
	result := jobResult{Success: true}

	summary, err := h.refresher.RefreshDue(ctx, pipeline.TriggerSchedule)
	if err != nil {
		h.logger.Error("scheduled refresh failed", "error", err)
		status = http.StatusInternalServerError
		result = jobResult{Error: err.Error()}
	} else {
		result.SitesUpdated = summary.SitesUpdated
		result.TotalSites = summary.TotalSites
		h.logger.Info("scheduled refresh complete",
			"sites_updated", summary.SitesUpdated, "total_sites", summary.TotalSites, "failed", summary.Failed)
	}

	body, err := json.Marshal(result)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	a, err := app.New(context.Background(), cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to start service", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	h := &handler{refresher: a.Service, logger: logger}
	lambda.Start(h.handle)
}
