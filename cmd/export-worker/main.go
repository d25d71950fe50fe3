package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mmdatafocus/docgen_backend/config"
	"github.com/mmdatafocus/docgen_backend/models"
	"github.com/mmdatafocus/docgen_backend/params"
	"github.com/mmdatafocus/docgen_backend/render"
	"github.com/mmdatafocus/docgen_backend/resilience"
	"github.com/mmdatafocus/docgen_backend/workflow"
)

func main() {
	godotenv.Load()
	logger := config.GetLogger()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	pdfPolicy, err := resilience.LoadPolicyFromEnv("pdf-renderer")
	if err != nil {
		log.Fatalf("pdf renderer policy: %v", err)
	}
	pdfService, err := render.NewPDFService(pdfPolicy, logger)
	if err != nil {
		log.Fatalf("pdf renderer: %v", err)
	}

	marketPolicy, err := resilience.LoadPolicyFromEnv("market-data")
	if err != nil {
		log.Fatalf("market data policy: %v", err)
	}
	external, err := workflow.NewHTTPDataService(marketPolicy, logger)
	if err != nil {
		log.Fatalf("market data service: %v", err)
	}

	assembler := workflow.NewStandardAssembler(external)
	assembler.Register("sales-stat", salesStatDataset)

	w := &workflow.ExportWorkflow{
		Jobs:      models.NewDbJobStore(nil),
		Snapshots: models.NewDbSnapshotStore(nil),
		Storage:   workflow.NewGCSStorage(),
		Data:      assembler,
		Renderers: map[models.OutputFormat]render.Renderer{
			models.OutputFormatPDF:  pdfService,
			models.OutputFormatCSV:  render.NewCSVRenderer(),
			models.OutputFormatXLSX: render.NewExcelRenderer(),
		},
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	sweeper := workflow.NewStaleJobSweeper(w.Jobs, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	if strings.TrimSpace(os.Getenv("ENABLE_JOB_DISPATCH_CONSUMER")) != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := workflow.RunDispatchConsumer(ctx, w, logger); err != nil && ctx.Err() == nil {
				config.LogError(logger, "main", "RunDispatchConsumer", "", nil, err)
			}
		}()
	}

	log.Printf("export worker started (pid=%d)", os.Getpid())
	<-ctx.Done()
	log.Printf("shutdown signal received; waiting for in-flight work")
	wg.Wait()
}

// salesStatDataset builds the sales statistics dataset, enriched with the
// demand forecast for the requested period.
func salesStatDataset(ctx context.Context, external workflow.ExternalDataService, safe map[string]params.Value) (*render.Table, error) {
	from := ""
	to := ""
	if v, ok := safe["fromDate"]; ok && v.Kind == params.KindDate {
		from = v.Date.Format("2006-01-02")
	}
	if v, ok := safe["toDate"]; ok && v.Kind == params.KindDate {
		to = v.Date.Format("2006-01-02")
	}

	forecast, err := external.GetForecast(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &render.Table{
		Title:   "Sales Statistics",
		Headers: []string{"period_from", "period_to", "forecast"},
		Rows: [][]interface{}{
			{from, to, string(forecast)},
		},
	}, nil
}
