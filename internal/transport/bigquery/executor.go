// Package bigquery runs SQL statements against BigQuery through the REST v2 API.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/metrics"
)

const (
	defaultPageSize     = 1000
	defaultPollInterval = 500 * time.Millisecond
	// serverWait is how long each jobs.query / getQueryResults call may block server-side.
	serverWait = 10 * time.Second
)

// Config holds the executor settings.
type Config struct {
	// ProjectID is the billing project. Defaults to the service account's project.
	ProjectID       string
	Location        string
	CredentialsJSON []byte
	// Endpoint overrides the API base URL (emulators, tests). Without credentials it disables auth.
	Endpoint     string
	PageSize     int64
	PollInterval time.Duration
	// Timeout bounds a whole Execute call including polling. Zero leaves it to the caller's context.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Executor implements search.Executor.
type Executor struct {
	svc          *bq.Service
	projectID    string
	location     string
	pageSize     int64
	pollInterval time.Duration
	timeout      time.Duration
	logger       *zap.Logger
}

// NewExecutor builds the REST client. Credentials are validated before any network call.
func NewExecutor(ctx context.Context, cfg Config) (*Executor, error) {
	var opts []option.ClientOption
	projectID := cfg.ProjectID

	switch {
	case len(cfg.CredentialsJSON) > 0:
		sa, err := ParseServiceAccount(cfg.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		if projectID == "" {
			projectID = sa.ProjectID
		}
		ts, err := tokenSource(ctx, cfg.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithTokenSource(ts))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}

	svc, err := bq.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery service: %w", err)
	}

	e := &Executor{
		svc:          svc,
		projectID:    projectID,
		location:     cfg.Location,
		pageSize:     cfg.PageSize,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		logger:       cfg.Logger,
	}
	if e.pageSize <= 0 {
		e.pageSize = defaultPageSize
	}
	if e.pollInterval <= 0 {
		e.pollInterval = defaultPollInterval
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e, nil
}

// ProjectID returns the billing project.
func (e *Executor) ProjectID() string { return e.projectID }

// Execute runs a Standard SQL statement and returns every row keyed by column name.
// It waits for the job to complete and follows page tokens until the result is exhausted.
func (e *Executor) Execute(ctx context.Context, statement string) ([]map[string]any, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	rows, bytesProcessed, err := e.execute(ctx, statement)
	metrics.WarehouseQueryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.WarehouseQueriesTotal.WithLabelValues("error").Inc()
		e.logger.Warn("Warehouse query failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return nil, err
	}

	metrics.WarehouseQueriesTotal.WithLabelValues("success").Inc()
	metrics.WarehouseRowsReturned.Observe(float64(len(rows)))
	metrics.WarehouseBytesProcessed.Add(float64(bytesProcessed))

	e.logger.Info("Warehouse query completed",
		zap.Int("rows", len(rows)),
		zap.Int64("bytes_processed", bytesProcessed),
		zap.Duration("duration", time.Since(start)),
	)
	return rows, nil
}

func (e *Executor) execute(ctx context.Context, statement string) ([]map[string]any, int64, error) {
	req := &bq.QueryRequest{
		Query:        statement,
		UseLegacySql: googleapi.Bool(false),
		Location:     e.location,
		MaxResults:   e.pageSize,
		TimeoutMs:    serverWait.Milliseconds(),
	}

	resp, err := e.svc.Jobs.Query(e.projectID, req).Context(ctx).Do()
	if err != nil {
		return nil, 0, wrapError("jobs.query", err)
	}

	page := resultPage{
		complete:  resp.JobComplete,
		schema:    resp.Schema,
		rows:      resp.Rows,
		pageToken: resp.PageToken,
		bytes:     resp.TotalBytesProcessed,
	}
	jobID, location := "", e.location
	if resp.JobReference != nil {
		jobID = resp.JobReference.JobId
		if resp.JobReference.Location != "" {
			location = resp.JobReference.Location
		}
	}

	for !page.complete {
		if jobID == "" {
			return nil, 0, domain.NewTransportError(domain.CollaboratorWarehouse,
				errors.New("query incomplete and no job reference returned"))
		}
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(e.pollInterval):
		}
		if page, err = e.results(ctx, jobID, location, ""); err != nil {
			return nil, 0, err
		}
	}

	var out []map[string]any
	bytesProcessed := page.bytes
	for {
		if err := page.appendTo(&out); err != nil {
			return nil, 0, domain.NewTransportError(domain.CollaboratorWarehouse, err)
		}
		if page.pageToken == "" {
			break
		}
		next, err := e.results(ctx, jobID, location, page.pageToken)
		if err != nil {
			return nil, 0, err
		}
		if next.schema == nil {
			next.schema = page.schema
		}
		page = next
	}
	return out, bytesProcessed, nil
}

type resultPage struct {
	complete  bool
	schema    *bq.TableSchema
	rows      []*bq.TableRow
	pageToken string
	bytes     int64
}

func (p resultPage) appendTo(out *[]map[string]any) error {
	if len(p.rows) == 0 {
		return nil
	}
	if p.schema == nil {
		return errors.New("rows returned without a schema")
	}
	for i, r := range p.rows {
		rec, err := convertRow(p.schema.Fields, r)
		if err != nil {
			return fmt.Errorf("row %d: %w", len(*out)+i, err)
		}
		*out = append(*out, rec)
	}
	return nil
}

func (e *Executor) results(ctx context.Context, jobID, location, pageToken string) (resultPage, error) {
	call := e.svc.Jobs.GetQueryResults(e.projectID, jobID).
		MaxResults(e.pageSize).
		TimeoutMs(serverWait.Milliseconds()).
		Context(ctx)
	if location != "" {
		call = call.Location(location)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return resultPage{}, wrapError("jobs.getQueryResults", err)
	}
	return resultPage{
		complete:  resp.JobComplete,
		schema:    resp.Schema,
		rows:      resp.Rows,
		pageToken: resp.PageToken,
		bytes:     resp.TotalBytesProcessed,
	}, nil
}

// wrapError tags API and network failures as warehouse transport errors.
// Context cancellation is passed through untouched.
func wrapError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return domain.NewTransportError(domain.CollaboratorWarehouse,
			fmt.Errorf("%s: HTTP %d: %s: %w", op, gerr.Code, gerr.Message, err))
	}
	return domain.NewTransportError(domain.CollaboratorWarehouse, fmt.Errorf("%s: %w", op, err))
}
