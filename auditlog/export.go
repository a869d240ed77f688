package auditlog

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bastionhq/bastion/id"
)

// Format selects the export serialization.
type Format string

const (
	// FormatJSON exports entries as a JSON array.
	FormatJSON Format = "json"

	// FormatCSV exports entries as RFC 4180 CSV.
	FormatCSV Format = "csv"
)

// Valid reports whether the format is one of the supported values.
func (f Format) Valid() bool { return f == FormatJSON || f == FormatCSV }

// DefaultExportThreshold is the matching-row count at which export
// switches from synchronous data-URL delivery to an asynchronous job.
const DefaultExportThreshold = 10000

// DefaultLinkTTL bounds the validity of synchronous download links.
const DefaultLinkTTL = time.Hour

// csvHeader is the fixed column order of CSV exports.
var csvHeader = []string{
	"eventId", "eventType", "timestamp", "userId", "tenantId",
	"resource", "action", "actorId", "actorIp", "actorUserAgent", "details",
}

// ExportOptions narrows which entries an export covers.
type ExportOptions struct {
	Format          Format
	EventType       string
	TimestampAfter  *time.Time
	TimestampBefore *time.Time
}

// ExportJob describes an asynchronous export handed off to a dispatcher.
type ExportJob struct {
	ID       id.ExportJobID `json:"id"`
	TenantID string         `json:"tenant_id"`
	Options  ExportOptions  `json:"options"`
	Count    int64          `json:"count"`
}

// JobDispatcher hands large exports to an out-of-process worker. The
// dispatcher must durably accept the job before returning; the job id is
// only surfaced to the caller once Dispatch succeeds.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job *ExportJob) error
}

// ExportResult is the outcome of an export request. Exactly one of the
// two shapes is populated: a synchronous download link, or an async job
// handle (Async true, Status "pending").
type ExportResult struct {
	DownloadURL string    `json:"download_url,omitempty"`
	EventCount  int64     `json:"event_count,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`

	Async  bool   `json:"-"`
	JobID  string `json:"job_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// Exporter produces audit exports over a Ledger. Small result sets are
// serialized inline and returned as base64 data URLs; result sets at or
// above the threshold are delegated to the job dispatcher without being
// fetched.
type Exporter struct {
	ledger     *Ledger
	dispatcher JobDispatcher
	threshold  int64
	linkTTL    time.Duration
	clock      func() time.Time
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithThreshold overrides the sync/async row threshold.
func WithThreshold(n int64) ExporterOption {
	return func(x *Exporter) { x.threshold = n }
}

// WithLinkTTL overrides the download-link validity window.
func WithLinkTTL(ttl time.Duration) ExporterOption {
	return func(x *Exporter) { x.linkTTL = ttl }
}

// WithDispatcher sets the async job dispatcher. Without one, exports at
// or above the threshold fail rather than silently fetching everything.
func WithDispatcher(d JobDispatcher) ExporterOption {
	return func(x *Exporter) { x.dispatcher = d }
}

// WithExportClock overrides the exporter's time source.
func WithExportClock(clock func() time.Time) ExporterOption {
	return func(x *Exporter) { x.clock = clock }
}

// NewExporter creates an Exporter over the given ledger.
func NewExporter(ledger *Ledger, opts ...ExporterOption) *Exporter {
	x := &Exporter{
		ledger:    ledger,
		threshold: DefaultExportThreshold,
		linkTTL:   DefaultLinkTTL,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Export runs an export for a tenant. The download URL (or job id) is
// only returned once the payload (or job record) is fully materialized;
// a canceled context never leaves a half-written artifact behind a
// returned link.
func (x *Exporter) Export(ctx context.Context, tenantID string, opts ExportOptions) (*ExportResult, error) {
	if !opts.Format.Valid() {
		return nil, fmt.Errorf("auditlog: export: unsupported format %q", opts.Format)
	}

	count, err := x.ledger.Count(ctx, tenantID, CountOptions{
		EventType:       opts.EventType,
		TimestampAfter:  opts.TimestampAfter,
		TimestampBefore: opts.TimestampBefore,
	})
	if err != nil {
		return nil, err
	}

	if count >= x.threshold {
		return x.dispatch(ctx, tenantID, opts, count)
	}

	entries, err := x.ledger.store.ListEntries(ctx, &QueryFilter{
		TenantID:        tenantID,
		EventType:       opts.EventType,
		TimestampAfter:  opts.TimestampAfter,
		TimestampBefore: opts.TimestampBefore,
	})
	if err != nil {
		return nil, fmt.Errorf("auditlog: export: list entries: %w", err)
	}
	for _, e := range entries {
		e.EventID = FormatEventID(e.Seq)
	}

	payload, mediaType, err := serialize(entries, opts.Format)
	if err != nil {
		return nil, fmt.Errorf("auditlog: export: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &ExportResult{
		DownloadURL: dataURL(mediaType, payload),
		EventCount:  int64(len(entries)),
		ExpiresAt:   x.clock().UTC().Add(x.linkTTL),
	}, nil
}

func (x *Exporter) dispatch(ctx context.Context, tenantID string, opts ExportOptions, count int64) (*ExportResult, error) {
	if x.dispatcher == nil {
		return nil, fmt.Errorf("auditlog: export: %d rows exceed the synchronous threshold and no job dispatcher is configured", count)
	}
	job := &ExportJob{
		ID:       id.NewExportJobID(),
		TenantID: tenantID,
		Options:  opts,
		Count:    count,
	}
	if err := x.dispatcher.Dispatch(ctx, job); err != nil {
		return nil, fmt.Errorf("auditlog: export: dispatch job: %w", err)
	}
	return &ExportResult{
		Async:  true,
		JobID:  job.ID.String(),
		Status: "pending",
	}, nil
}

func serialize(entries []*Entry, format Format) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		data, err := json.Marshal(entries)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	case FormatCSV:
		data, err := serializeCSV(entries)
		if err != nil {
			return nil, "", err
		}
		return data, "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported format %q", format)
	}
}

// serializeCSV writes entries in the fixed column order. encoding/csv
// applies standard quoting for embedded delimiters, quotes, and newlines.
func serializeCSV(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		details := ""
		if len(e.Details) > 0 {
			data, err := json.Marshal(e.Details)
			if err != nil {
				return nil, fmt.Errorf("marshal details for %s: %w", FormatEventID(e.Seq), err)
			}
			details = string(data)
		}
		record := []string{
			FormatEventID(e.Seq),
			e.EventType,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.UserID,
			e.TenantID,
			e.Resource,
			e.Action,
			e.ActorID,
			e.ActorIP,
			e.ActorUserAgent,
			details,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func dataURL(mediaType string, payload []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(payload)
}
