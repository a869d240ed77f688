package auditlog_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bastionhq/bastion/auditlog"
	"github.com/bastionhq/bastion/store/memory"
)

func decodeDataURL(t *testing.T, url, wantMediaType string) []byte {
	t.Helper()
	prefix := "data:" + wantMediaType + ";base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("expected %q prefix, got %q", prefix, url[:min(len(url), 40)])
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestExportJSONSync(t *testing.T) {
	ctx := context.Background()
	l := auditlog.NewLedger(memory.New())
	seedChain(t, l, "org1", 3)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	x := auditlog.NewExporter(l, auditlog.WithExportClock(func() time.Time { return now }))

	res, err := x.Export(ctx, "org1", auditlog.ExportOptions{Format: auditlog.FormatJSON})
	if err != nil {
		t.Fatal(err)
	}
	if res.Async {
		t.Fatal("small export should be synchronous")
	}
	if res.EventCount != 3 {
		t.Fatalf("expected 3 events, got %d", res.EventCount)
	}
	if want := now.Add(time.Hour); !res.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, res.ExpiresAt)
	}

	payload := decodeDataURL(t, res.DownloadURL, "application/json")
	var entries []*auditlog.Entry
	if err := json.Unmarshal(payload, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 exported entries, got %d", len(entries))
	}
	if entries[0].EventID != "evt_1" || entries[2].EventID != "evt_3" {
		t.Fatalf("unexpected event ids: %s, %s", entries[0].EventID, entries[2].EventID)
	}
}

func TestExportCSVSync(t *testing.T) {
	ctx := context.Background()
	l := auditlog.NewLedger(memory.New())

	for _, ev := range []auditlog.Event{
		{
			EventType: auditlog.EventRoleAssigned,
			TenantID:  "org1",
			UserID:    "user1",
			ActorID:   "admin1",
			ActorIP:   "10.0.0.1",
			Details:   map[string]any{"role": "editor"},
		},
		{
			EventType: auditlog.EventPermissionDenied,
			TenantID:  "org1",
			UserID:    "user2",
			Resource:  "posts",
			Action:    "delete",
		},
	} {
		if _, err := l.Record(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	x := auditlog.NewExporter(l)
	res, err := x.Export(ctx, "org1", auditlog.ExportOptions{Format: auditlog.FormatCSV})
	if err != nil {
		t.Fatal(err)
	}

	payload := decodeDataURL(t, res.DownloadURL, "text/csv")
	lines := strings.Split(strings.TrimRight(string(payload), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	wantHeader := "eventId,eventType,timestamp,userId,tenantId,resource,action,actorId,actorIp,actorUserAgent,details"
	if lines[0] != wantHeader {
		t.Fatalf("unexpected header:\n got %s\nwant %s", lines[0], wantHeader)
	}
	if !strings.HasPrefix(lines[1], "evt_1,role.assigned,") {
		t.Fatalf("unexpected first row: %s", lines[1])
	}
	if !strings.Contains(lines[2], "posts,delete") {
		t.Fatalf("unexpected second row: %s", lines[2])
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	l := auditlog.NewLedger(memory.New())
	x := auditlog.NewExporter(l)
	if _, err := x.Export(context.Background(), "org1", auditlog.ExportOptions{Format: "xml"}); err == nil {
		t.Fatal("expected an error for unsupported format")
	}
}

// bulkStore reports a large matching count and fails the test if the
// export path tries to fetch the rows anyway.
type bulkStore struct {
	auditlog.Store
	t     *testing.T
	count int64
}

func (s *bulkStore) CountEntries(context.Context, *auditlog.QueryFilter) (int64, error) {
	return s.count, nil
}

func (s *bulkStore) ListEntries(context.Context, *auditlog.QueryFilter) ([]*auditlog.Entry, error) {
	s.t.Fatal("async export must not fetch entries")
	return nil, nil
}

type captureDispatcher struct {
	job *auditlog.ExportJob
}

func (d *captureDispatcher) Dispatch(_ context.Context, job *auditlog.ExportJob) error {
	d.job = job
	return nil
}

func TestExportLargeGoesAsync(t *testing.T) {
	ctx := context.Background()
	l := auditlog.NewLedger(&bulkStore{Store: memory.New(), t: t, count: 15000})
	dispatcher := &captureDispatcher{}
	x := auditlog.NewExporter(l, auditlog.WithDispatcher(dispatcher))

	res, err := x.Export(ctx, "org1", auditlog.ExportOptions{Format: auditlog.FormatJSON})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Async {
		t.Fatal("expected async result")
	}
	if res.Status != "pending" {
		t.Fatalf("expected pending status, got %q", res.Status)
	}
	if !strings.HasPrefix(res.JobID, "job_") {
		t.Fatalf("expected job_ id, got %q", res.JobID)
	}
	if res.DownloadURL != "" {
		t.Fatal("async result must not carry a download link")
	}
	if dispatcher.job == nil || dispatcher.job.Count != 15000 {
		t.Fatalf("dispatcher did not receive the job: %+v", dispatcher.job)
	}
}

func TestExportAtThresholdGoesAsync(t *testing.T) {
	ctx := context.Background()
	l := auditlog.NewLedger(&bulkStore{Store: memory.New(), t: t, count: auditlog.DefaultExportThreshold})
	dispatcher := &captureDispatcher{}
	x := auditlog.NewExporter(l, auditlog.WithDispatcher(dispatcher))

	res, err := x.Export(ctx, "org1", auditlog.ExportOptions{Format: auditlog.FormatCSV})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Async {
		t.Fatalf("count equal to the threshold must dispatch a job")
	}
}

func TestExportWithoutDispatcherFails(t *testing.T) {
	l := auditlog.NewLedger(&bulkStore{Store: memory.New(), t: t, count: 15000})
	x := auditlog.NewExporter(l)
	if _, err := x.Export(context.Background(), "org1", auditlog.ExportOptions{Format: auditlog.FormatJSON}); err == nil {
		t.Fatal("expected an error without a dispatcher")
	}
}
