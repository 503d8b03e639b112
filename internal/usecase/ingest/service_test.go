package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/logweave/internal/domain"
	"github.com/kailas-cloud/logweave/internal/logger"
)

// --- Mocks ---

type mockDecoder struct {
	batch    domain.Batch
	clientID string
	err      error
}

func (m *mockDecoder) Decode(_ string, _ []byte) (domain.Batch, string, error) {
	if m.err != nil {
		return domain.Batch{}, "", m.err
	}
	return m.batch, m.clientID, nil
}

type mockAppender struct {
	appended [][]domain.Entry
	err      error
}

func (m *mockAppender) Append(_ context.Context, entries []domain.Entry) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.appended = append(m.appended, entries)
	return len(entries), nil
}

type mockIndexer struct {
	indexed [][]domain.Entry
	ids     []string
	perCall bool
}

func (m *mockIndexer) Index(_ context.Context, entries []domain.Entry) []string {
	m.indexed = append(m.indexed, entries)
	if m.perCall {
		ids := make([]string, len(entries))
		for i := range ids {
			ids[i] = fmt.Sprintf("vec-%d", i)
		}
		return ids
	}
	return m.ids
}

func validRecords(n int) []domain.WireRecord {
	recs := make([]domain.WireRecord, n)
	for i := range recs {
		recs[i] = domain.WireRecord{
			Timestamp: 1625097600000 + int64(i),
			Severity:  "INFO",
			Body:      fmt.Sprintf("event %d", i),
		}
	}
	return recs
}

func newTestService(dec *mockDecoder, app *mockAppender, ix *mockIndexer, reject bool) *Service {
	return New(dec, app, ix, reject, zap.NewNop())
}

// --- Tests ---

func TestIngestSuccess(t *testing.T) {
	dec := &mockDecoder{batch: domain.Batch{Records: validRecords(3)}, clientID: "client-a"}
	app := &mockAppender{}
	ix := &mockIndexer{perCall: true}
	svc := newTestService(dec, app, ix, false)

	report, err := svc.Ingest(context.Background(), "application/json+encrypted", []byte("{}"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Status != StatusSuccess || report.Processed != 3 || report.Indexed != 3 {
		t.Errorf("report = %+v", report)
	}

	if len(app.appended) != 1 || len(app.appended[0]) != 3 {
		t.Fatalf("appended = %v", app.appended)
	}
	for _, e := range app.appended[0] {
		if e.ClientID != "client-a" {
			t.Errorf("entry client ID = %q", e.ClientID)
		}
	}
}

func TestIngestSkipsInvalidRecords(t *testing.T) {
	records := validRecords(4)
	records[1].Body = ""     // invalid
	records[3].Severity = "" // invalid
	dec := &mockDecoder{batch: domain.Batch{Records: records}, clientID: "client-a"}
	app := &mockAppender{}
	svc := newTestService(dec, app, &mockIndexer{}, false)

	report, err := svc.Ingest(context.Background(), "application/json+encrypted", []byte("{}"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Processed != 2 {
		t.Errorf("processed = %d, want 2", report.Processed)
	}
	if len(app.appended[0]) != 2 {
		t.Errorf("appended %d entries, want 2", len(app.appended[0]))
	}
}

func TestIngestZeroSurvivorsIsWarning(t *testing.T) {
	records := []domain.WireRecord{{Body: "no severity"}, {Severity: "INFO"}}
	dec := &mockDecoder{batch: domain.Batch{Records: records}, clientID: "client-a"}
	app := &mockAppender{}
	ix := &mockIndexer{}
	svc := newTestService(dec, app, ix, false)

	report, err := svc.Ingest(context.Background(), "application/json+encrypted", []byte("{}"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Status != StatusWarning || report.Processed != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(app.appended) != 0 {
		t.Error("empty batch was persisted")
	}
	if len(ix.indexed) != 0 {
		t.Error("empty batch was indexed")
	}
}

func TestIngestDecodeFailure(t *testing.T) {
	dec := &mockDecoder{err: fmt.Errorf("bad payload: %w", domain.ErrDecode)}
	svc := newTestService(dec, &mockAppender{}, &mockIndexer{}, false)

	_, err := svc.Ingest(context.Background(), "application/json", []byte("junk"))
	if !errors.Is(err, domain.ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestIngestUnattributedAccepted(t *testing.T) {
	dec := &mockDecoder{batch: domain.Batch{Records: validRecords(1)}, clientID: ""}
	app := &mockAppender{}
	svc := newTestService(dec, app, &mockIndexer{}, false)

	report, err := svc.Ingest(context.Background(), "application/json", []byte("{}"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Processed != 1 {
		t.Errorf("processed = %d", report.Processed)
	}
	if app.appended[0][0].ClientID != domain.ClientUnknown {
		t.Errorf("client ID = %q, want %q", app.appended[0][0].ClientID, domain.ClientUnknown)
	}
}

func TestIngestUnattributedRejected(t *testing.T) {
	dec := &mockDecoder{batch: domain.Batch{Records: validRecords(1)}, clientID: ""}
	app := &mockAppender{}
	svc := newTestService(dec, app, &mockIndexer{}, true)

	_, err := svc.Ingest(context.Background(), "application/json", []byte("{}"))
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("err = %v, want ErrAuthentication", err)
	}
	if len(app.appended) != 0 {
		t.Error("rejected batch was persisted")
	}
}

func TestIngestPersistFailureIsFatal(t *testing.T) {
	dec := &mockDecoder{batch: domain.Batch{Records: validRecords(2)}, clientID: "client-a"}
	app := &mockAppender{err: fmt.Errorf("insert: %w", domain.ErrStoreFailure)}
	ix := &mockIndexer{}
	svc := newTestService(dec, app, ix, false)

	_, err := svc.Ingest(context.Background(), "application/json+encrypted", []byte("{}"))
	if !errors.Is(err, domain.ErrStoreFailure) {
		t.Errorf("err = %v, want ErrStoreFailure", err)
	}
	if len(ix.indexed) != 0 {
		t.Error("indexing attempted after persist failure")
	}
}

func TestIngestIndexFailureIsNonFatal(t *testing.T) {
	dec := &mockDecoder{batch: domain.Batch{Records: validRecords(2)}, clientID: "client-a"}
	ix := &mockIndexer{ids: nil} // indexer returns nothing
	svc := newTestService(dec, &mockAppender{}, ix, false)

	report, err := svc.Ingest(context.Background(), "application/json+encrypted", []byte("{}"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Status != StatusSuccess || report.Processed != 2 || report.Indexed != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(ix.indexed) != 1 {
		t.Error("indexing was not attempted")
	}
}

type mockHook struct {
	clientIDs []string
	counts    []int
}

func (m *mockHook) AfterPersist(_ context.Context, clientID string, entries []domain.Entry) {
	m.clientIDs = append(m.clientIDs, clientID)
	m.counts = append(m.counts, len(entries))
}

func TestIngestHooksRunAfterPersist(t *testing.T) {
	dec := &mockDecoder{batch: domain.Batch{Records: validRecords(2)}, clientID: "client-a"}
	app := &mockAppender{}
	svc := newTestService(dec, app, &mockIndexer{}, false)
	hook := &mockHook{}
	svc.AddHook(hook)

	if _, err := svc.Ingest(context.Background(), "application/json", []byte("{}")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(hook.clientIDs) != 1 || hook.clientIDs[0] != "client-a" || hook.counts[0] != 2 {
		t.Errorf("hook calls = %v %v", hook.clientIDs, hook.counts)
	}
}

func TestIngestHooksSkippedOnPersistFailure(t *testing.T) {
	dec := &mockDecoder{batch: domain.Batch{Records: validRecords(2)}, clientID: "client-a"}
	app := &mockAppender{err: fmt.Errorf("down: %w", domain.ErrStoreFailure)}
	svc := newTestService(dec, app, &mockIndexer{}, false)
	hook := &mockHook{}
	svc.AddHook(hook)

	if _, err := svc.Ingest(context.Background(), "application/json", []byte("{}")); err == nil {
		t.Fatal("expected error")
	}
	if len(hook.clientIDs) != 0 {
		t.Errorf("hook ran after failed persist: %v", hook.clientIDs)
	}
}

func TestIngestLogsThroughRequestScopedLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	recs := append(validRecords(1), domain.WireRecord{Timestamp: 1}) // no severity or body
	dec := &mockDecoder{batch: domain.Batch{Records: recs}, clientID: "client-a"}
	svc := newTestService(dec, &mockAppender{}, &mockIndexer{}, false)

	ctx := logger.ContextWithLogger(context.Background(), zap.New(core))
	if _, err := svc.Ingest(ctx, "application/json", []byte("{}")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if logs.FilterMessage("record failed validation, skipped").Len() != 1 {
		t.Errorf("skip warning not routed to the request logger: %v", logs.All())
	}
}
