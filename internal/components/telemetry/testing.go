package telemetry

import "sync"

// Report is a single report captured by TestAPI.
type Report struct {
	Kind   string
	Id     string
	Params []any
}

// TestAPI records every report so tests can assert on what was reported.
// It also forwards to slog so test output stays readable.
type TestAPI struct {
	mu      sync.Mutex
	reports []Report
	slog    SlogAPI
}

func NewTestAPI() *TestAPI {
	return &TestAPI{}
}

func (t *TestAPI) add(kind, id string, params []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reports = append(t.reports, Report{Kind: kind, Id: id, Params: params})
}

func (t *TestAPI) ReportBroken(id string, params ...any) {
	t.add("broken", id, params)
	t.slog.ReportBroken(id, params...)
}

func (t *TestAPI) ReportWarning(id string, params ...any) {
	t.add("warning", id, params)
	t.slog.ReportWarning(id, params...)
}

func (t *TestAPI) ReportDebug(msg string, params ...any) {
	t.add("debug", msg, params)
}

func (t *TestAPI) ReportCount(id string, count int64) {
	t.add("count", id, []any{count})
}

// Reports returns every report of the given kind ("broken", "warning", "debug", "count").
func (t *TestAPI) Reports(kind string) []Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := []Report{}
	for _, r := range t.reports {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
