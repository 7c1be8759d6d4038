package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	inner := NewTestAPI()
	scoped := NewScopedAPI("client", NewScopedAPI("bwt", inner))

	scoped.ReportBroken("fetch-html", "boom")
	scoped.ReportWarning("authenticate")
	scoped.ReportCount("polls", 3)

	broken := inner.Reports("broken")
	require.Len(t, broken, 1)
	require.Equal(t, "bwt: client: fetch-html", broken[0].Id)
	require.Equal(t, []any{"boom"}, broken[0].Params)

	warnings := inner.Reports("warning")
	require.Len(t, warnings, 1)
	require.Equal(t, "bwt: client: authenticate", warnings[0].Id)

	counts := inner.Reports("count")
	require.Len(t, counts, 1)
	require.Equal(t, []any{int64(3)}, counts[0].Params)
}
