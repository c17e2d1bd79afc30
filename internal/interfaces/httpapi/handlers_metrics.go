package httpapi

import (
	"net/http"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/ingest"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/telemetry"
)

// handleMetricsIngest implements POST /api/metrics. It decodes
// leniently: a metrics post is a passive record of whatever the client
// actually sent, so an extra top-level field is preserved in RawPayload
// rather than rejected.
//
// Params:
//   - w: the response writer the ingest result is written to.
//   - r: the incoming request carrying the metrics body.
func (s *server) handleMetricsIngest(w http.ResponseWriter, r *http.Request) {
	var snap telemetry.MetricsSnapshot
	raw, ok := decodeJSONRaw(w, r, &snap)
	if !ok {
		return
	}
	snap.RawPayload = raw
	clientID, _ := clientIdentityFromHeaders(r)
	out := s.Ingest.IngestMetrics(r.Context(), ingest.ClientIdentity{ClientID: clientID}, snap)
	s.recordClientActivity()
	writeJSON(w, http.StatusOK, out)
}

// handleMetricsQuery answers GET /metrics with a page of ingested
// metric snapshots and their running averages.
func (s *server) handleMetricsQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := atoiDefault(q.Get("limit"), 100)
	offset := atoiDefault(q.Get("offset"), 0)
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics":  s.Ingest.QueryMetrics(limit, offset),
		"averages": s.Ingest.Averages(),
	})
}

// handleMetricsHistory answers GET /metrics/history with hourly and
// daily aggregates plus the today/yesterday/this-week summary. The
// window is set by days (default 1) or an explicit since timestamp.
func (s *server) handleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.Clock.Now()
	days := atoiDefault(q.Get("days"), 1)
	if days <= 0 {
		days = 1
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			cutoff = t
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hourly":  s.Aggregator.HourlySince(cutoff),
		"daily":   s.Aggregator.DailySince(cutoff),
		"summary": s.Aggregator.Summary(now),
	})
}
