package telemetry

import "time"

// MetricsSnapshot is a passive per-session latency/cost bundle posted by
// a client. The daemon does not interpret its fields beyond exposing
// them back through query endpoints and feeding the derived-average
// views; RawPayload preserves whatever the client actually sent.
type MetricsSnapshot struct {
	ID         string         `json:"id"`
	ClientID   string         `json:"client_id"`
	ReceivedAt time.Time      `json:"received_at"`

	STTMedianMS      float64 `json:"stt_median_ms"`
	STTP99MS         float64 `json:"stt_p99_ms"`
	LLMTTFTMedianMS  float64 `json:"llm_ttft_median_ms"`
	LLMTTFTP99MS     float64 `json:"llm_ttft_p99_ms"`
	TTSTTFBMedianMS  float64 `json:"tts_ttfb_median_ms"`
	TTSTTFBP99MS     float64 `json:"tts_ttfb_p99_ms"`
	EndToEndMedianMS float64 `json:"end_to_end_median_ms"`
	EndToEndP99MS    float64 `json:"end_to_end_p99_ms"`

	CostUSD             float64 `json:"cost_usd"`
	ThermalEventsCount  int     `json:"thermal_events_count"`
	NetworkEventsCount  int     `json:"network_events_count"`

	RawPayload map[string]any `json:"raw_payload,omitempty"`
}
