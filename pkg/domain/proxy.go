package domain

// ProxyEndpoint is one CORS-relay candidate. Reliability and latency are
// nudged after every attempt through it; endpoints are re-ranked but never
// deleted, a degraded relay can recover.
type ProxyEndpoint struct {
	// Template builds the relay URL: either a format string with a single
	// %s verb for the encoded target, or a prefix the encoded target is
	// appended to.
	Template          string  `yaml:"template" json:"template"`
	Reliability       float64 `yaml:"reliability" json:"reliability"`
	ObservedLatencyMs float64 `yaml:"latency_ms" json:"latency_ms"`
}
