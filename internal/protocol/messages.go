package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	TowerParams     TowerParams    `json:"tower_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type TowerParams struct {
	TickRateHz  int   `json:"tick_rate_hz"`
	DayTicks    int   `json:"day_ticks"`
	Seed        int64 `json:"seed"`
	Floors      int   `json:"floors"`
	Columns     int   `json:"columns"`
	GroundFloor int   `json:"ground_floor"`
}

type CatalogDigests struct {
	FacilityTypes  DigestRef `json:"facility_types"`
	AdjacencyRules DigestRef `json:"adjacency_rules"`
	TuningDigest   string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}
