package observer

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"

	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/catalogs"
	"skyrise.dev/internal/sim/world"
)

// Server is the read-only, loopback-only observation surface. It answers
// one-shot status requests from operators and local tooling; live play
// goes through the agent WS endpoint instead.
type Server struct {
	world *world.World
	cats  *catalogs.Catalogs
	log   *log.Logger
}

func NewServer(w *world.World, cats *catalogs.Catalogs, logger *log.Logger) *Server {
	return &Server{world: w, cats: cats, log: logger}
}

// StatusResponse is the body of GET /v1/state.
type StatusResponse struct {
	ProtocolVersion string                  `json:"protocol_version"`
	TowerID         string                  `json:"tower_id"`
	Tick            uint64                  `json:"tick"`
	TowerParams     protocol.TowerParams    `json:"tower_params"`
	Catalogs        protocol.CatalogDigests `json:"catalogs"`
	FacilityTypes   []string                `json:"facility_types"`
	Metrics         world.WorldMetrics      `json:"metrics"`
}

// StatusHandler reports tower parameters and the latest metrics snapshot.
// Everything it reads is either immutable after startup or published
// atomically by the world loop, so no channel round-trip is needed.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		m := s.world.Metrics()
		resp := StatusResponse{
			ProtocolVersion: protocol.Version,
			TowerID:         cfg.ID,
			Tick:            s.world.CurrentTick(),
			TowerParams: protocol.TowerParams{
				TickRateHz:  cfg.Tune.TickRateHz,
				DayTicks:    cfg.Tune.DayTicks,
				Seed:        cfg.Seed,
				Floors:      m.Floors,
				Columns:     m.Columns,
				GroundFloor: 0,
			},
			Catalogs: protocol.CatalogDigests{
				FacilityTypes: protocol.DigestRef{
					Digest: s.cats.Facilities.PaletteDigest,
					Count:  len(s.cats.Facilities.Palette),
				},
				AdjacencyRules: protocol.DigestRef{
					Digest: s.cats.Adjacency.Digest,
					Count:  len(s.cats.Adjacency.Rules),
				},
			},
			FacilityTypes: s.cats.Facilities.Palette,
			Metrics:       m,
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// HealthHandler is a liveness probe: 200 with the current tick once the
// world loop is stepping.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"ok":   true,
			"tick": s.world.CurrentTick(),
		})
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
