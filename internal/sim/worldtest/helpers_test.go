package worldtest

import (
	"testing"

	"skyrise.dev/internal/protocol"
	"skyrise.dev/internal/sim/encoding"
)

// actionResultCode returns "" when the ACTION_RESULT for ref reports ok,
// the failure code otherwise.
func actionResultCode(st protocol.StateMsg, ref string) string {
	for _, e := range st.Events {
		if typ, _ := e["type"].(string); typ != "ACTION_RESULT" {
			continue
		}
		if got, _ := e["id"].(string); got != ref {
			continue
		}
		if ok, _ := e["ok"].(bool); ok {
			return ""
		}
		if code, _ := e["code"].(string); code != "" {
			return code
		}
		return "E_INTERNAL"
	}
	return "E_INTERNAL"
}

// actionResultNumber pulls a numeric payload field off the ACTION_RESULT
// for ref. JSON round-tripping turns all numbers into float64.
func actionResultNumber(st protocol.StateMsg, ref, key string) (float64, bool) {
	for _, e := range st.Events {
		if typ, _ := e["type"].(string); typ != "ACTION_RESULT" {
			continue
		}
		if got, _ := e["id"].(string); got != ref {
			continue
		}
		v, ok := e[key].(float64)
		return v, ok
	}
	return 0, false
}

func hasEvent(st protocol.StateMsg, typ string) bool {
	for _, e := range st.Events {
		if got, _ := e["type"].(string); got == typ {
			return true
		}
	}
	return false
}

func findFacility(st protocol.StateMsg, id int) *protocol.FacilityObs {
	for i := range st.Facilities {
		if st.Facilities[i].ID == id {
			return &st.Facilities[i]
		}
	}
	return nil
}

func findFacilityByType(st protocol.StateMsg, key string) *protocol.FacilityObs {
	for i := range st.Facilities {
		if st.Facilities[i].Type == key {
			return &st.Facilities[i]
		}
	}
	return nil
}

// decodeGridRows expands the encoded grid rows into [floor][column]state,
// with index 0 at the grid's bottom floor.
func decodeGridRows(t *testing.T, g protocol.GridObs) [][]uint16 {
	t.Helper()
	if g.RowEncoding != "RLE" {
		t.Fatalf("row encoding=%q want RLE", g.RowEncoding)
	}
	if len(g.Rows) != g.Floors {
		t.Fatalf("rows=%d floors=%d", len(g.Rows), g.Floors)
	}
	out := make([][]uint16, len(g.Rows))
	for i, enc := range g.Rows {
		cells, err := encoding.DecodeCells(enc)
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if len(cells) != g.Columns {
			t.Fatalf("row %d: cells=%d columns=%d", i, len(cells), g.Columns)
		}
		out[i] = cells
	}
	return out
}

func stepUntilTick(t *testing.T, h *Harness, target uint64) {
	t.Helper()
	for i := 0; i < 100000; i++ {
		if h.LastState().Tick >= target {
			return
		}
		h.StepNoop()
	}
	t.Fatalf("stepUntilTick: exceeded iteration limit; last=%d target=%d", h.LastState().Tick, target)
}
