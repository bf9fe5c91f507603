// path: fairy_chess/internal/game/history.go
package game

import "sort"

// MoveRecord is one committed move in canonical coordinates.
type MoveRecord struct {
	Seq      int      `json:"seq"`
	Team     Team     `json:"team"`
	From     Location `json:"from"`
	To       Location `json:"to"`
	Move     string   `json:"move"`
	Captured []int    `json:"captured,omitempty"`
}

// history is the append-only log of a game's committed moves.
type history struct {
	records []MoveRecord
}

func (h *history) record(team Team, from, to Location, move string, captured []int) MoveRecord {
	rec := MoveRecord{
		Seq:      len(h.records) + 1,
		Team:     team,
		From:     from,
		To:       to,
		Move:     move,
		Captured: captured,
	}
	h.records = append(h.records, rec)
	return rec
}

func (h *history) Len() int { return len(h.records) }

func (h *history) snapshot() []MoveRecord {
	out := make([]MoveRecord, len(h.records))
	for i, r := range h.records {
		out[i] = r
		if len(r.Captured) > 0 {
			out[i].Captured = append([]int(nil), r.Captured...)
		}
	}
	return out
}

// capturedIDs lists, ascending, the ids on before that are missing from after.
func capturedIDs(before, after *Board) []int {
	remaining := map[int]bool{}
	after.Each(func(_ Location, pc *PieceInstance) {
		remaining[pc.PieceID] = true
	})
	var out []int
	before.Each(func(_ Location, pc *PieceInstance) {
		if !remaining[pc.PieceID] {
			out = append(out, pc.PieceID)
		}
	})
	sort.Ints(out)
	return out
}
