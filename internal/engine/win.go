package engine

type Winner string

const (
	WinnerNone     Winner = ""
	WinnerMafia    Winner = "mafia"
	WinnerCitizens Winner = "citizens"
)

type WinResult struct {
	Over          bool   `json:"isOver"`
	Winner        Winner `json:"winner"`
	AliveMafia    int    `json:"aliveMafia"`
	AliveCitizens int    `json:"aliveCitizens"`
}

// FinalSnapshot is the end-of-game report, roles included.
type FinalSnapshot struct {
	RoomID  string   `json:"roomId"`
	GameID  string   `json:"gameId"`
	Winner  Winner   `json:"winner"`
	Days    int      `json:"days"`
	Players []Player `json:"players"`
}

// Evaluate decides the game from the living players. Police and doctor
// count on the citizen side.
func Evaluate(players []Player) WinResult {
	var res WinResult
	for _, p := range players {
		if !p.Alive {
			continue
		}
		if p.Role == RoleMafia {
			res.AliveMafia++
		} else {
			res.AliveCitizens++
		}
	}

	switch {
	case res.AliveMafia >= res.AliveCitizens:
		res.Over, res.Winner = true, WinnerMafia
	case res.AliveMafia == 0:
		res.Over, res.Winner = true, WinnerCitizens
	}
	return res
}

func (s *Session) EvaluateWin() WinResult {
	return Evaluate(s.Players)
}

func (s *Session) Final(winner Winner) FinalSnapshot {
	players := make([]Player, len(s.Players))
	copy(players, s.Players)
	return FinalSnapshot{
		RoomID:  s.RoomID,
		GameID:  s.GameID,
		Winner:  winner,
		Days:    s.Day,
		Players: players,
	}
}
