package domain

import "github.com/park285/Cheese-Chess-Server/internal/chess"

// User is a registered account. Password holds the bcrypt hash, never the
// plain text.
type User struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// AuthToken binds an opaque session token to a username.
type AuthToken struct {
	Token    string `json:"authToken"`
	Username string `json:"username"`
}

// GameRecord is a named game with its two seats and the current state.
// An empty seat is nil.
type GameRecord struct {
	GameID        int         `json:"gameID"`
	WhiteUsername *string     `json:"whiteUsername"`
	BlackUsername *string     `json:"blackUsername"`
	GameName      string      `json:"gameName"`
	Game          *chess.Game `json:"game"`
}

// Seat returns the username at team's seat, or "" when empty.
func (r *GameRecord) Seat(team chess.TeamColor) string {
	p := r.WhiteUsername
	if team == chess.Black {
		p = r.BlackUsername
	}
	if p == nil {
		return ""
	}
	return *p
}

// SetSeat fills team's seat; an empty name vacates it.
func (r *GameRecord) SetSeat(team chess.TeamColor, username string) {
	var p *string
	if username != "" {
		p = &username
	}
	if team == chess.Black {
		r.BlackUsername = p
		return
	}
	r.WhiteUsername = p
}

// TeamOf reports which seat username occupies. White wins ties.
func (r *GameRecord) TeamOf(username string) (chess.TeamColor, bool) {
	switch username {
	case r.Seat(chess.White):
		return chess.White, username != ""
	case r.Seat(chess.Black):
		return chess.Black, username != ""
	}
	return chess.White, false
}

// Clone deep-copies the record so callers cannot alias stored state.
func (r *GameRecord) Clone() *GameRecord {
	if r == nil {
		return nil
	}
	out := &GameRecord{GameID: r.GameID, GameName: r.GameName}
	out.SetSeat(chess.White, r.Seat(chess.White))
	out.SetSeat(chess.Black, r.Seat(chess.Black))
	if r.Game != nil {
		out.Game = r.Game.Clone()
	}
	return out
}
