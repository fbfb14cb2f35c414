package chessdto

import "github.com/park285/Cheese-Chess-Server/internal/domain"

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult answers both registration and login.
type AuthResult struct {
	Username  string `json:"username"`
	AuthToken string `json:"authToken"`
}

type CreateGameRequest struct {
	GameName string `json:"gameName"`
}

type CreateGameResult struct {
	GameID int `json:"gameID"`
}

type JoinGameRequest struct {
	PlayerColor string `json:"playerColor"`
	GameID      int    `json:"gameID"`
}

type ListGamesResult struct {
	Games []*domain.GameRecord `json:"games"`
}

// Empty is the `{}` body of calls that return nothing.
type Empty struct{}
