package chessdto

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
)

func sq(t *testing.T, s string) chess.Position {
	t.Helper()
	p, err := chess.ParseSquare(s)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", s, err)
	}
	return p
}

func TestUserGameCommandRoundTrip(t *testing.T) {
	plain := chess.NewMove(sq(t, "e2"), sq(t, "e4"), nil)
	promo := chess.NewMove(sq(t, "a7"), sq(t, "a8"), chess.Promote(chess.Queen))
	underpromo := chess.NewMove(sq(t, "h2"), sq(t, "h1"), chess.Promote(chess.Knight))

	cases := []struct {
		name    string
		cmd     UserGameCommand
		wantRaw string
	}{
		{"connect", UserGameCommand{CommandType: CommandConnect, AuthToken: "tok", GameID: 7}, `"commandType":"CONNECT"`},
		{"move", UserGameCommand{CommandType: CommandMakeMove, AuthToken: "tok", GameID: 7, Move: &plain}, `"promotionPiece":null`},
		{"move queen promotion", UserGameCommand{CommandType: CommandMakeMove, AuthToken: "tok", GameID: 7, Move: &promo}, `"promotionPiece":"QUEEN"`},
		{"move knight promotion", UserGameCommand{CommandType: CommandMakeMove, AuthToken: "tok", GameID: 7, Move: &underpromo}, `"promotionPiece":"KNIGHT"`},
		{"leave", UserGameCommand{CommandType: CommandLeave, AuthToken: "tok", GameID: 7}, `"commandType":"LEAVE"`},
		{"resign", UserGameCommand{CommandType: CommandResign, AuthToken: "tok", GameID: 7}, `"commandType":"RESIGN"`},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.cmd)
		if err != nil {
			t.Fatalf("%s: marshal: %v", tc.name, err)
		}
		if !strings.Contains(string(raw), tc.wantRaw) {
			t.Fatalf("%s: %s lacks %s", tc.name, raw, tc.wantRaw)
		}
		if tc.cmd.Move == nil && strings.Contains(string(raw), `"move"`) {
			t.Fatalf("%s: move should be omitted: %s", tc.name, raw)
		}
		var got UserGameCommand
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("%s: unmarshal: %v", tc.name, err)
		}
		if !reflect.DeepEqual(got, tc.cmd) {
			t.Fatalf("%s: round trip changed the command\n got  %+v\n want %+v", tc.name, got, tc.cmd)
		}
	}
}

func TestUserGameCommandWireNames(t *testing.T) {
	raw := `{"commandType":"MAKE_MOVE","authToken":"tok","gameID":3,
		"move":{"startPosition":{"row":7,"col":2},"endPosition":{"row":8,"col":2},"promotionPiece":"QUEEN"}}`
	var cmd UserGameCommand
	if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := chess.NewMove(sq(t, "b7"), sq(t, "b8"), chess.Promote(chess.Queen))
	if cmd.CommandType != CommandMakeMove || cmd.GameID != 3 || cmd.Move == nil || !cmd.Move.Equal(want) {
		t.Fatalf("decoded %+v", cmd)
	}
}

func TestServerMessageRoundTrip(t *testing.T) {
	opened := chess.NewGame()
	if _, err := opened.MakeMove(chess.NewMove(sq(t, "e2"), sq(t, "e4"), nil)); err != nil {
		t.Fatalf("e2e4: %v", err)
	}
	cases := []struct {
		name string
		msg  *ServerMessage
	}{
		{"load new game", LoadGame(chess.NewGame())},
		{"load after e4", LoadGame(opened)},
		{"notification", Notification("alice performed the move Pawn to E4")},
		{"error", ErrorMessage("It is not your turn")},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.msg)
		if err != nil {
			t.Fatalf("%s: marshal: %v", tc.name, err)
		}
		var got ServerMessage
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("%s: unmarshal: %v", tc.name, err)
		}
		if got.ServerMessageType != tc.msg.ServerMessageType || got.Message != tc.msg.Message || got.ErrorMessage != tc.msg.ErrorMessage {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.msg)
		}
		switch {
		case tc.msg.Game == nil && got.Game != nil:
			t.Fatalf("%s: unexpected game in %s", tc.name, raw)
		case tc.msg.Game != nil && (got.Game == nil || !got.Game.Equal(tc.msg.Game)):
			t.Fatalf("%s: game changed across the wire: %s", tc.name, raw)
		}
	}
}

func TestServerMessageCarriesOnePayload(t *testing.T) {
	cases := map[string]struct {
		msg  *ServerMessage
		keys []string
	}{
		"load":         {LoadGame(chess.NewGame()), []string{"serverMessageType", "game"}},
		"notification": {Notification("Check!"), []string{"serverMessageType", "message"}},
		"error":        {ErrorMessage("Invalid move"), []string{"serverMessageType", "errorMessage"}},
	}
	for name, tc := range cases {
		raw, err := json.Marshal(tc.msg)
		if err != nil {
			t.Fatalf("%s: marshal: %v", name, err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			t.Fatalf("%s: unmarshal: %v", name, err)
		}
		if len(fields) != len(tc.keys) {
			t.Fatalf("%s: fields %v, want %v", name, fields, tc.keys)
		}
		for _, k := range tc.keys {
			if _, ok := fields[k]; !ok {
				t.Fatalf("%s: missing %q in %s", name, k, raw)
			}
		}
	}
}
