// models/player.go
package models

// Player 房间中的玩家，按ID判等
type Player struct {
	ID        string `json:"id"`
	Pseudo    string `json:"pseudo"`
	Role      string `json:"role"`
	Connected bool   `json:"connected"`
}

// NewPlayer returns a connected player with an empty role.
func NewPlayer(id, pseudo string) Player {
	return Player{ID: id, Pseudo: pseudo, Connected: true}
}
