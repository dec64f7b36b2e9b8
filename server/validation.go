// server/validation.go
package server

import (
	"strings"
	"unicode/utf8"

	"github.com/wfunc/atlas/models"
	"github.com/wfunc/atlas/room"
)

const (
	MaxPseudoLength  = 50
	MaxAnswerLength  = 200
	MaxChatLength    = 200
	maxRequestBytes  = 4096
	joinCodeRequired = "Join code required"
)

type CreateRoomRequest struct {
	Pseudo string `json:"pseudo"`
}

type JoinRequest struct {
	Pseudo   string `json:"pseudo"`
	JoinCode string `json:"joinCode"`
}

type SubmitRequest struct {
	Answer   string `json:"answer"`
	PlayerID string `json:"playerId,omitempty"`
}

type RoomResponse struct {
	Room     models.RoomSnapshot `json:"room"`
	PlayerID string              `json:"playerId"`
}

func validatePseudo(pseudo string) (string, error) {
	pseudo = strings.TrimSpace(pseudo)
	if pseudo == "" {
		return "", payloadError("Pseudo required")
	}
	if utf8.RuneCountInString(pseudo) > MaxPseudoLength {
		return "", payloadError("Pseudo too long")
	}
	return pseudo, nil
}

func validateJoinCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", payloadError(joinCodeRequired)
	}
	if utf8.RuneCountInString(code) != room.JoinCodeLength {
		return "", payloadError("Join code must be 6 characters")
	}
	return code, nil
}

func validateAnswer(answer string) error {
	if strings.TrimSpace(answer) == "" {
		return payloadError("Answer required")
	}
	if utf8.RuneCountInString(answer) > MaxAnswerLength {
		return payloadError("Answer too long")
	}
	return nil
}

func validateChat(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", payloadError("Message required")
	}
	if utf8.RuneCountInString(message) > MaxChatLength {
		return "", payloadError("Message too long")
	}
	return message, nil
}

// parseContinent 未知大洲按引擎错误处理
func parseContinent(raw string) (models.Continent, error) {
	c, err := models.ParseContinent(raw)
	if err != nil {
		return "", room.ErrInvalidContinent
	}
	return c, nil
}
