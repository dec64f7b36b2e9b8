package network

// 帧格式: 2字节消息ID + 2字节数据长度 + JSON数据
const (
	MsgTypeHeartbeat = 1

	// 客户端 -> 服务端
	MsgTypeChat         = 101
	MsgTypeStartGame    = 201
	MsgTypeSubmitPuzzle = 202
	MsgTypeRequestHint  = 203
	MsgTypeSubmitMeta   = 204
	MsgTypeSubmitFinal  = 205

	// 服务端 -> 客户端
	MsgTypeRoomEvent    = 301
	MsgTypeActionResult = 302
	MsgTypeError        = 401
)

type ChatPayload struct {
	Message string `json:"message"`
}

type PuzzlePayload struct {
	Continent string `json:"continent"`
	Answer    string `json:"answer"`
}

type HintPayload struct {
	Continent string `json:"continent"`
}

// AnswerPayload is used by both meta and final submissions.
type AnswerPayload struct {
	Answer string `json:"answer"`
}

// ActionResult acknowledges a client action that succeeded.
type ActionResult struct {
	MsgID     uint16 `json:"msgId"`
	Success   bool   `json:"success"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
	TimerSec  *int   `json:"timerSec,omitempty"`
}

type ErrorPayload struct {
	MsgID   uint16 `json:"msgId,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
