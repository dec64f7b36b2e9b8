package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/atlas/network"
)

type roomResponse struct {
	Room struct {
		ID       string   `json:"id"`
		JoinCode string   `json:"joinCode"`
		Draw     []string `json:"draw"`
	} `json:"room"`
	PlayerID string `json:"playerId"`
}

// enterRoom 没有 joinCode 时创建房间，否则加入
func enterRoom(server, pseudo, code string) (*roomResponse, error) {
	path := "/api/rooms"
	body := map[string]string{"pseudo": pseudo}
	if code != "" {
		path = "/api/rooms/_/join"
		body["joinCode"] = code
	}
	data, _ := json.Marshal(body)

	resp, err := http.Post("http://"+server+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct{ Code, Message string }
		json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("%s: %s", e.Code, e.Message)
	}
	var room roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return nil, err
	}
	return &room, nil
}

// parseCommand 把一行输入转换成消息帧，无法识别的输入当作聊天
func parseCommand(line string) (uint16, interface{}) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch strings.ToLower(fields[0]) {
	case "start":
		return network.MsgTypeStartGame, struct{}{}
	case "puzzle":
		if len(fields) >= 3 {
			answer := strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))
			return network.MsgTypeSubmitPuzzle, network.PuzzlePayload{Continent: fields[1], Answer: answer}
		}
	case "hint":
		if len(fields) == 2 {
			return network.MsgTypeRequestHint, network.HintPayload{Continent: fields[1]}
		}
	case "meta":
		return network.MsgTypeSubmitMeta, network.AnswerPayload{Answer: rest}
	case "final":
		return network.MsgTypeSubmitFinal, network.AnswerPayload{Answer: rest}
	}
	return network.MsgTypeChat, network.ChatPayload{Message: line}
}

func main() {
	server := flag.String("server", "localhost:8080", "game server host:port")
	pseudo := flag.String("pseudo", "agent", "player name")
	code := flag.String("code", "", "join code; creates a new room when empty")
	flag.Parse()

	room, err := enterRoom(*server, *pseudo, *code)
	if err != nil {
		log.Fatalf("Enter room failed: %v", err)
	}
	log.Printf("Room %s, join code %s, draw %v, player %s", room.Room.ID, room.Room.JoinCode, room.Room.Draw, room.PlayerID)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws/" + room.Room.ID, RawQuery: "playerId=" + url.QueryEscape(room.PlayerID)}
	log.Printf("Connecting to %s", u.String())

	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	conn := network.NewWSConnection(ws)
	defer conn.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			packet, err := conn.ReadPacket()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	log.Println("Commands: start | puzzle <continent> <answer> | hint <continent> | meta <answer> | final <answer> | anything else is chat")

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			conn.Send(network.MsgTypeHeartbeat, nil)
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case line := <-lines:
			msgID, payload := parseCommand(line)
			if payload == nil {
				continue
			}
			data, _ := json.Marshal(payload)
			if err := conn.Send(msgID, data); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT (ID: %d): %s", msgID, string(data))
		}
	}
}
