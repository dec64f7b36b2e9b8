// network/connection.go
package network

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrPacketTooLarge = errors.New("packet payload exceeds 65535 bytes")

const writeWait = 10 * time.Second

type Packet struct {
	MsgID  uint16
	Data   []byte
	Length uint16
}

type Connection interface {
	Send(msgID uint16, data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	ReadPacket() (*Packet, error)
}

// EncodePacket 封包: 2字节消息ID + 2字节数据长度 + 数据
func EncodePacket(msgID uint16, data []byte) ([]byte, error) {
	if len(data) > math.MaxUint16 {
		return nil, ErrPacketTooLarge
	}
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)
	return packet, nil
}

// DecodePacket 解包，长度不足时返回 io.ErrShortBuffer
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) < 4 {
		return nil, io.ErrShortBuffer
	}

	msgID := binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint16(data[2:4])

	if len(data) < 4+int(length) {
		return nil, io.ErrShortBuffer
	}

	return &Packet{
		MsgID:  msgID,
		Length: length,
		Data:   data[4 : 4+int(length)],
	}, nil
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

func (c *WSConnection) Send(msgID uint16, data []byte) error {
	packet, err := EncodePacket(msgID, data)
	if err != nil {
		return err
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.BinaryMessage, packet)
}

func (c *WSConnection) ReadPacket() (*Packet, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if c.heartbeat > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
	}
	return DecodePacket(data)
}

// SetHeartbeat 两个心跳周期内没有任何数据则读超时
func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
	c.conn.SetReadDeadline(time.Now().Add(interval * 2))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
