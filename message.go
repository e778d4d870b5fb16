package libemit

import "fmt"

// MessageType mirrors the websocket frame opcodes carried by a Message.
type MessageType byte

const (
	DataMessage   MessageType = 1
	BinaryMessage MessageType = 2
	CloseMessage  MessageType = 8
	PingMessage   MessageType = 9
	PongMessage   MessageType = 10
)

func (t MessageType) String() string {
	switch t {
	case DataMessage:
		return "data"
	case BinaryMessage:
		return "binary"
	case CloseMessage:
		return "close"
	case PingMessage:
		return "ping"
	case PongMessage:
		return "pong"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

func (t MessageType) IsControl() bool {
	return t == CloseMessage || t == PingMessage || t == PongMessage
}

// Message is the payload of every websocket feed event.
type Message interface {
	Type() MessageType
	Data() []byte
	String() string
}

type message struct {
	kind MessageType
	data []byte
	code int
}

func (m message) Type() MessageType { return m.kind }

func (m message) Data() []byte { return m.data }

func (m message) String() string {
	if m.kind == CloseMessage {
		return fmt.Sprintf("Message{type=%s,code=%d,data=%s}", m.kind, m.code, m.data)
	}
	return fmt.Sprintf("Message{type=%s,data=%s}", m.kind, m.data)
}

func NewMessage(mt MessageType, data []byte) Message {
	return message{kind: mt, data: data}
}

func NewDataMessage(data []byte) Message {
	return NewMessage(DataMessage, data)
}

func NewBinaryMessage(data []byte) Message {
	return NewMessage(BinaryMessage, data)
}

func NewPingMessage(data []byte) Message {
	return NewMessage(PingMessage, data)
}

func NewPongMessage(data []byte) Message {
	return NewMessage(PongMessage, data)
}

// NewCloseMessage builds a close message carrying a websocket close code.
func NewCloseMessage(code int, data []byte) Message {
	return message{kind: CloseMessage, data: data, code: code}
}

// CloseCode returns the close code of m and whether m is a close message.
func CloseCode(m Message) (int, bool) {
	cm, ok := m.(message)
	if !ok || cm.kind != CloseMessage {
		return 0, false
	}
	return cm.code, true
}
