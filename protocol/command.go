package protocol

// ProtocolID identifies the protocol a frame belongs to. Only the low four bits
// are significant.
type ProtocolID uint8

// MessageType identifies a message within a protocol. Only the low four bits are
// significant.
type MessageType uint8

const (
	ProtocolSubscription ProtocolID = 1
)

const (
	TypeSubscribeRequest MessageType = 0
	TypeSubscribeSuccess MessageType = 1
	TypeEventData        MessageType = 2
	TypeAckEvents        MessageType = 3
)

const (
	// OptionReplay asks the service to replay stored events on subscribe.
	OptionReplay uint8 = 1 << 0
)

const (
	maxNibble = 0x0F

	// MaxBlobSize is the largest blob or string that fits the 2 byte length prefix.
	MaxBlobSize = 65535

	// MaxListSize is the largest count that fits a list's uint8 prefix.
	MaxListSize = 255

	IdentifierSize = 16
)

// Header is the first byte of every frame.
type Header struct {
	Protocol ProtocolID
	Type     MessageType
}

// Byte packs the header into its wire form.
func (h Header) Byte() byte {
	return byte(h.Protocol)<<4 | byte(h.Type)&maxNibble
}

func (t MessageType) String() string {
	switch t {
	case TypeSubscribeRequest:
		return "subscribe-request"
	case TypeSubscribeSuccess:
		return "subscribe-success"
	case TypeEventData:
		return "event-data"
	case TypeAckEvents:
		return "ack-events"
	default:
		return "unknown"
	}
}
