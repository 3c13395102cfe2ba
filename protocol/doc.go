// Package protocol implements the binary framing used by Courage clients to talk
// to the streaming event service.
//
// The protocol aims to be
//
// - compact, as events can be published at a high rate
// - cheap to parse, fields are fixed width or length prefixed
// - forward compatible, receivers drop frames they do not understand
//
// === Frames
//
// Every frame begins with a single header byte. The top four bits carry the
// protocol id and the bottom four bits carry the message type:
//
//   ```
//   header = (protocolId << 4) | messageType
//   ```
//
// The header is followed by the message type's fields, in order, with no padding.
//
// === Field encodings
//
// - `uint8`      - 1 byte
// - `identifier` - 16 bytes, a UUID in network byte order
// - `blob`       - 2 byte big endian length, followed by that many bytes (<= 65535)
// - `string`     - a blob holding UTF-8 text
//
// Lists are prefixed with a uint8 count.
//
// === Subscription protocol (protocol id 1)
//
// Subscribe request (type 0), client -> service
//
//   ```
//   <providerId><publicToken><privateToken><deviceId><count><channelId>...<options>
//   ```
//
// Bit 0 of options asks the service to replay stored events for the channels.
//
// Subscribe success (type 1), service -> client
//
//   ```
//   <channelCount>
//     <channelId><eventCount>
//       <eventId><payload>...
//   ```
//
// Event data (type 2), service -> client, a single streamed event
//
//   ```
//   <channelId><eventId><payload>
//   ```
//
// Ack events (type 3), client -> service
//
//   ```
//   <count><eventId>...
//   ```
//
// Every event delivered by a subscribe success or event data frame must be
// acknowledged, otherwise the service will redeliver it.
//
package protocol
