// Package protocol implements the framed binary control link shared by the
// firmware and the host tools.
//
// A frame is
//
//	len | seq | payload... | crc_hi | crc_lo | 0x7E
//
// where len counts the whole frame, seq carries 0x10 plus a four bit
// sequence number, and the CRC covers len, seq and the payload. The payload
// is a list of messages, each a VLQ message id followed by VLQ arguments.
// A frame without payload acknowledges everything before seq.
package protocol

// Version of the control protocol reported by identify.
const Version = "slink-1"

// Frame layout.
const (
	HeaderSize  = 2
	TrailerSize = 3
	MinFrame    = HeaderSize + TrailerSize
	MaxFrame    = 64
	MaxPayload  = MaxFrame - MinFrame

	posLen = 0
	posSeq = 1

	SyncByte = 0x7E
	SeqDest  = 0x10
	SeqMask  = 0x0F
)

// IdentifyID is the message id of identify. A frame at SeqDest that opens
// with identify at offset zero starts a new host session.
const IdentifyID = 1

// NextSeq returns the sequence number following seq.
func NextSeq(seq uint8) uint8 {
	return ((seq + 1) & SeqMask) | SeqDest
}
