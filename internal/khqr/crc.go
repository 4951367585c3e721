package khqr

import "fmt"

// crcTagHeader is tag 63 with its fixed length, covered by the checksum.
const crcTagHeader = "6304"

// CRC16 computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF, no reflection, no xorout).
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// checksum renders the CRC of s as four uppercase hex digits.
func checksum(s string) string {
	return fmt.Sprintf("%04X", CRC16([]byte(s)))
}

// VerifyCRC reports whether payload ends with a tag 63 checksum matching its content.
func VerifyCRC(payload string) bool {
	if len(payload) < len(crcTagHeader)+4 {
		return false
	}
	body := payload[:len(payload)-4]
	if body[len(body)-len(crcTagHeader):] != crcTagHeader {
		return false
	}
	return checksum(body) == payload[len(payload)-4:]
}
