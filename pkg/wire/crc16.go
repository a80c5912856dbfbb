package wire

// CRC-16 parameters used by the CRC-16 encapsulation and transport service
// command classes (CRC-CCITT, polynomial 0x1021, initial value 0x1D0F).
const (
	crc16Polynomial uint16 = 0x1021
	CRC16Init       uint16 = 0x1D0F
)

// CRC16 computes the checksum of data.
func CRC16(data []byte) uint16 {
	return UpdateCRC16(CRC16Init, data)
}

// UpdateCRC16 continues a checksum over data.
func UpdateCRC16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crc16Polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
