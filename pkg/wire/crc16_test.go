package wire

import "testing"

func TestCRC16(t *testing.T) {
	// CRC-16/AUG-CCITT check value for "123456789".
	if got := CRC16([]byte("123456789")); got != 0xE5CC {
		t.Errorf("CRC16(check) = %#04x, want 0xe5cc", got)
	}
	if got := CRC16(nil); got != CRC16Init {
		t.Errorf("CRC16(nil) = %#04x, want %#04x", got, CRC16Init)
	}

	data := []byte{0x56, 0x01, 0x20, 0x02}
	split := UpdateCRC16(CRC16(data[:2]), data[2:])
	if split != CRC16(data) {
		t.Errorf("incremental CRC = %#04x, want %#04x", split, CRC16(data))
	}
}
