package hashkit

// crc16 table of the CCITT polynomial 0x1021 (XMODEM variant), the one
// redis cluster uses for key slots.
var crc16tab [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		crc16tab[i] = crc
	}
}

// Crc16 returns the crc16 checksum of key.
func Crc16(key []byte) uint16 {
	var crc uint16
	for _, b := range key {
		crc = crc<<8 ^ crc16tab[byte(crc>>8)^b]
	}
	return crc
}
