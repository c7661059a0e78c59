package frame

// crcTable holds CRC-16/XMODEM remainders (polynomial 0x1021, MSB first) for
// every leading byte.
var crcTable [256]uint16

func init() {
	for i := range crcTable {
		r := uint16(i) << 8
		for n := 0; n < 8; n++ {
			if r&0x8000 != 0 {
				r = r<<1 ^ 0x1021
			} else {
				r <<= 1
			}
		}
		crcTable[i] = r
	}
}

// crc16 is CRC-16/XMODEM over the unstuffed message: zero initial value, no
// reflection, no final xor.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>8)^b]
	}
	return crc
}
