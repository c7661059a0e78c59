package frame

import (
	"bufio"
	"bytes"
	"testing"
)

func TestFrame_StartEndFlags(t *testing.T) {
	got := Frame([]byte{0x03, 0x01})
	if got[0] != flagByte || got[len(got)-1] != flagByte {
		t.Fatalf("missing flags: % X", got)
	}
}

func TestFrame_EscapesControlBytes(t *testing.T) {
	got := Frame([]byte{0x03, flagByte, escapeByte})
	for i := 1; i < len(got)-1; i++ {
		if got[i] == flagByte {
			t.Fatalf("unescaped flag byte at %d: % X", i, got)
		}
	}
}

func TestUnframe_RoundTripsAndChecksCRC(t *testing.T) {
	msg := []byte{0x03, 0x7E, 0x00, 0x7D, 0xFF, 0x20}
	got, ok, err := Unframe(Frame(msg))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("msg=% X want % X", got, msg)
	}

	f := Frame(msg)
	f[2] ^= 0x01
	if _, ok, _ := Unframe(f); ok {
		t.Fatalf("corrupted frame passed CRC")
	}
}

func TestUnframe_Malformed(t *testing.T) {
	for _, f := range [][]byte{
		{0x7E, 0x7E},
		{0x00, 0x01, 0x02, 0x7E},
		{0x7E, 0x01, 0x02, 0x7D, 0x7E},
	} {
		if _, _, err := Unframe(f); err == nil {
			t.Fatalf("Unframe(% X) expected error", f)
		}
	}
}

func TestCRC16_KnownVector(t *testing.T) {
	// CRC-16/XMODEM check value.
	if got := crc16([]byte("123456789")); got != 0x31C3 {
		t.Fatalf("crc=0x%04X want 0x31C3", got)
	}
}

func TestSplit_ResyncsOnStream(t *testing.T) {
	a := Frame([]byte{0x03, 0x01})
	b := Frame([]byte{0x03, 0x02, 0x7E})
	stream := append([]byte{0x55, 0xAA}, a...)
	stream = append(stream, b...)

	sc := bufio.NewScanner(bytes.NewReader(stream))
	sc.Split(Split)
	var got [][]byte
	for sc.Scan() {
		got = append(got, append([]byte(nil), sc.Bytes()...))
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("frames=%d want 2: %X", len(got), got)
	}
	if !bytes.Equal(got[0], a) || !bytes.Equal(got[1], b) {
		t.Fatalf("frames=% X want % X, % X", got, a, b)
	}
}
