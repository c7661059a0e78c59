package report

import "fmt"

// ID is the HID report ID the descriptor declares.
const ID = 3

// Descriptor is the HID report descriptor for a gamepad carrying one report:
// 32 buttons, steering, accelerator and brake from the Simulation Controls
// page, and X/Y from Generic Desktop, each axis a 16-bit value.
var Descriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x05, // Usage (Game Pad)
	0xA1, 0x01, // Collection (Application)
	0x85, ID, //   Report ID
	0x05, 0x09, //   Usage Page (Button)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x75, 0x01, //   Report Size (1)
	0x19, 0x01, //   Usage Minimum (1)
	0x29, 0x20, //   Usage Maximum (32)
	0x95, 0x20, //   Report Count (32)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0x05, 0x02, //   Usage Page (Simulation Controls)
	0x16, 0x00, 0x00, //   Logical Minimum (0)
	0x26, 0xFF, 0x7F, //   Logical Maximum (32767)
	0x75, 0x10, //   Report Size (16)
	0x95, 0x03, //   Report Count (3)
	0xA1, 0x00, //   Collection (Physical)
	0x09, 0xC8, //     Usage (Steering)
	0x09, 0xC4, //     Usage (Accelerator)
	0x09, 0xC5, //     Usage (Brake)
	0x81, 0x02, //     Input (Data,Var,Abs)
	0xC0,       //   End Collection
	0x05, 0x01, //   Usage Page (Generic Desktop)
	0x16, 0x01, 0x80, //   Logical Minimum (-32767)
	0x26, 0xFF, 0x7F, //   Logical Maximum (32767)
	0x75, 0x10, //   Report Size (16)
	0x95, 0x02, //   Report Count (2)
	0xA1, 0x00, //   Collection (Physical)
	0x09, 0x30, //     Usage (X)
	0x09, 0x31, //     Usage (Y)
	0x81, 0x02, //     Input (Data,Var,Abs)
	0xC0, //   End Collection
	0xC0, // End Collection
}

// Field describes one member of the encoded report.
type Field struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Size   int    `json:"size"`
	Signed bool   `json:"signed"`
}

// Layout lists the encoded fields in wire order.
var Layout = []Field{
	{Name: "buttons", Offset: 0, Size: 4},
	{Name: "steering", Offset: 4, Size: 2, Signed: true},
	{Name: "accelerator", Offset: 6, Size: 2, Signed: true},
	{Name: "brake", Offset: 8, Size: 2, Signed: true},
	{Name: "x", Offset: 10, Size: 2, Signed: true},
	{Name: "y", Offset: 12, Size: 2, Signed: true},
}

// Message prefixes an encoded report with the report ID, the form carried by
// datagram and serial links.
func Message(s State) []byte {
	b := make([]byte, 0, 1+Size)
	b = append(b, ID)
	b, _ = s.AppendBinary(b)
	return b
}

// ParseMessage reverses Message.
func ParseMessage(b []byte) (State, error) {
	if len(b) != 1+Size {
		return State{}, fmt.Errorf("report: message length %d want %d", len(b), 1+Size)
	}
	if b[0] != ID {
		return State{}, fmt.Errorf("report: unexpected report id %d", b[0])
	}
	return Decode(b[1:])
}
