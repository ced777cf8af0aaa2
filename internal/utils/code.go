package utils

import "fmt"

// TicketCode builds the scan code printed on a ticket: the booking ID, the
// serial within the booking and a random suffix so codes cannot be guessed
// from sequential IDs.
func TicketCode(bookingID uint64, serial uint32) (string, error) {
	suffix, err := RandomHex(16) // 16 bytes -> 32 hex chars
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d-%s", bookingID, serial, suffix), nil
}
