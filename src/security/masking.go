package security

// MaskPAN produces the display-safe form of an account number: first four
// and last four characters visible, middle replaced by a fixed four-character
// marker. Values of eight characters or fewer are returned unchanged; they
// are malformed or test data and masking them would hide that.
func MaskPAN(pan string) string {
	if len(pan) <= 8 {
		return pan
	}
	return pan[:4] + "****" + pan[len(pan)-4:]
}
