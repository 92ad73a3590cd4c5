package codec

// Errors returned by the codec. Callers should match them with errors.Is;
// the returned error usually wraps one of these with offset context.
var (
	ErrTooShort          = &FormatError{"buffer too short"}
	ErrBadSignature      = &FormatError{"invalid EEPROM signature"}
	ErrMissingVendorInfo = &FormatError{"vendor info atom not found"}
	ErrMissingGpioBank0  = &FormatError{"GPIO map bank 0 atom not found"}
	ErrBufferTooSmall    = &FormatError{"destination buffer too small"}
	ErrAtomTooLarge      = &FormatError{"atom payload exceeds 65535 bytes"}
	ErrReservedAtomType  = &FormatError{"atom type is reserved for well-known atoms"}
	ErrTooManyAtoms      = &FormatError{"atom count exceeds 65535"}
)

// FormatError represents an encode or decode failure.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string {
	return e.Message
}
