package codec

import (
	"bytes"

	"github.com/google/uuid"
)

// NewVendorInfo builds a vendor info atom from strings. Names longer than
// NameSize-1 bytes are truncated so the field always keeps a NUL terminator.
func NewVendorInfo(vendorID, productID, productVer uint16, vendor, product string, id [UUIDSize]byte) VendorInfo {
	v := VendorInfo{
		VendorID:   vendorID,
		ProductID:  productID,
		ProductVer: productVer,
		UUID:       id,
	}
	putName(&v.Vendor, vendor)
	putName(&v.Product, product)
	return v
}

func putName(dst *[NameSize]byte, s string) {
	n := len(s)
	if n > NameSize-1 {
		n = NameSize - 1
	}
	copy(dst[:], s[:n])
}

// VendorName returns the vendor name with trailing NULs removed.
func (v *VendorInfo) VendorName() string {
	return trimName(v.Vendor[:])
}

// ProductName returns the product name with trailing NULs removed.
func (v *VendorInfo) ProductName() string {
	return trimName(v.Product[:])
}

// UUIDString returns the UUID field in canonical 8-4-4-4-12 form.
func (v *VendorInfo) UUIDString() string {
	return uuid.UUID(v.UUID).String()
}

func trimName(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}
