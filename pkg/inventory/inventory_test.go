package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/hatrom/pkg/codec"
)

func testImage(t *testing.T, vendorID uint16, id [16]byte) *codec.Eeprom {
	t.Helper()
	e := codec.New(codec.NewVendorInfo(vendorID, 0x0002, 1, "ACME", "Sensor HAT", id), codec.GpioMap{Flags: 1})
	require.NoError(t, e.AddCustomAtom(0x80, []byte("serial=0042")))
	e.RecomputeHeader()
	return e
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGet(t *testing.T) {
	s := openStore(t)

	image := testImage(t, 0x414C, [16]byte{1, 2, 3}).SerializeWithCRC()
	entry, err := s.Put("rev-a", image)
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "rev-a", entry.Label)
	assert.Equal(t, len(image), entry.Size)
	assert.True(t, entry.HasCRC)
	assert.True(t, entry.CRCValid)
	assert.Equal(t, uint16(0x414C), entry.VendorID)
	assert.Equal(t, "ACME", entry.Vendor)
	assert.Equal(t, "Sensor HAT", entry.Product)
	assert.Equal(t, "01020300-0000-0000-0000-000000000000", entry.UUID)
	assert.Equal(t, uint16(3), entry.NumAtoms)
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := s.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	raw, err := s.Image(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, image, raw)
}

func TestStore_PutRecordsChecksumState(t *testing.T) {
	s := openStore(t)
	e := testImage(t, 1, [16]byte{})

	plain, err := s.Put("no crc", e.Serialize())
	require.NoError(t, err)
	assert.False(t, plain.HasCRC)
	assert.False(t, plain.CRCValid)

	corrupt := e.SerializeWithCRC()
	corrupt[len(corrupt)-1] ^= 0xFF
	bad, err := s.Put("bad crc", corrupt)
	require.NoError(t, err)
	assert.True(t, bad.HasCRC)
	assert.False(t, bad.CRCValid)

	// erased cells after the trailer do not hide a good checksum
	padded := append(e.SerializeWithCRC(), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	good, err := s.Put("padded", padded)
	require.NoError(t, err)
	assert.True(t, good.CRCValid)
}

func TestStore_PutRejectsInvalidImage(t *testing.T) {
	s := openStore(t)

	_, err := s.Put("junk", []byte("not an eeprom image"))
	assert.ErrorIs(t, err, codec.ErrBadSignature)

	entries, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ListInInsertionOrder(t *testing.T) {
	s := openStore(t)

	var ids []string
	for i := 0; i < 5; i++ {
		entry, err := s.Put("image", testImage(t, uint16(i), [16]byte{byte(i)}).Serialize())
		require.NoError(t, err)
		ids = append(ids, entry.ID)
	}

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, entry := range entries {
		assert.Equal(t, ids[i], entry.ID)
		assert.Equal(t, uint16(i), entry.VendorID)
	}
}

func TestStore_GetByUUID(t *testing.T) {
	s := openStore(t)
	board := [16]byte{0xAA}

	_, err := s.Put("rev-a", testImage(t, 1, board).Serialize())
	require.NoError(t, err)
	_, err = s.Put("other", testImage(t, 2, [16]byte{0xBB}).Serialize())
	require.NoError(t, err)
	latest, err := s.Put("rev-b", testImage(t, 3, board).Serialize())
	require.NoError(t, err)

	got, err := s.GetByUUID(latest.UUID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, got.ID)
	assert.Equal(t, "rev-b", got.Label)

	_, err = s.GetByUUID("ffffffff-ffff-ffff-ffff-ffffffffffff")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	s := openStore(t)

	entry, err := s.Put("doomed", testImage(t, 1, [16]byte{7}).Serialize())
	require.NoError(t, err)

	require.NoError(t, s.Delete(entry.ID))

	_, err = s.Get(entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Image(entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByUUID(entry.UUID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(entry.ID), ErrNotFound)
}

func TestStore_InvalidID(t *testing.T) {
	s := openStore(t)

	_, err := s.Get("not-a-ksuid")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = s.Image("")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, s.Delete("nope"), ErrInvalidID)
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, nil)
	require.NoError(t, err)
	first, err := s.Put("persisted", testImage(t, 9, [16]byte{9}).SerializeWithCRC())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Label)

	second, err := s.Put("after reopen", testImage(t, 10, [16]byte{10}).Serialize())
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
}
