// Package inventory is a persistent catalogue of HAT EEPROM images.
//
// Each stored image gets a KSUID. The raw bytes and a CBOR encoded
// metadata record live under separate keys, and a secondary index maps
// the vendor info UUID to every image carrying it:
//
//	meta/<ksuid>          CBOR Entry
//	raw/<ksuid>           image bytes as stored
//	uuid/<uuid>/<ksuid>   empty
//
// KSUIDs sort by creation time, so List returns the oldest image first and
// GetByUUID picks the newest revision of a board.
package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/fxamacker/cbor/v2"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/hatrom/pkg/codec"
	"github.com/ssargent/hatrom/pkg/logging"
)

var (
	// ErrNotFound is returned when no image matches the lookup
	ErrNotFound = errors.New("image not found")

	// ErrInvalidID is returned for identifiers that are not KSUIDs
	ErrInvalidID = errors.New("invalid image id")
)

const (
	metaPrefix = "meta/"
	rawPrefix  = "raw/"
	uuidPrefix = "uuid/"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("inventory: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("inventory: CBOR decoder initialization failed: " + err.Error())
	}
}

// Entry describes one stored image.
type Entry struct {
	ID         string    `cbor:"id" json:"id" yaml:"id"`
	Label      string    `cbor:"label" json:"label" yaml:"label"`
	CreatedAt  time.Time `cbor:"-" json:"created_at" yaml:"created_at"`
	Size       int       `cbor:"size" json:"size" yaml:"size"`
	HasCRC     bool      `cbor:"has_crc" json:"has_crc" yaml:"has_crc"`
	CRCValid   bool      `cbor:"crc_valid" json:"crc_valid" yaml:"crc_valid"`
	Skipped    int       `cbor:"skipped" json:"skipped_atoms" yaml:"skipped_atoms"`
	VendorID   uint16    `cbor:"vendor_id" json:"vendor_id" yaml:"vendor_id"`
	ProductID  uint16    `cbor:"product_id" json:"product_id" yaml:"product_id"`
	ProductVer uint16    `cbor:"product_ver" json:"product_ver" yaml:"product_ver"`
	Vendor     string    `cbor:"vendor" json:"vendor" yaml:"vendor"`
	Product    string    `cbor:"product" json:"product" yaml:"product"`
	UUID       string    `cbor:"uuid" json:"uuid" yaml:"uuid"`
	NumAtoms   uint16    `cbor:"num_atoms" json:"num_atoms" yaml:"num_atoms"`
}

// Store is a pebble backed image catalogue. It is safe for concurrent use.
type Store struct {
	db     *pebble.DB
	logger *slog.Logger

	mu     sync.Mutex
	lastID ksuid.KSUID
}

// Open opens or creates the catalogue in dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory at %s: %w", dir, err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.loadLastID(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("inventory opened", "dir", dir, "last_id", s.lastID.String())
	return s, nil
}

// loadLastID seeds the ID generator from the newest stored entry.
func (s *Store) loadLastID() error {
	iter, err := s.db.NewIter(prefixOptions([]byte(metaPrefix)))
	if err != nil {
		return err
	}
	defer iter.Close()

	if iter.Last() {
		kid, err := ksuid.FromBytes(iter.Key()[len(metaPrefix):])
		if err != nil {
			return fmt.Errorf("corrupt entry key: %w", err)
		}
		s.lastID = kid
	}
	return iter.Error()
}

// nextID returns a KSUID greater than any issued before, so entries created
// within the same second still list in insertion order.
func (s *Store) nextID() ksuid.KSUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ksuid.New()
	if ksuid.Compare(id, s.lastID) <= 0 {
		id = s.lastID.Next()
	}
	s.lastID = id
	return id
}

// Put validates image by decoding it and stores it under a new ID.
// A checksum trailer directly after the atom table is detected and checked;
// a bad checksum is recorded, not rejected.
func (s *Store) Put(label string, image []byte) (*Entry, error) {
	_, in, err := codec.Inspect(image)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	id := s.nextID()
	entry := describe(id, label, in)

	meta, err := encMode.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(metaKey(id), meta, nil); err != nil {
		return nil, err
	}
	if err := batch.Set(rawKey(id), image, nil); err != nil {
		return nil, err
	}
	if err := batch.Set(uuidKey(entry.UUID, id), nil, nil); err != nil {
		return nil, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	s.logger.Info("image stored", "id", entry.ID, "label", label, "size", len(image), "uuid", entry.UUID)
	return entry, nil
}

// Get returns the entry for id.
func (s *Store) Get(id string) (*Entry, error) {
	kid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.get(kid)
}

// Image returns the stored bytes for id.
func (s *Store) Image(id string) ([]byte, error) {
	kid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.value(rawKey(kid))
}

// GetByUUID returns the newest entry whose vendor info carries uuid.
func (s *Store) GetByUUID(uuid string) (*Entry, error) {
	prefix := []byte(uuidPrefix + uuid + "/")

	iter, err := s.db.NewIter(prefixOptions(prefix))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("uuid %s: %w", uuid, ErrNotFound)
	}

	kid, err := ksuid.FromBytes(iter.Key()[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("corrupt uuid index key: %w", err)
	}
	return s.get(kid)
}

// List returns every entry, oldest first.
func (s *Store) List() ([]*Entry, error) {
	iter, err := s.db.NewIter(prefixOptions([]byte(metaPrefix)))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []*Entry
	for iter.First(); iter.Valid(); iter.Next() {
		kid, err := ksuid.FromBytes(iter.Key()[len(metaPrefix):])
		if err != nil {
			return nil, fmt.Errorf("corrupt entry key: %w", err)
		}
		entry, err := decodeEntry(kid, iter.Value())
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Delete removes the image and its index entry.
func (s *Store) Delete(id string) error {
	kid, err := parseID(id)
	if err != nil {
		return err
	}

	entry, err := s.get(kid)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Delete(metaKey(kid), nil); err != nil {
		return err
	}
	if err := batch.Delete(rawKey(kid), nil); err != nil {
		return err
	}
	if err := batch.Delete(uuidKey(entry.UUID, kid), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	s.logger.Info("image deleted", "id", id)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(kid ksuid.KSUID) (*Entry, error) {
	data, err := s.value(metaKey(kid))
	if err != nil {
		return nil, err
	}
	return decodeEntry(kid, data)
}

// value copies the stored value, since pebble's slice is only valid until
// the closer runs.
func (s *Store) value(key []byte) ([]byte, error) {
	data, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func describe(id ksuid.KSUID, label string, in *codec.Inspection) *Entry {
	v := in.Summary.Vendor
	return &Entry{
		ID:         id.String(),
		Label:      label,
		CreatedAt:  id.Time(),
		Size:       in.Size,
		HasCRC:     in.HasCRC,
		CRCValid:   in.CRCValid,
		Skipped:    len(in.SkippedAtoms),
		VendorID:   v.VendorID,
		ProductID:  v.ProductID,
		ProductVer: v.ProductVer,
		Vendor:     v.Vendor,
		Product:    v.Product,
		UUID:       v.UUID,
		NumAtoms:   in.Summary.NumAtoms,
	}
}

func decodeEntry(kid ksuid.KSUID, data []byte) (*Entry, error) {
	var entry Entry
	if err := decMode.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode entry %s: %w", kid, err)
	}
	entry.CreatedAt = kid.Time()
	return &entry, nil
}

func parseID(id string) (ksuid.KSUID, error) {
	kid, err := ksuid.Parse(id)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	return kid, nil
}

func metaKey(id ksuid.KSUID) []byte {
	return append([]byte(metaPrefix), id.Bytes()...)
}

func rawKey(id ksuid.KSUID) []byte {
	return append([]byte(rawPrefix), id.Bytes()...)
}

func uuidKey(uuid string, id ksuid.KSUID) []byte {
	return append([]byte(uuidPrefix+uuid+"/"), id.Bytes()...)
}

// prefixOptions bounds an iterator to keys starting with prefix.
func prefixOptions(prefix []byte) *pebble.IterOptions {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: prefix, UpperBound: upper}
}
