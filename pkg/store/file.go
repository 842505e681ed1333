package store

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"github.com/taurusgroup/frost-peg/protocols/frost/keygen"
)

const (
	fileExt = ".dkg"
	// header is magic ‖ version ‖ crc32 of the body.
	headerSize = 4 + 1 + 4
	version    = 1
)

var (
	magic = []byte("FRST")
	// ErrCorrupt is returned for files that fail the header or checksum check.
	ErrCorrupt = errors.New("store: corrupt file")
)

// File is a Store keeping one file per DKG in a directory.
//
// Files hold private key shares and are created with mode 0600.
type File struct {
	dir string
	mtx sync.Mutex
}

// NewFile creates dir if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store.NewFile: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(id protocol.DkgID) string {
	return filepath.Join(f.dir, hex.EncodeToString(id[:])+fileExt)
}

func (f *File) Put(r *keygen.Result) error {
	body, err := r.MarshalBinary()
	if err != nil {
		return fmt.Errorf("store.Put: %w", err)
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()

	path := f.path(r.ID)
	if _, err = os.Stat(path); err == nil {
		return ErrExists
	}

	var buf bytes.Buffer
	buf.Grow(headerSize + len(body))
	buf.Write(magic)
	buf.WriteByte(version)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	buf.Write(body)

	tmp, err := os.CreateTemp(f.dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("store.Put: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err = tmp.Chmod(0o600); err == nil {
		if _, err = tmp.Write(buf.Bytes()); err == nil {
			err = tmp.Sync()
		}
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("store.Put: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store.Put: %w", err)
	}
	return nil
}

func (f *File) Get(id protocol.DkgID) (*keygen.Result, error) {
	f.mtx.Lock()
	data, err := os.ReadFile(f.path(id))
	f.mtx.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.Get: %w", err)
	}
	if len(data) < headerSize || !bytes.Equal(data[:4], magic) || data[4] != version {
		return nil, fmt.Errorf("%w: %s: bad header", ErrCorrupt, id)
	}
	body := data[headerSize:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(data[5:headerSize]) {
		return nil, fmt.Errorf("%w: %s: checksum mismatch", ErrCorrupt, id)
	}
	r := new(keygen.Result)
	if err = r.UnmarshalBinary(body); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, id, err)
	}
	if r.ID != id {
		return nil, fmt.Errorf("%w: file for %s holds dkg %s", ErrCorrupt, id, r.ID)
	}
	return r, nil
}

func (f *File) List() ([]protocol.DkgID, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("store.List: %w", err)
	}
	var ids []protocol.DkgID
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), fileExt)
		if !ok || e.IsDir() {
			continue
		}
		raw, err := hex.DecodeString(name)
		if err != nil {
			continue
		}
		var id protocol.DkgID
		if id.UnmarshalBinary(raw) == nil {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids, nil
}
