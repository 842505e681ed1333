package test

import (
	"encoding/binary"
	"io"

	"github.com/taurusgroup/frost-peg/pkg/pool"
	"golang.org/x/crypto/chacha20"
)

type chachaReader struct {
	cipher *chacha20.Cipher
}

func (r *chachaReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}

// Rand returns a deterministic stream of random bytes derived from seed.
//
// The reader is safe for concurrent use.
func Rand(seed uint64) io.Reader {
	key := make([]byte, chacha20.KeySize)
	binary.BigEndian.PutUint64(key, seed)
	nonce := make([]byte, chacha20.NonceSize)
	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		panic(err)
	}
	return pool.NewLockedReader(&chachaReader{cipher: cipher})
}
