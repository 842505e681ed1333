package params

const (
	SecParam = 256
	SecBytes = SecParam / 8

	// HashBytes is the length of a transcript digest.
	HashBytes = 32

	// BytesScalar and BytesPoint are the lengths of marshalled secp256k1 elements.
	BytesScalar = 32
	BytesPoint  = 33

	// MaxParties bounds the number of key shares in a single DKG.
	MaxParties = 1 << 12
)
