package scope

import (
	"github.com/minio/highwayhash"
)

var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Hash returns an identity hash of the scope rules. Two scopes with the same
// rules have the same hash. Filter functions do not take part.
func (s *Scope) Hash() uint64 {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		panic(err)
	}

	write := func(field string) {
		_, _ = h.Write([]byte(field))
		_, _ = h.Write([]byte{0})
	}

	write(s.startWith)
	write(s.endWith)

	for _, p := range s.include {
		write("+" + p.String())
	}

	for _, p := range s.exclude {
		write("-" + p.String())
	}

	return h.Sum64()
}

// Equal returns true if both scopes have the same rules.
func (s *Scope) Equal(other *Scope) bool {
	if s == nil || other == nil {
		return s == other
	}

	return s.Hash() == other.Hash()
}
