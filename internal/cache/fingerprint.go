package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/Habeeb00/msghelp/internal/models"
)

// Fingerprint identifies a (variant, current message, context) triple.
//
// Every field is written with a length prefix so inputs that concatenate to the same bytes
// ("ab"+"c" vs "a"+"bc") still hash differently. Context order is preserved. The variant is
// both hashed and used as a readable prefix, so two variants never share a key.
func Fingerprint(variant string, current models.Message, context models.ContextWindow) string {
	h := sha256.New()
	writeField(h, variant)
	writeField(h, current.Text)

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(context)))
	h.Write(n[:])

	for _, msg := range context {
		writeField(h, msg.RoleHint)
		writeField(h, msg.Text)
		binary.BigEndian.PutUint64(n[:], uint64(msg.Timestamp))
		h.Write(n[:])
	}

	return variant + ":" + hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
