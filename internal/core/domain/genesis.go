package domain

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	tagGenesisBlinding = []byte("spentbook/genesis/blinding")
	tagGenesisOwner    = []byte("spentbook/genesis/owner")
)

// GenesisSecrets returns the publicly known opening and owner secret of the
// genesis output for the given amount. Anybody can derive them, what makes
// the genesis token unique is that every node attests its fingerprint once.
func GenesisSecrets(amount uint64) (AmountSecrets, []byte) {
	seed := make([]byte, 8)
	binary.BigEndian.PutUint64(seed, amount)

	blinding := chainhash.TaggedHash(tagGenesisBlinding, seed)
	owner := chainhash.TaggedHash(tagGenesisOwner, seed)
	return AmountSecrets{Amount: amount, Blinding: blinding[:]}, owner[:]
}
