package pedersen

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var tagGeneratorH = []byte("spentbook/pedersen/H")

// generatorH is the second generator of the commitment scheme. Its discrete
// log with respect to G is unknown since it's derived by hashing into the
// curve.
var generatorH = deriveGenerator()

func deriveGenerator() btcec.JacobianPoint {
	var one btcec.ModNScalar
	one.SetInt(1)
	var point btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&one, &point)
	point.ToAffine()
	g := btcec.NewPublicKey(&point.X, &point.Y).SerializeCompressed()

	counter := make([]byte, 4)
	for i := uint32(0); ; i++ {
		binary.BigEndian.PutUint32(counter, i)
		h := chainhash.TaggedHash(tagGeneratorH, g, counter)
		pubkey, err := btcec.ParsePubKey(append([]byte{0x02}, h[:]...))
		if err != nil {
			continue
		}
		pubkey.AsJacobian(&point)
		return point
	}
}

func scalarFromBytes(b []byte) (*btcec.ModNScalar, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidScalar, len(b))
	}
	s := new(btcec.ModNScalar)
	s.SetByteSlice(b)
	if s.IsZero() {
		return nil, fmt.Errorf("%w: zero", ErrInvalidScalar)
	}
	return s, nil
}

func scalarFromAmount(amount uint64) *btcec.ModNScalar {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, amount)
	s := new(btcec.ModNScalar)
	s.SetByteSlice(b)
	return s
}

func parsePoint(b []byte) (*btcec.JacobianPoint, error) {
	pubkey, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPoint, err)
	}
	point := new(btcec.JacobianPoint)
	pubkey.AsJacobian(point)
	return point, nil
}

func isInfinity(p *btcec.JacobianPoint) bool {
	return (p.X.IsZero() && p.Y.IsZero()) || p.Z.IsZero()
}

func serializePoint(p *btcec.JacobianPoint) ([]byte, error) {
	p.ToAffine()
	if isInfinity(p) {
		return nil, fmt.Errorf("%w: point at infinity", ErrInvalidPoint)
	}
	return btcec.NewPublicKey(&p.X, &p.Y).SerializeCompressed(), nil
}

func negatePoint(p *btcec.JacobianPoint) {
	p.ToAffine()
	p.Y.Negate(1).Normalize()
}

func addPoints(a, b *btcec.JacobianPoint) btcec.JacobianPoint {
	var result btcec.JacobianPoint
	btcec.AddNonConst(a, b, &result)
	return result
}

// sumPoints returns Σpositive - Σnegative.
func sumPoints(positive, negative [][]byte) (*btcec.JacobianPoint, error) {
	var sum btcec.JacobianPoint
	for _, b := range positive {
		p, err := parsePoint(b)
		if err != nil {
			return nil, err
		}
		sum = addPoints(&sum, p)
	}
	for _, b := range negative {
		p, err := parsePoint(b)
		if err != nil {
			return nil, err
		}
		negatePoint(p)
		sum = addPoints(&sum, p)
	}
	sum.ToAffine()
	return &sum, nil
}

// digest returns msg if it's already a 32-byte hash, its sha256 otherwise.
func digest(msg []byte) []byte {
	if len(msg) == sha256.Size {
		return msg
	}
	h := sha256.Sum256(msg)
	return h[:]
}
