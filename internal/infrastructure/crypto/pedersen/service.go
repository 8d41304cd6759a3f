// Package pedersen implements the blinded-amount primitive with Pedersen
// commitments on secp256k1. Amounts are committed as C = v·H + r·G and a
// transaction balances iff ΣC_in - ΣC_out = e·G, where e = Σr_in - Σr_out is
// the excess. The balance proof is a BIP340 signature by the excess key.
//
// There are no range proofs. Balance only holds modulo the group order, so a
// prover can commit to a value that wraps around (a negated commitment) and
// inflate the outputs: Verify is not sound against a malicious wallet.
package pedersen

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/core/ports"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var sealInfo = []byte("spentbook/seal")

type service struct{}

// NewService returns the secp256k1 implementation of the crypto primitive.
func NewService() ports.Crypto {
	return service{}
}

func (service) NewBlinding() ([]byte, error) {
	for {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		if s, err := scalarFromBytes(b); err == nil {
			buf := s.Bytes()
			return buf[:], nil
		}
	}
}

func (service) Commit(secrets domain.AmountSecrets) ([]byte, error) {
	r, err := scalarFromBytes(secrets.Blinding)
	if err != nil {
		return nil, err
	}
	v := scalarFromAmount(secrets.Amount)

	var vH, rG btcec.JacobianPoint
	btcec.ScalarMultNonConst(v, &generatorH, &vH)
	btcec.ScalarBaseMultNonConst(r, &rG)
	c := addPoints(&vH, &rG)
	return serializePoint(&c)
}

func (service) Prove(
	inputs, outputs []domain.AmountSecrets, msg []byte,
) ([]byte, error) {
	var excess btcec.ModNScalar
	for _, in := range inputs {
		r, err := scalarFromBytes(in.Blinding)
		if err != nil {
			return nil, err
		}
		excess.Add(r)
	}
	for _, out := range outputs {
		r, err := scalarFromBytes(out.Blinding)
		if err != nil {
			return nil, err
		}
		excess.Add(new(btcec.ModNScalar).NegateVal(r))
	}
	if excess.IsZero() {
		return nil, fmt.Errorf("%w: zero excess", ErrInvalidScalar)
	}

	key := excess.Bytes()
	privkey, _ := btcec.PrivKeyFromBytes(key[:])
	sig, err := schnorr.Sign(privkey, digest(msg))
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

func (service) Verify(inputs, outputs [][]byte, proof, msg []byte) error {
	excess, err := sumPoints(inputs, outputs)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidProof, err)
	}
	if isInfinity(excess) {
		return fmt.Errorf("%w: excess is point at infinity", domain.ErrInvalidProof)
	}
	sig, err := schnorr.ParseSignature(proof)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidProof, err)
	}
	if !sig.Verify(digest(msg), btcec.NewPublicKey(&excess.X, &excess.Y)) {
		return fmt.Errorf("%w: commitments do not balance", domain.ErrInvalidProof)
	}
	return nil
}

func (service) NewKey() ([]byte, []byte, error) {
	privkey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, err
	}
	return privkey.Serialize(), privkey.PubKey().SerializeCompressed(), nil
}

func (service) PublicKey(privateKey []byte) ([]byte, error) {
	if _, err := scalarFromBytes(privateKey); err != nil {
		return nil, err
	}
	_, pubkey := btcec.PrivKeyFromBytes(privateKey)
	return pubkey.SerializeCompressed(), nil
}

func (service) ValidatePublicKey(publicKey []byte) error {
	if len(publicKey) != btcec.PubKeyBytesLenCompressed {
		return fmt.Errorf("%w: expected compressed key", ErrInvalidPoint)
	}
	if _, err := btcec.ParsePubKey(publicKey); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPoint, err)
	}
	return nil
}

func (service) Sign(privateKey, msg []byte) ([]byte, error) {
	if _, err := scalarFromBytes(privateKey); err != nil {
		return nil, err
	}
	privkey, _ := btcec.PrivKeyFromBytes(privateKey)
	sig, err := schnorr.Sign(privkey, digest(msg))
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

func (service) VerifySignature(publicKey, msg, signature []byte) error {
	pubkey, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPoint, err)
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	if !sig.Verify(digest(msg), pubkey) {
		return ErrInvalidSignature
	}
	return nil
}

func (service) Seal(
	ownerKey []byte, secrets domain.AmountSecrets,
) ([]byte, []byte, error) {
	owner, err := btcec.ParsePubKey(ownerKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidPoint, err)
	}
	ephemeral, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, err
	}
	ephemeralKey := ephemeral.PubKey().SerializeCompressed()

	aead, err := sealingCipher(
		btcec.GenerateSharedSecret(ephemeral, owner), ephemeralKey,
	)
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	ciphertext := aead.Seal(nil, nonce, secrets.Serialize(), ephemeralKey)
	return ephemeralKey, ciphertext, nil
}

func (service) Open(
	ownerPrivateKey, ephemeralKey, ciphertext []byte,
) (*domain.AmountSecrets, error) {
	if _, err := scalarFromBytes(ownerPrivateKey); err != nil {
		return nil, err
	}
	ephemeral, err := btcec.ParsePubKey(ephemeralKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPoint, err)
	}
	owner, _ := btcec.PrivKeyFromBytes(ownerPrivateKey)

	aead, err := sealingCipher(
		btcec.GenerateSharedSecret(owner, ephemeral), ephemeralKey,
	)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	plaintext, err := aead.Open(nil, nonce, ciphertext, ephemeralKey)
	if err != nil {
		return nil, ErrOpenFailed
	}
	secrets, err := domain.DeserializeAmountSecrets(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrOpenFailed, err)
	}
	return &secrets, nil
}

// The zero nonce relies on a fresh ephemeral key for every seal.
func sealingCipher(shared, salt []byte) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, sealInfo), key); err != nil {
		return nil, err
	}
	return chacha20poly1305.New(key)
}
