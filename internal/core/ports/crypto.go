package ports

import "github.com/tdex-network/spentbook/internal/core/domain"

// Crypto is the blinded-amount and signature primitive the protocol relies on.
type Crypto interface {
	Blinder
	BalanceProver
	Signer
	Sealer
}

type Blinder interface {
	NewBlinding() ([]byte, error)
	Commit(secrets domain.AmountSecrets) ([]byte, error)
}

type BalanceProver interface {
	// Prove proves that inputs and outputs commit to the same total, binding
	// the proof to msg.
	Prove(inputs, outputs []domain.AmountSecrets, msg []byte) ([]byte, error)
	// Verify returns an error wrapping domain.ErrInvalidProof if the
	// commitments do not balance or the proof is not bound to msg.
	Verify(inputs, outputs [][]byte, proof, msg []byte) error
}

type Signer interface {
	NewKey() (privateKey, publicKey []byte, err error)
	PublicKey(privateKey []byte) ([]byte, error)
	ValidatePublicKey(publicKey []byte) error
	Sign(privateKey, msg []byte) ([]byte, error)
	VerifySignature(publicKey, msg, signature []byte) error
}

type Sealer interface {
	// Seal encrypts the amount secrets to the owner key.
	Seal(
		ownerKey []byte, secrets domain.AmountSecrets,
	) (ephemeral, ciphertext []byte, err error)
	Open(
		ownerPrivateKey, ephemeral, ciphertext []byte,
	) (*domain.AmountSecrets, error)
}
