package application

import (
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/core/ports"
)

// NewGenesisToken returns the bearer token that issues the given amount. It
// carries no transaction and no quorum proof, and every node attests its
// fingerprint only once.
func NewGenesisToken(crypto ports.Crypto, amount uint64) (*domain.Token, error) {
	if amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	secrets, ownerSecret := domain.GenesisSecrets(amount)
	commitment, err := crypto.Commit(secrets)
	if err != nil {
		return nil, err
	}
	ownerKey, err := crypto.PublicKey(ownerSecret)
	if err != nil {
		return nil, err
	}
	return &domain.Token{
		Version: domain.TokenVersion,
		Output: domain.Output{
			Commitment: commitment,
			OwnerKey:   ownerKey,
			Bearer:     true,
		},
		BearerSecret: ownerSecret,
		Genesis:      true,
	}, nil
}
