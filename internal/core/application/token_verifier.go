package application

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/core/ports"
)

// TokenVerifier checks tokens, transactions and attestations offline against
// the known spentbook membership.
type TokenVerifier interface {
	// VerifyToken returns an error wrapping domain.ErrInvalidToken if the token
	// is not backed by a quorum of attestations for every input of the
	// transaction that created it.
	VerifyToken(token *domain.Token) error
	// VerifyTransaction checks the structure, the owner signatures and the
	// balance proof of tx. Errors wrap domain.ErrInvalidProof.
	VerifyTransaction(tx *domain.CandidateTransaction) error
	// VerifySpendRequest checks the transaction and that every input token is
	// valid and matches the input it is spent by.
	VerifySpendRequest(req domain.SpendRequest) error
	// VerifyAttestation checks the attestation is signed by a member node.
	VerifyAttestation(att domain.Attestation) error
	Genesis() *domain.Token
	Membership() domain.Membership
}

type tokenVerifier struct {
	crypto     ports.Crypto
	membership domain.Membership
	genesis    *domain.Token
}

// NewTokenVerifier ...
func NewTokenVerifier(
	crypto ports.Crypto, membership domain.Membership, genesisAmount uint64,
) (TokenVerifier, error) {
	if err := membership.Validate(); err != nil {
		return nil, err
	}
	genesis, err := NewGenesisToken(crypto, genesisAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to derive genesis token: %w", err)
	}
	return &tokenVerifier{crypto, membership, genesis}, nil
}

func (v *tokenVerifier) Genesis() *domain.Token {
	return v.genesis
}

func (v *tokenVerifier) Membership() domain.Membership {
	return v.membership
}

func (v *tokenVerifier) VerifyToken(token *domain.Token) error {
	if token == nil {
		return domain.ErrInvalidToken
	}
	if token.Genesis {
		if !bytes.Equal(token.Serialize(), v.genesis.Serialize()) {
			return fmt.Errorf("%w: genesis token mismatch", domain.ErrInvalidToken)
		}
		return nil
	}

	tx := token.Transaction
	if tx == nil {
		return fmt.Errorf("%w: missing transaction", domain.ErrInvalidToken)
	}
	if !tx.HasOutput(token.Output) {
		return fmt.Errorf(
			"%w: output not created by the transaction", domain.ErrInvalidToken,
		)
	}
	if err := v.VerifyTransaction(tx); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidToken, err)
	}
	if err := v.verifyBearer(token); err != nil {
		return err
	}

	txid := tx.ID()
	inputs := make(map[domain.Fingerprint]struct{}, len(tx.Inputs))
	for _, fp := range tx.InputFingerprints() {
		inputs[fp] = struct{}{}
	}
	for fp := range token.QuorumProof {
		if _, ok := inputs[fp]; !ok {
			return fmt.Errorf(
				"%w: proof for %s which is not an input", domain.ErrInvalidToken, fp,
			)
		}
	}

	for fp := range inputs {
		nodes := make(map[string]struct{})
		for _, att := range token.QuorumProof[fp] {
			if att.Fingerprint != fp || att.TxID != txid {
				return fmt.Errorf(
					"%w: attestation for %s is not about tx %s",
					domain.ErrInvalidToken, fp, txid,
				)
			}
			if err := v.VerifyAttestation(att); err != nil {
				return fmt.Errorf("%w: %s", domain.ErrInvalidToken, err)
			}
			nodes[att.NodeID] = struct{}{}
		}
		if len(nodes) < v.membership.QuorumSize {
			return fmt.Errorf(
				"%w: input %s has %d attestations, quorum is %d",
				domain.ErrInvalidToken, fp, len(nodes), v.membership.QuorumSize,
			)
		}
	}
	return nil
}

func (v *tokenVerifier) VerifyTransaction(tx *domain.CandidateTransaction) error {
	if tx == nil {
		return fmt.Errorf("%w: missing transaction", domain.ErrInvalidProof)
	}
	if err := tx.Validate(); err != nil {
		return err
	}

	msg := tx.SigningHash()
	for i, in := range tx.Inputs {
		if err := v.crypto.VerifySignature(
			in.OwnerKey, msg, tx.OwnerSignatures[i],
		); err != nil {
			return fmt.Errorf(
				"%w: input %d owner signature: %s", domain.ErrInvalidProof, i, err,
			)
		}
	}
	for i, out := range tx.Outputs {
		if err := v.crypto.ValidatePublicKey(out.OwnerKey); err != nil {
			return fmt.Errorf(
				"%w: output %d owner key: %s", domain.ErrInvalidProof, i, err,
			)
		}
	}
	return v.crypto.Verify(
		tx.InputCommitments(), tx.OutputCommitments(), tx.BalanceProof, msg,
	)
}

func (v *tokenVerifier) VerifySpendRequest(req domain.SpendRequest) error {
	tx := req.Transaction
	if tx == nil {
		return fmt.Errorf("%w: missing transaction", domain.ErrInvalidProof)
	}
	if len(req.InputTokens) != len(tx.Inputs) {
		return fmt.Errorf(
			"%w: got %d input tokens for %d inputs",
			domain.ErrInvalidProof, len(req.InputTokens), len(tx.Inputs),
		)
	}
	for i := range req.InputTokens {
		token := &req.InputTokens[i]
		if !tx.Inputs[i].Matches(token.Output) {
			return fmt.Errorf(
				"%w: input %d does not match its token", domain.ErrInvalidProof, i,
			)
		}
		if err := v.VerifyToken(token); err != nil {
			return fmt.Errorf("%w: input %d: %s", domain.ErrInvalidProof, i, err)
		}
	}
	return v.VerifyTransaction(tx)
}

func (v *tokenVerifier) VerifyAttestation(att domain.Attestation) error {
	if !v.membership.IsMember(att.NodeID) {
		return fmt.Errorf("attestation by unknown node %s", att.NodeID)
	}
	pubkey, err := hex.DecodeString(att.NodeID)
	if err != nil {
		return fmt.Errorf("invalid node id %s", att.NodeID)
	}
	if err := v.crypto.VerifySignature(
		pubkey, att.SigningMessage(), att.Signature,
	); err != nil {
		return fmt.Errorf("attestation by %s: %w", att.NodeID, err)
	}
	return nil
}

func (v *tokenVerifier) verifyBearer(token *domain.Token) error {
	if !token.Output.Bearer {
		if len(token.BearerSecret) > 0 {
			return fmt.Errorf("%w: owned token with bearer secret", domain.ErrInvalidToken)
		}
		return nil
	}
	pubkey, err := v.crypto.PublicKey(token.BearerSecret)
	if err != nil || !bytes.Equal(pubkey, token.Output.OwnerKey) {
		return fmt.Errorf(
			"%w: bearer secret does not match owner key", domain.ErrInvalidToken,
		)
	}
	return nil
}
