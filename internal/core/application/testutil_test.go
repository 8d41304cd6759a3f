package application_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/spentbook/internal/core/application"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/core/ports"
	"github.com/tdex-network/spentbook/internal/infrastructure/storage/db/inmemory"
)

const genesisAmount = uint64(1000000)

// **** Crypto ****

// stubCrypto is a deterministic stand-in of the crypto primitive. Amounts are
// readable from commitments and signatures can be forged by anyone knowing
// the public key, which is enough to exercise the protocol.
type stubCrypto struct {
	counter uint64
}

var errBadSignature = errors.New("bad signature")

func (c *stubCrypto) next() []byte {
	n := atomic.AddUint64(&c.counter, 1)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	h := sha256.Sum256(buf)
	return h[:]
}

func stubPubKey(priv []byte) []byte {
	h := sha256.Sum256(append([]byte("pub"), priv...))
	return append([]byte{0x02}, h[:]...)
}

func (c *stubCrypto) NewBlinding() ([]byte, error) {
	return c.next(), nil
}

func (c *stubCrypto) Commit(s domain.AmountSecrets) ([]byte, error) {
	if len(s.Blinding) != 32 {
		return nil, fmt.Errorf("invalid blinding")
	}
	b := make([]byte, 9, 41)
	b[0] = 0x09
	binary.BigEndian.PutUint64(b[1:], s.Amount)
	return append(b, s.Blinding...), nil
}

func stubProof(msg []byte) []byte {
	h := sha256.Sum256(append([]byte("proof"), msg...))
	return h[:]
}

func (c *stubCrypto) Prove(_, _ []domain.AmountSecrets, msg []byte) ([]byte, error) {
	return stubProof(msg), nil
}

func (c *stubCrypto) Verify(inputs, outputs [][]byte, proof, msg []byte) error {
	sum := func(commitments [][]byte) (uint64, error) {
		var total uint64
		for _, c := range commitments {
			if len(c) != 41 || c[0] != 0x09 {
				return 0, fmt.Errorf("%w: bad commitment", domain.ErrInvalidProof)
			}
			total += binary.BigEndian.Uint64(c[1:9])
		}
		return total, nil
	}
	in, err := sum(inputs)
	if err != nil {
		return err
	}
	out, err := sum(outputs)
	if err != nil {
		return err
	}
	if in != out {
		return fmt.Errorf("%w: unbalanced", domain.ErrInvalidProof)
	}
	if !bytes.Equal(proof, stubProof(msg)) {
		return fmt.Errorf("%w: bad proof", domain.ErrInvalidProof)
	}
	return nil
}

func (c *stubCrypto) NewKey() ([]byte, []byte, error) {
	priv := c.next()
	return priv, stubPubKey(priv), nil
}

func (c *stubCrypto) PublicKey(priv []byte) ([]byte, error) {
	if len(priv) != 32 {
		return nil, fmt.Errorf("invalid private key")
	}
	return stubPubKey(priv), nil
}

func (c *stubCrypto) ValidatePublicKey(pub []byte) error {
	if len(pub) != 33 || (pub[0] != 0x02 && pub[0] != 0x03) {
		return fmt.Errorf("invalid public key")
	}
	return nil
}

func (c *stubCrypto) Sign(priv, msg []byte) ([]byte, error) {
	pub, err := c.PublicKey(priv)
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(append(pub, msg...))
	return h[:], nil
}

func (c *stubCrypto) VerifySignature(pub, msg, sig []byte) error {
	h := sha256.Sum256(append(append([]byte{}, pub...), msg...))
	if !bytes.Equal(h[:], sig) {
		return errBadSignature
	}
	return nil
}

func (c *stubCrypto) Seal(
	owner []byte, s domain.AmountSecrets,
) ([]byte, []byte, error) {
	if err := c.ValidatePublicKey(owner); err != nil {
		return nil, nil, err
	}
	return append([]byte{}, owner...), s.Serialize(), nil
}

func (c *stubCrypto) Open(priv, ephemeral, ciphertext []byte) (*domain.AmountSecrets, error) {
	if !bytes.Equal(stubPubKey(priv), ephemeral) {
		return nil, fmt.Errorf("wrong key")
	}
	s, err := domain.DeserializeAmountSecrets(ciphertext)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// **** Network ****

// localNetwork delivers spend requests to in-process nodes. Requests go
// through the canonical encoding like they would on the wire.
type localNetwork struct {
	lock    *sync.RWMutex
	nodes   map[string]application.SpentbookService
	offline map[string]bool
	calls   map[string]int
}

func newLocalNetwork() *localNetwork {
	return &localNetwork{
		lock:    &sync.RWMutex{},
		nodes:   map[string]application.SpentbookService{},
		offline: map[string]bool{},
		calls:   map[string]int{},
	}
}

func (n *localNetwork) Client(peer domain.Peer) (ports.SpentbookClient, error) {
	return &localClient{n, peer.ID}, nil
}

func (n *localNetwork) Close() {}

func (n *localNetwork) setOffline(id string, offline bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.offline[id] = offline
}

func (n *localNetwork) callsTo(id string) int {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.calls[id]
}

type localClient struct {
	network *localNetwork
	id      string
}

func (c *localClient) node() (application.SpentbookService, error) {
	c.network.lock.Lock()
	defer c.network.lock.Unlock()

	c.network.calls[c.id]++
	if c.network.offline[c.id] {
		return nil, fmt.Errorf("dial %s: connection refused", c.id)
	}
	return c.network.nodes[c.id], nil
}

func (c *localClient) Spend(
	ctx context.Context, req domain.SpendRequest,
) (*domain.SpendReply, error) {
	node, err := c.node()
	if err != nil {
		return nil, err
	}
	tx, err := domain.DeserializeTransaction(req.Transaction.Serialize())
	if err != nil {
		return nil, err
	}
	tokens := make([]domain.Token, 0, len(req.InputTokens))
	for i := range req.InputTokens {
		t, err := domain.DeserializeToken(req.InputTokens[i].Serialize())
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return node.HandleSpendRequest(
		ctx, domain.SpendRequest{Transaction: tx, InputTokens: tokens},
	)
}

func (c *localClient) Info(ctx context.Context) (*domain.NodeInfo, error) {
	node, err := c.node()
	if err != nil {
		return nil, err
	}
	return node.Info(ctx)
}

// **** Cluster ****

type testNode struct {
	id      string
	key     []byte
	repo    domain.SpendRecordRepository
	ledger  application.SpendLedger
	service application.SpentbookService
}

type testCluster struct {
	crypto     ports.Crypto
	membership domain.Membership
	network    *localNetwork
	nodes      []*testNode
}

func newTestCluster(t *testing.T, size, quorum int) *testCluster {
	return newTestClusterWithCrypto(t, &stubCrypto{}, size, quorum)
}

func newTestClusterWithCrypto(
	t *testing.T, crypto ports.Crypto, size, quorum int,
) *testCluster {
	network := newLocalNetwork()

	keys := make([][]byte, 0, size)
	membership := domain.Membership{QuorumSize: quorum}
	for i := 0; i < size; i++ {
		priv, pub, err := crypto.NewKey()
		require.NoError(t, err)
		keys = append(keys, priv)
		membership.Peers = append(membership.Peers, domain.Peer{
			ID:      hex.EncodeToString(pub),
			Address: fmt.Sprintf("localhost:%d", 9001+i),
		})
	}

	cluster := &testCluster{crypto: crypto, membership: membership, network: network}
	for i, key := range keys {
		repo := inmemory.NewSpendRecordRepositoryImpl()
		ledger, err := application.NewSpendLedger(repo, crypto, key)
		require.NoError(t, err)
		verifier, err := application.NewTokenVerifier(crypto, membership, genesisAmount)
		require.NoError(t, err)
		svc := application.NewSpentbookService(ledger, verifier, nil)
		require.NoError(t, svc.Start(context.Background()))

		id := membership.Peers[i].ID
		network.nodes[id] = svc
		cluster.nodes = append(cluster.nodes, &testNode{
			id: id, key: key, repo: repo, ledger: ledger, service: svc,
		})
	}
	return cluster
}

func (c *testCluster) verifier(t *testing.T) application.TokenVerifier {
	verifier, err := application.NewTokenVerifier(c.crypto, c.membership, genesisAmount)
	require.NoError(t, err)
	return verifier
}

func (c *testCluster) coordinator(t *testing.T) application.QuorumCoordinator {
	return application.NewQuorumCoordinator(c.network, c.verifier(t), time.Second)
}

func (c *testCluster) newWallet(t *testing.T) application.WalletService {
	return application.NewWalletService(
		inmemory.NewWalletRepositoryImpl(),
		c.crypto,
		c.verifier(t),
		application.NewTransactionBuilder(c.crypto),
		c.coordinator(t),
		genesisAmount,
	)
}

// genesisInput returns the genesis token as input spendable by anyone.
func (c *testCluster) genesisInput(t *testing.T) application.SpendableInput {
	genesis := c.verifier(t).Genesis()
	secrets, owner := domain.GenesisSecrets(genesisAmount)
	return application.SpendableInput{
		Token: *genesis, Secrets: secrets, OwnerSecret: owner,
	}
}

func (c *testCluster) newPubKey(t *testing.T) []byte {
	_, pub, err := c.crypto.NewKey()
	require.NoError(t, err)
	return pub
}
