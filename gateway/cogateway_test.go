package gateway

import (
	"errors"
	"math/big"
	"testing"

	"github.com/OpenST/mosaic-contracts-sub002/anchor"
	"github.com/OpenST/mosaic-contracts-sub002/core/types"
	"github.com/OpenST/mosaic-contracts-sub002/crypto"
	"github.com/OpenST/mosaic-contracts-sub002/messagebus"
	"github.com/OpenST/mosaic-contracts-sub002/proof"
	"github.com/OpenST/mosaic-contracts-sub002/token"
)

var cgAddr = types.Address{0xba}

type cgFixture struct {
	cg       *CoGateway
	anchor   *anchor.Anchor
	verifier *proof.MockVerifier
	utility  *token.Ledger
	base     *token.Ledger
	cfg      Config
}

func newCgFixture(t *testing.T) *cgFixture {
	t.Helper()

	cfg := DefaultConfig()
	cfg.RemoteGateway = remoteAddr.Hex()

	a := anchor.New()
	v := proof.NewMockVerifier()
	utility := token.NewLedger()
	base := token.NewLedger()

	if err := base.Mint(redeemer, big.NewInt(10_000)); err != nil {
		t.Fatal(err)
	}

	cg, err := NewCoGateway(cfg, cgAddr, utility, base, a, v, nil)
	if err != nil {
		t.Fatalf("NewCoGateway() = %v", err)
	}
	return &cgFixture{cg: cg, anchor: a, verifier: v, utility: utility, base: base, cfg: cfg}
}

func (f *cgFixture) anchorRoot(t *testing.T, height uint64) types.Hash {
	t.Helper()
	root := crypto.Keccak256Hash([]byte{byte(height)})
	if err := f.anchor.AnchorStateRoot(height, root); err != nil {
		t.Fatalf("AnchorStateRoot(%d) = %v", height, err)
	}
	return root
}

func (f *cgFixture) stubCounter(root types.Hash, boxOffset uint8, h types.Hash, status messagebus.MessageStatus) {
	var value []byte
	if status != messagebus.Undeclared {
		value = messagebus.EncodeStatus(status)
	}
	f.verifier.Stub(root, proof.StoragePath(boxOffset, h), value)
}

// confirmStake mirrors a stake declared on the value chain into the
// co-gateway.
func (f *cgFixture) confirmStake(t *testing.T, amount, gasPrice, gasLimit int64) types.Hash {
	t.Helper()

	m := &messagebus.Message{
		IntentHash: HashStakeIntent(big.NewInt(amount), beneficiary, remoteAddr),
		Nonce:      1,
		GasPrice:   big.NewInt(gasPrice),
		GasLimit:   big.NewInt(gasLimit),
		Sender:     staker,
		HashLock:   crypto.NewHashLock(testSecret),
	}
	root := f.anchorRoot(t, 3)
	f.stubCounter(root, proof.OutboxOffset, m.Hash(), messagebus.Declared)

	h, err := f.cg.ConfirmStakeIntent(staker, 1, beneficiary, big.NewInt(amount), big.NewInt(gasPrice), big.NewInt(gasLimit), m.HashLock, 3, testProof)
	if err != nil {
		t.Fatalf("ConfirmStakeIntent() = %v", err)
	}
	return h
}

func TestConfirmStakeIntent(t *testing.T) {
	f := newCgFixture(t)
	h := f.confirmStake(t, 100_000, 1, 80_000)

	if st := f.cg.MessageBox().InboxStatus(h); st != messagebus.Declared {
		t.Errorf("inbox = %s, want Declared", st)
	}
	req, ok := f.cg.MintRequestOf(h)
	if !ok {
		t.Fatal("mint request not recorded")
	}
	if req.Staker != staker || req.Beneficiary != beneficiary || req.Amount.Int64() != 100_000 {
		t.Errorf("request = %+v", req)
	}

	hist := f.cg.Events().History()
	if len(hist) != 1 || hist[0].Type != EventStakeIntentConfirmed {
		t.Fatalf("events = %v", hist)
	}
}

func TestConfirmStakeIntentBadProof(t *testing.T) {
	f := newCgFixture(t)
	root := f.anchorRoot(t, 3)
	_ = root // nothing stubbed: the verifier rejects the proof

	_, err := f.cg.ConfirmStakeIntent(staker, 1, beneficiary, big.NewInt(1000), big.NewInt(0), big.NewInt(0), crypto.NewHashLock(testSecret), 3, testProof)
	if !errors.Is(err, proof.ErrProofInvalid) {
		t.Errorf("err = %v, want ErrProofInvalid", err)
	}
	if _, ok := f.cg.MintRequestOf(types.Hash{}); ok {
		t.Error("no request may exist after a failed confirm")
	}
}

func TestProgressMint(t *testing.T) {
	f := newCgFixture(t)
	h := f.confirmStake(t, 100_000, 1, 80_000)

	if err := f.cg.ProgressMint(facilitator, h, testSecret); err != nil {
		t.Fatalf("ProgressMint() = %v", err)
	}

	reward := int64(ConfirmBaseGas + GasPerProofByte*len(testProof) + ProgressBaseGas)
	if got := f.utility.BalanceOf(beneficiary).Int64(); got != 100_000-reward {
		t.Errorf("beneficiary = %d, want %d", got, 100_000-reward)
	}
	if got := f.utility.BalanceOf(facilitator).Int64(); got != reward {
		t.Errorf("facilitator = %d, want %d", got, reward)
	}
	// Supply grows by exactly the staked amount.
	if got := f.utility.TotalSupply().Int64(); got != 100_000 {
		t.Errorf("supply = %d, want 100000", got)
	}
	if _, ok := f.cg.MintRequestOf(h); ok {
		t.Error("mint request must be consumed")
	}

	if err := f.cg.ProgressMint(facilitator, h, testSecret); !errors.Is(err, messagebus.ErrInvalidTransition) {
		t.Errorf("second mint: %v", err)
	}
}

func TestProgressMintWithProof(t *testing.T) {
	f := newCgFixture(t)
	h := f.confirmStake(t, 100_000, 0, 0)

	root := f.anchorRoot(t, 9)
	f.stubCounter(root, proof.OutboxOffset, h, messagebus.Progressed)
	if err := f.cg.ProgressMintWithProof(facilitator, h, 9, testProof); err != nil {
		t.Fatalf("ProgressMintWithProof() = %v", err)
	}
	// Zero gas price: the whole amount mints to the beneficiary.
	if got := f.utility.BalanceOf(beneficiary).Int64(); got != 100_000 {
		t.Errorf("beneficiary = %d, want 100000", got)
	}
	if got := f.utility.BalanceOf(facilitator).Int64(); got != 0 {
		t.Errorf("facilitator = %d, want 0", got)
	}
}

func (f *cgFixture) redeem(t *testing.T, amount, gasPrice, gasLimit int64) types.Hash {
	t.Helper()
	if err := f.utility.Mint(redeemer, big.NewInt(amount)); err != nil {
		t.Fatal(err)
	}
	h, err := f.cg.Redeem(redeemer, big.NewInt(amount), beneficiary, big.NewInt(gasPrice), big.NewInt(gasLimit), f.cg.NextNonce(redeemer), crypto.NewHashLock(testSecret))
	if err != nil {
		t.Fatalf("Redeem() = %v", err)
	}
	return h
}

func TestRedeemDeclares(t *testing.T) {
	f := newCgFixture(t)
	h := f.redeem(t, 100_000, 1, 50_000)

	if st := f.cg.MessageBox().OutboxStatus(h); st != messagebus.Declared {
		t.Errorf("outbox = %s, want Declared", st)
	}
	if got := f.utility.BalanceOf(redeemer).Int64(); got != 0 {
		t.Errorf("redeemer utility = %d, want 0 (escrowed)", got)
	}
	if got := f.utility.BalanceOf(cgAddr).Int64(); got != 100_000 {
		t.Errorf("escrow = %d, want 100000", got)
	}
	if got := f.base.BalanceOf(redeemer).Int64(); got != 9_900 {
		t.Errorf("redeemer base = %d, want 9900 (bounty posted)", got)
	}
}

func TestRedeemRewardMustFitAmount(t *testing.T) {
	f := newCgFixture(t)
	if err := f.utility.Mint(redeemer, big.NewInt(100_000)); err != nil {
		t.Fatal(err)
	}

	// gasPrice × gasLimit = 1000000 >= 100000: the worst-case reward would
	// swallow the whole redemption, so the declare is rejected.
	_, err := f.cg.Redeem(redeemer, big.NewInt(100_000), beneficiary, big.NewInt(1), big.NewInt(1_000_000), 1, crypto.NewHashLock(testSecret))
	if !errors.Is(err, ErrRewardExceedsAmount) {
		t.Fatalf("err = %v, want ErrRewardExceedsAmount", err)
	}
	if got := f.utility.BalanceOf(redeemer).Int64(); got != 100_000 {
		t.Errorf("redeemer utility = %d, nothing may move on a failed declare", got)
	}
}

func TestRedeemNonceMismatch(t *testing.T) {
	f := newCgFixture(t)
	if err := f.utility.Mint(redeemer, big.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	_, err := f.cg.Redeem(redeemer, big.NewInt(1000), beneficiary, big.NewInt(0), big.NewInt(0), 4, crypto.NewHashLock(testSecret))
	if !errors.Is(err, messagebus.ErrInvalidNonce) {
		t.Errorf("err = %v, want ErrInvalidNonce", err)
	}
	if got := f.utility.BalanceOf(redeemer).Int64(); got != 1000 {
		t.Errorf("redeemer utility = %d, nothing may move", got)
	}
}

func TestProgressRedeemBurns(t *testing.T) {
	f := newCgFixture(t)
	h := f.redeem(t, 100_000, 0, 0)

	if err := f.cg.ProgressRedeem(facilitator, h, testSecret); err != nil {
		t.Fatalf("ProgressRedeem() = %v", err)
	}
	// The escrow burns: supply shrinks by the redeemed amount.
	if got := f.utility.TotalSupply().Int64(); got != 0 {
		t.Errorf("supply = %d, want 0", got)
	}
	if got := f.base.BalanceOf(facilitator).Int64(); got != 100 {
		t.Errorf("facilitator bounty = %d, want 100", got)
	}
	if st := f.cg.MessageBox().OutboxStatus(h); st != messagebus.Progressed {
		t.Errorf("outbox = %s, want Progressed", st)
	}
}

func TestProgressRedeemWithProof(t *testing.T) {
	f := newCgFixture(t)
	h := f.redeem(t, 100_000, 0, 0)

	root := f.anchorRoot(t, 7)
	f.stubCounter(root, proof.InboxOffset, h, messagebus.Declared)
	if err := f.cg.ProgressRedeemWithProof(h, 7, testProof); err != nil {
		t.Fatalf("ProgressRedeemWithProof() = %v", err)
	}
	// Proof progress returns the bounty to the redeemer.
	if got := f.base.BalanceOf(redeemer).Int64(); got != 10_000 {
		t.Errorf("redeemer base = %d, want 10000", got)
	}
}

func TestRevertRedeemFlow(t *testing.T) {
	f := newCgFixture(t)
	h := f.redeem(t, 100_000, 0, 0)

	if err := f.cg.RevertRedeem(redeemer, h); !errors.Is(err, ErrRevertWindow) {
		t.Errorf("early revert: %v", err)
	}
	f.anchorRoot(t, f.cfg.WaitBlocks)
	if err := f.cg.RevertRedeem(facilitator, h); !errors.Is(err, ErrNotMessageSender) {
		t.Errorf("non-sender revert: %v", err)
	}
	if err := f.cg.RevertRedeem(redeemer, h); err != nil {
		t.Fatalf("RevertRedeem() = %v", err)
	}

	root := f.anchorRoot(t, f.cfg.WaitBlocks+5)
	f.stubCounter(root, proof.InboxOffset, h, messagebus.Revoked)
	if err := f.cg.ProgressRevertRedeem(h, f.cfg.WaitBlocks+5, testProof); err != nil {
		t.Fatalf("ProgressRevertRedeem() = %v", err)
	}

	// Escrow returns (supply unchanged), bounty + penalty burn.
	if got := f.utility.BalanceOf(redeemer).Int64(); got != 100_000 {
		t.Errorf("redeemer utility = %d, want 100000", got)
	}
	if got := f.utility.TotalSupply().Int64(); got != 100_000 {
		t.Errorf("supply = %d, want 100000", got)
	}
	if got := f.base.BalanceOf(f.cfg.BurnerAddress()).Int64(); got != 250 {
		t.Errorf("burner = %d, want 250", got)
	}
	if st := f.cg.MessageBox().OutboxStatus(h); st != messagebus.Revoked {
		t.Errorf("outbox = %s, want Revoked", st)
	}
}

func TestProgressRevertRedeemUnilateral(t *testing.T) {
	f := newCgFixture(t)
	h := f.redeem(t, 100_000, 0, 0)
	f.anchorRoot(t, f.cfg.WaitBlocks)
	if err := f.cg.RevertRedeem(redeemer, h); err != nil {
		t.Fatal(err)
	}

	height := f.cfg.WaitBlocks * 2
	root := f.anchorRoot(t, height)
	f.stubCounter(root, proof.InboxOffset, h, messagebus.Undeclared)
	if err := f.cg.ProgressRevertRedeemUnilateral(h, height, testProof); err != nil {
		t.Fatalf("ProgressRevertRedeemUnilateral() = %v", err)
	}

	// Nothing confirmed on the value chain: bounty and penalty come back.
	if got := f.base.BalanceOf(redeemer).Int64(); got != 10_000 {
		t.Errorf("redeemer base = %d, want 10000", got)
	}
	if got := f.utility.BalanceOf(redeemer).Int64(); got != 100_000 {
		t.Errorf("redeemer utility = %d, want 100000", got)
	}
}

func TestRevertStakeInboxFlow(t *testing.T) {
	f := newCgFixture(t)
	h := f.confirmStake(t, 100_000, 0, 0)

	root := f.anchorRoot(t, 30)
	f.stubCounter(root, proof.OutboxOffset, h, messagebus.DeclaredRevocation)
	if err := f.cg.ConfirmRevertStakeIntent(h, 30, testProof); err != nil {
		t.Fatalf("ConfirmRevertStakeIntent() = %v", err)
	}
	if err := f.cg.ProgressRevertStakeIntent(h); err != nil {
		t.Fatalf("ProgressRevertStakeIntent() = %v", err)
	}

	if st := f.cg.MessageBox().InboxStatus(h); st != messagebus.Revoked {
		t.Errorf("inbox = %s, want Revoked", st)
	}
	if _, ok := f.cg.MintRequestOf(h); ok {
		t.Error("mint request must be dropped")
	}
	if got := f.utility.TotalSupply().Int64(); got != 0 {
		t.Errorf("supply = %d, nothing may mint for a revoked stake", got)
	}

	// After the revoke, the mint can never progress.
	if err := f.cg.ProgressMint(facilitator, h, testSecret); !errors.Is(err, messagebus.ErrInvalidTransition) {
		t.Errorf("mint after revoke: %v", err)
	}
}
