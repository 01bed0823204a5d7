package gateway

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/OpenST/mosaic-contracts-sub002/anchor"
	"github.com/OpenST/mosaic-contracts-sub002/core/types"
	"github.com/OpenST/mosaic-contracts-sub002/log"
	"github.com/OpenST/mosaic-contracts-sub002/messagebus"
	"github.com/OpenST/mosaic-contracts-sub002/proof"
	"github.com/OpenST/mosaic-contracts-sub002/token"
)

// StakeRequest tracks a declared stake until its outbox reaches a terminal
// status.
type StakeRequest struct {
	Staker      types.Address
	Beneficiary types.Address
	Amount      *big.Int
}

// UnstakeRequest tracks a confirmed redeem until the locked value is
// released or the redeem is revoked.
type UnstakeRequest struct {
	Redeemer    types.Address
	Beneficiary types.Address
	Amount      *big.Int
}

// Gateway is the value-chain endpoint. It escrows the value token during a
// stake, releases it on unstake, and holds the bounty/penalty economics that
// keep facilitators honest. Every operation runs its guards before touching
// any state: a returned error means nothing moved.
type Gateway struct {
	mu sync.Mutex
	*endpoint

	valueToken token.Token
	baseToken  token.Token
	vault      types.Address

	stakes   map[types.Hash]*StakeRequest
	unstakes map[types.Hash]*UnstakeRequest
}

// NewGateway creates the value-chain endpoint. vault is the custody account
// that holds successfully staked value until it is unstaked.
func NewGateway(cfg Config, address, vault types.Address, valueToken, baseToken token.Token, roots anchor.StateRootProvider, verifier proof.Verifier, logger *log.Logger) (*Gateway, error) {
	ep, err := newEndpoint(cfg, address, roots, verifier, logger, "gateway")
	if err != nil {
		return nil, err
	}
	if vault.IsZero() {
		return nil, ErrZeroBeneficiary
	}
	if valueToken == nil || baseToken == nil {
		return nil, token.ErrZeroAddress
	}
	return &Gateway{
		endpoint:   ep,
		valueToken: valueToken,
		baseToken:  baseToken,
		vault:      vault,
		stakes:     make(map[types.Hash]*StakeRequest),
		unstakes:   make(map[types.Hash]*UnstakeRequest),
	}, nil
}

// StakeRequestOf returns the pending stake for messageHash, if any.
func (g *Gateway) StakeRequestOf(messageHash types.Hash) (*StakeRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.stakes[messageHash]
	if !ok {
		return nil, false
	}
	cp := *r
	cp.Amount = new(big.Int).Set(r.Amount)
	return &cp, true
}

// UnstakeRequestOf returns the pending unstake for messageHash, if any.
func (g *Gateway) UnstakeRequestOf(messageHash types.Hash) (*UnstakeRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.unstakes[messageHash]
	if !ok {
		return nil, false
	}
	cp := *r
	cp.Amount = new(big.Int).Set(r.Amount)
	return &cp, true
}

// Stake escrows amount of the value token from staker and a bounty of the
// base token from caller, and declares the stake intent. The nonce is
// assigned internally; the returned hash identifies the flow on both chains.
func (g *Gateway) Stake(caller, staker types.Address, amount *big.Int, beneficiary types.Address, gasPrice, gasLimit *big.Int, hashLock types.Hash) (types.Hash, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if caller.IsZero() {
		return types.Hash{}, ErrZeroCaller
	}
	if amount == nil || amount.Sign() <= 0 {
		return types.Hash{}, ErrInvalidAmount
	}
	if beneficiary.IsZero() {
		return types.Hash{}, ErrZeroBeneficiary
	}
	if restricted := g.cfg.StakerAddress(); !restricted.IsZero() && (caller != restricted || staker != restricted) {
		return types.Hash{}, ErrRestrictedStaker
	}
	if err := checkRewardBounded(gasPrice, gasLimit, amount); err != nil {
		return types.Hash{}, err
	}

	nonce := g.outTracker.NextNonce(staker)
	m := &messagebus.Message{
		IntentHash: HashStakeIntent(amount, beneficiary, g.address),
		Nonce:      nonce,
		GasPrice:   gasPrice,
		GasLimit:   gasLimit,
		Sender:     staker,
		HashLock:   hashLock,
	}
	if err := m.Validate(); err != nil {
		return types.Hash{}, err
	}
	if err := g.outTracker.CanRegister(staker, nonce); err != nil {
		return types.Hash{}, err
	}

	bounty := g.cfg.BountyAmount()
	if err := g.valueToken.TransferFrom(staker, g.address, amount); err != nil {
		return types.Hash{}, fmt.Errorf("gateway: escrowing stake: %w", err)
	}
	if err := g.baseToken.TransferFrom(caller, g.address, bounty); err != nil {
		// Undo the escrow so a failed bounty pull leaves no funds moved.
		g.pay(g.valueToken, g.address, staker, amount, m.Hash())
		return types.Hash{}, fmt.Errorf("gateway: posting bounty: %w", err)
	}

	h, err := g.box.DeclareMessage(m)
	if err != nil {
		g.pay(g.valueToken, g.address, staker, amount, m.Hash())
		g.pay(g.baseToken, g.address, caller, bounty, m.Hash())
		return types.Hash{}, err
	}
	if err := g.outTracker.Register(staker, nonce, h); err != nil {
		return types.Hash{}, err
	}

	g.stakes[h] = &StakeRequest{Staker: staker, Beneficiary: beneficiary, Amount: new(big.Int).Set(amount)}
	g.bounties[h] = bounty
	g.declaredAt[h] = g.roots.LatestHeight()

	g.metrics.Counter("gateway.stake.declared").Inc()
	g.logger.Info("stake intent declared", "messageHash", h.Hex(), "staker", staker.Hex(), "amount", amount.String(), "nonce", nonce)
	g.events.Emit(EventStakeIntentDeclared, StakeIntentDeclaredEvent{
		MessageHash: h,
		Staker:      staker,
		Beneficiary: beneficiary,
		Amount:      new(big.Int).Set(amount),
		Nonce:       nonce,
		HashLock:    hashLock,
	})
	return h, nil
}

// ProgressStake completes the stake by revealing the hash-lock secret. The
// escrowed value moves to the vault and the bounty pays the caller.
func (g *Gateway) ProgressStake(caller types.Address, messageHash types.Hash, unlockSecret []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.stakes[messageHash]
	if !ok {
		// No pending request: unknown hash or an already-settled flow.
		// The box reports which, so terminal replays surface as
		// state-machine violations.
		return g.box.ProgressOutbox(messageHash, unlockSecret)
	}
	if caller.IsZero() {
		return ErrZeroCaller
	}
	if err := g.checkStakeSettlementFunds(messageHash, req); err != nil {
		return err
	}
	if err := g.box.ProgressOutbox(messageHash, unlockSecret); err != nil {
		return err
	}
	g.settleStakeProgress(messageHash, req, caller, false, unlockSecret)
	return nil
}

// ProgressStakeWithProof completes the stake with a proof that the counter
// chain's inbox already holds it. The bounty returns to the original staker.
func (g *Gateway) ProgressStakeWithProof(messageHash types.Hash, blockHeight uint64, serializedProof []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	root, err := g.storageRootAt(blockHeight)
	if err != nil {
		return err
	}
	req, ok := g.stakes[messageHash]
	if !ok {
		return g.box.ProgressOutboxWithProof(messageHash, g.verifier, root, serializedProof)
	}
	if err := g.checkStakeSettlementFunds(messageHash, req); err != nil {
		return err
	}
	if err := g.box.ProgressOutboxWithProof(messageHash, g.verifier, root, serializedProof); err != nil {
		return err
	}
	g.settleStakeProgress(messageHash, req, req.Staker, true, nil)
	return nil
}

// checkStakeSettlementFunds verifies the gateway's escrow covers the
// principal and bounty payouts before any box transition.
func (g *Gateway) checkStakeSettlementFunds(messageHash types.Hash, req *StakeRequest) error {
	if err := checkFunds(g.valueToken, g.address, req.Amount); err != nil {
		return err
	}
	forfeit := new(big.Int)
	if b := g.bounties[messageHash]; b != nil {
		forfeit.Add(forfeit, b)
	}
	if p := g.penalties[messageHash]; p != nil {
		forfeit.Add(forfeit, p)
	}
	return checkFunds(g.baseToken, g.address, forfeit)
}

func (g *Gateway) settleStakeProgress(messageHash types.Hash, req *StakeRequest, bountyTo types.Address, proofProgress bool, secret []byte) {
	g.pay(g.valueToken, g.address, g.vault, req.Amount, messageHash)
	g.pay(g.baseToken, g.address, bountyTo, g.bounties[messageHash], messageHash)
	amount := new(big.Int).Set(req.Amount)
	staker := req.Staker
	delete(g.stakes, messageHash)
	g.clearEconomics(messageHash)

	g.metrics.Counter("gateway.stake.progressed").Inc()
	g.logger.Info("stake progressed", "messageHash", messageHash.Hex(), "proof", proofProgress)
	g.events.Emit(EventStakeProgressed, StakeProgressedEvent{
		MessageHash:   messageHash,
		Staker:        staker,
		Amount:        amount,
		ProofProgress: proofProgress,
		UnlockSecret:  secret,
	})
}

// RevertStake abandons a declared stake. Only the staker may revert, only
// after the counter chain has advanced WaitBlocks past the declaration, and
// only by posting a penalty of bounty × 3/2.
func (g *Gateway) RevertStake(caller types.Address, messageHash types.Hash) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.stakes[messageHash]
	if !ok {
		return ErrUnknownRequest
	}
	if _, err := g.requireSender(messageHash, caller); err != nil {
		return err
	}
	if err := g.checkRevertWindow(g.declaredAt[messageHash]); err != nil {
		return err
	}

	penalty := g.cfg.PenaltyAmount()
	if err := g.baseToken.TransferFrom(caller, g.address, penalty); err != nil {
		return fmt.Errorf("gateway: posting penalty: %w", err)
	}
	if err := g.box.DeclareRevocationMessage(messageHash); err != nil {
		g.pay(g.baseToken, g.address, caller, penalty, messageHash)
		return err
	}
	g.penalties[messageHash] = penalty
	g.revertedAt[messageHash] = g.roots.LatestHeight()

	g.metrics.Counter("gateway.stake.revertDeclared").Inc()
	g.logger.Info("stake revert declared", "messageHash", messageHash.Hex(), "staker", req.Staker.Hex())
	g.events.Emit(EventRevertStakeIntentDeclared, RevertStakeIntentDeclaredEvent{
		MessageHash: messageHash,
		Staker:      req.Staker,
		Amount:      new(big.Int).Set(req.Amount),
		Penalty:     new(big.Int).Set(penalty),
	})
	return nil
}

// ProgressRevertStake completes a revert with a proof that the counter
// chain's inbox reached Revoked. The principal returns to the staker; the
// bounty and penalty burn.
func (g *Gateway) ProgressRevertStake(messageHash types.Hash, blockHeight uint64, serializedProof []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	root, err := g.storageRootAt(blockHeight)
	if err != nil {
		return err
	}
	req, ok := g.stakes[messageHash]
	if !ok {
		return g.box.ProgressOutboxRevocation(messageHash, g.verifier, root, serializedProof)
	}
	if err := g.checkStakeSettlementFunds(messageHash, req); err != nil {
		return err
	}
	if err := g.box.ProgressOutboxRevocation(messageHash, g.verifier, root, serializedProof); err != nil {
		return err
	}
	g.settleStakeRevert(messageHash, req, false)
	return nil
}

// ProgressRevertStakeUnilateral completes a revert the counter chain never
// confirmed. blockHeight must lie WaitBlocks past the revert declaration,
// and the proof must show the counter inbox slot still absent at that
// height. Everything posted returns to the staker.
func (g *Gateway) ProgressRevertStakeUnilateral(messageHash types.Hash, blockHeight uint64, serializedProof []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.stakes[messageHash]
	if !ok {
		return ErrUnknownRequest
	}
	if err := g.checkUnilateralWindow(messageHash, blockHeight); err != nil {
		return err
	}
	root, err := g.storageRootAt(blockHeight)
	if err != nil {
		return err
	}
	if err := g.checkStakeSettlementFunds(messageHash, req); err != nil {
		return err
	}
	if err := g.box.ProgressOutboxRevocationUnilateral(messageHash, g.verifier, root, serializedProof); err != nil {
		return err
	}
	g.settleStakeRevert(messageHash, req, true)
	return nil
}

func (g *Gateway) settleStakeRevert(messageHash types.Hash, req *StakeRequest, unilateral bool) {
	bounty := g.bounties[messageHash]
	penalty := g.penalties[messageHash]

	g.pay(g.valueToken, g.address, req.Staker, req.Amount, messageHash)
	forfeit := new(big.Int)
	if bounty != nil {
		forfeit.Add(forfeit, bounty)
	}
	if penalty != nil {
		forfeit.Add(forfeit, penalty)
	}
	if unilateral {
		g.pay(g.baseToken, g.address, req.Staker, forfeit, messageHash)
	} else {
		g.pay(g.baseToken, g.address, g.burner, forfeit, messageHash)
	}

	amount := new(big.Int).Set(req.Amount)
	staker := req.Staker
	delete(g.stakes, messageHash)
	g.clearEconomics(messageHash)

	g.metrics.Counter("gateway.stake.reverted").Inc()
	g.logger.Info("stake reverted", "messageHash", messageHash.Hex(), "unilateral", unilateral)
	g.events.Emit(EventStakeReverted, StakeRevertedEvent{
		MessageHash: messageHash,
		Staker:      staker,
		Amount:      amount,
		Unilateral:  unilateral,
	})
}

// ConfirmRedeemIntent mirrors a redeem declared on the utility chain into
// the gateway's inbox. The proof must show the co-gateway's outbox holds the
// message in Declared status under the root anchored at blockHeight.
func (g *Gateway) ConfirmRedeemIntent(redeemer types.Address, nonce uint64, beneficiary types.Address, amount, gasPrice, gasLimit *big.Int, hashLock types.Hash, blockHeight uint64, serializedProof []byte) (types.Hash, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return types.Hash{}, ErrInvalidAmount
	}
	if beneficiary.IsZero() {
		return types.Hash{}, ErrZeroBeneficiary
	}
	m := &messagebus.Message{
		IntentHash: HashRedeemIntent(amount, beneficiary, g.remote),
		Nonce:      nonce,
		GasPrice:   gasPrice,
		GasLimit:   gasLimit,
		Sender:     redeemer,
		HashLock:   hashLock,
	}
	if err := m.Validate(); err != nil {
		return types.Hash{}, err
	}
	if err := g.inTracker.CanRegister(redeemer, nonce); err != nil {
		return types.Hash{}, err
	}
	root, err := g.storageRootAt(blockHeight)
	if err != nil {
		return types.Hash{}, err
	}

	h, err := g.box.ConfirmMessage(m, g.verifier, root, serializedProof)
	if err != nil {
		return types.Hash{}, err
	}
	if err := g.inTracker.Register(redeemer, nonce, h); err != nil {
		return types.Hash{}, err
	}
	g.unstakes[h] = &UnstakeRequest{Redeemer: redeemer, Beneficiary: beneficiary, Amount: new(big.Int).Set(amount)}
	g.meter.RecordConfirm(h, len(serializedProof))

	g.metrics.Counter("gateway.redeem.confirmed").Inc()
	g.logger.Info("redeem intent confirmed", "messageHash", h.Hex(), "redeemer", redeemer.Hex(), "amount", amount.String())
	g.events.Emit(EventRedeemIntentConfirmed, RedeemIntentConfirmedEvent{
		MessageHash: h,
		Redeemer:    redeemer,
		Beneficiary: beneficiary,
		Amount:      new(big.Int).Set(amount),
		Nonce:       nonce,
		HashLock:    hashLock,
		BlockHeight: blockHeight,
	})
	return h, nil
}

// ProgressUnstake releases the locked value for a confirmed redeem by
// revealing the hash-lock secret. The beneficiary receives amount minus the
// facilitator reward; the caller receives the reward.
func (g *Gateway) ProgressUnstake(caller types.Address, messageHash types.Hash, unlockSecret []byte) error {
	return g.progressUnstake(caller, messageHash, func() error {
		return g.box.ProgressInbox(messageHash, unlockSecret)
	})
}

// ProgressUnstakeWithProof releases the locked value with a proof that the
// co-gateway's outbox already progressed.
func (g *Gateway) ProgressUnstakeWithProof(caller types.Address, messageHash types.Hash, blockHeight uint64, serializedProof []byte) error {
	return g.progressUnstake(caller, messageHash, func() error {
		root, err := g.storageRootAt(blockHeight)
		if err != nil {
			return err
		}
		return g.box.ProgressInboxWithProof(messageHash, g.verifier, root, serializedProof)
	})
}

func (g *Gateway) progressUnstake(caller types.Address, messageHash types.Hash, advance func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.unstakes[messageHash]
	if !ok {
		return advance()
	}
	if caller.IsZero() {
		return ErrZeroCaller
	}
	m, ok := g.box.Message(messageHash)
	if !ok {
		return messagebus.ErrUnknownMessage
	}

	// The reward must be known to fit and the vault to cover the payout
	// before the box transitions: a flow that cannot pay out must not
	// consume its inbox status.
	reward, err := FacilitatorReward(m.GasPrice, m.GasLimit, g.meter.Consumed(messageHash)+ProgressBaseGas)
	if err != nil {
		return err
	}
	if reward.Cmp(req.Amount) >= 0 {
		return ErrRewardExceedsAmount
	}
	if err := checkFunds(g.valueToken, g.vault, req.Amount); err != nil {
		return err
	}

	if err := advance(); err != nil {
		return err
	}
	g.meter.RecordProgress(messageHash)

	payout := new(big.Int).Sub(req.Amount, reward)
	g.pay(g.valueToken, g.vault, req.Beneficiary, payout, messageHash)
	g.pay(g.valueToken, g.vault, caller, reward, messageHash)

	ev := UnstakeProgressedEvent{
		MessageHash:   messageHash,
		Redeemer:      req.Redeemer,
		Beneficiary:   req.Beneficiary,
		RedeemAmount:  new(big.Int).Set(req.Amount),
		UnstakeAmount: payout,
		RewardAmount:  reward,
		Facilitator:   caller,
	}
	delete(g.unstakes, messageHash)

	g.metrics.Counter("gateway.unstake.progressed").Inc()
	g.logger.Info("unstake progressed", "messageHash", messageHash.Hex(), "payout", payout.String(), "reward", reward.String())
	g.events.Emit(EventUnstakeProgressed, ev)
	return nil
}

// ConfirmRevertRedeemIntent mirrors a redeem revert declared on the utility
// chain into the gateway's inbox.
func (g *Gateway) ConfirmRevertRedeemIntent(messageHash types.Hash, blockHeight uint64, serializedProof []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.unstakes[messageHash]
	if !ok {
		return ErrUnknownRequest
	}
	root, err := g.storageRootAt(blockHeight)
	if err != nil {
		return err
	}
	if err := g.box.ConfirmRevocation(messageHash, g.verifier, root, serializedProof); err != nil {
		return err
	}

	g.metrics.Counter("gateway.redeem.revertConfirmed").Inc()
	g.logger.Info("redeem revert confirmed", "messageHash", messageHash.Hex())
	g.events.Emit(EventRevertRedeemIntentConfirmed, RevertRedeemIntentConfirmedEvent{
		MessageHash: messageHash,
		Redeemer:    req.Redeemer,
	})
	return nil
}

// ProgressRevertRedeemIntent finishes the gateway side of a redeem revert.
// No value ever left the vault for this flow, so only the pending unstake
// record is dropped.
func (g *Gateway) ProgressRevertRedeemIntent(messageHash types.Hash) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.unstakes[messageHash]
	if !ok {
		return ErrUnknownRequest
	}
	if err := g.box.ProgressInboxRevocation(messageHash); err != nil {
		return err
	}
	redeemer := req.Redeemer
	delete(g.unstakes, messageHash)

	g.metrics.Counter("gateway.redeem.revertProgressed").Inc()
	g.logger.Info("redeem revert progressed", "messageHash", messageHash.Hex())
	g.events.Emit(EventRevertRedeemIntentProgressed, RevertRedeemIntentProgressedEvent{
		MessageHash: messageHash,
		Redeemer:    redeemer,
	})
	return nil
}
