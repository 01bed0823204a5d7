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

// MintRequest tracks a confirmed stake until the representative token is
// minted or the stake is revoked.
type MintRequest struct {
	Staker      types.Address
	Beneficiary types.Address
	Amount      *big.Int
}

// RedeemRequest tracks a declared redeem until its outbox reaches a terminal
// status.
type RedeemRequest struct {
	Redeemer    types.Address
	Beneficiary types.Address
	Amount      *big.Int
}

// CoGateway is the utility-chain endpoint. It mints the representative token
// for confirmed stakes and escrows it during a redeem, burning on success.
// Mirrors Gateway's guards-before-mutation discipline.
type CoGateway struct {
	mu sync.Mutex
	*endpoint

	utilityToken token.UtilityToken
	baseToken    token.Token

	mints   map[types.Hash]*MintRequest
	redeems map[types.Hash]*RedeemRequest
}

// NewCoGateway creates the utility-chain endpoint. Escrowed utility tokens
// are held at the endpoint's own address until burned or returned.
func NewCoGateway(cfg Config, address types.Address, utilityToken token.UtilityToken, baseToken token.Token, roots anchor.StateRootProvider, verifier proof.Verifier, logger *log.Logger) (*CoGateway, error) {
	ep, err := newEndpoint(cfg, address, roots, verifier, logger, "cogateway")
	if err != nil {
		return nil, err
	}
	if utilityToken == nil || baseToken == nil {
		return nil, token.ErrZeroAddress
	}
	return &CoGateway{
		endpoint:     ep,
		utilityToken: utilityToken,
		baseToken:    baseToken,
		mints:        make(map[types.Hash]*MintRequest),
		redeems:      make(map[types.Hash]*RedeemRequest),
	}, nil
}

// MintRequestOf returns the pending mint for messageHash, if any.
func (c *CoGateway) MintRequestOf(messageHash types.Hash) (*MintRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.mints[messageHash]
	if !ok {
		return nil, false
	}
	cp := *r
	cp.Amount = new(big.Int).Set(r.Amount)
	return &cp, true
}

// RedeemRequestOf returns the pending redeem for messageHash, if any.
func (c *CoGateway) RedeemRequestOf(messageHash types.Hash) (*RedeemRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.redeems[messageHash]
	if !ok {
		return nil, false
	}
	cp := *r
	cp.Amount = new(big.Int).Set(r.Amount)
	return &cp, true
}

// ConfirmStakeIntent mirrors a stake declared on the value chain into the
// co-gateway's inbox. The proof must show the gateway's outbox holds the
// message in Declared status under the root anchored at blockHeight.
func (c *CoGateway) ConfirmStakeIntent(staker types.Address, nonce uint64, beneficiary types.Address, amount, gasPrice, gasLimit *big.Int, hashLock types.Hash, blockHeight uint64, serializedProof []byte) (types.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return types.Hash{}, ErrInvalidAmount
	}
	if beneficiary.IsZero() {
		return types.Hash{}, ErrZeroBeneficiary
	}
	m := &messagebus.Message{
		IntentHash: HashStakeIntent(amount, beneficiary, c.remote),
		Nonce:      nonce,
		GasPrice:   gasPrice,
		GasLimit:   gasLimit,
		Sender:     staker,
		HashLock:   hashLock,
	}
	if err := m.Validate(); err != nil {
		return types.Hash{}, err
	}
	if err := c.inTracker.CanRegister(staker, nonce); err != nil {
		return types.Hash{}, err
	}
	root, err := c.storageRootAt(blockHeight)
	if err != nil {
		return types.Hash{}, err
	}

	h, err := c.box.ConfirmMessage(m, c.verifier, root, serializedProof)
	if err != nil {
		return types.Hash{}, err
	}
	if err := c.inTracker.Register(staker, nonce, h); err != nil {
		return types.Hash{}, err
	}
	c.mints[h] = &MintRequest{Staker: staker, Beneficiary: beneficiary, Amount: new(big.Int).Set(amount)}
	c.meter.RecordConfirm(h, len(serializedProof))

	c.metrics.Counter("cogateway.stake.confirmed").Inc()
	c.logger.Info("stake intent confirmed", "messageHash", h.Hex(), "staker", staker.Hex(), "amount", amount.String())
	c.events.Emit(EventStakeIntentConfirmed, StakeIntentConfirmedEvent{
		MessageHash: h,
		Staker:      staker,
		Beneficiary: beneficiary,
		Amount:      new(big.Int).Set(amount),
		Nonce:       nonce,
		HashLock:    hashLock,
		BlockHeight: blockHeight,
	})
	return h, nil
}

// ProgressMint mints the representative token for a confirmed stake by
// revealing the hash-lock secret. The beneficiary receives amount minus the
// facilitator reward; the caller receives the reward.
func (c *CoGateway) ProgressMint(caller types.Address, messageHash types.Hash, unlockSecret []byte) error {
	return c.progressMint(caller, messageHash, func() error {
		return c.box.ProgressInbox(messageHash, unlockSecret)
	})
}

// ProgressMintWithProof mints with a proof that the gateway's outbox already
// progressed.
func (c *CoGateway) ProgressMintWithProof(caller types.Address, messageHash types.Hash, blockHeight uint64, serializedProof []byte) error {
	return c.progressMint(caller, messageHash, func() error {
		root, err := c.storageRootAt(blockHeight)
		if err != nil {
			return err
		}
		return c.box.ProgressInboxWithProof(messageHash, c.verifier, root, serializedProof)
	})
}

func (c *CoGateway) progressMint(caller types.Address, messageHash types.Hash, advance func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.mints[messageHash]
	if !ok {
		// No pending request: the box reports unknown hash vs terminal
		// replay precisely.
		return advance()
	}
	if caller.IsZero() {
		return ErrZeroCaller
	}
	m, ok := c.box.Message(messageHash)
	if !ok {
		return messagebus.ErrUnknownMessage
	}

	reward, err := FacilitatorReward(m.GasPrice, m.GasLimit, c.meter.Consumed(messageHash)+ProgressBaseGas)
	if err != nil {
		return err
	}
	if reward.Cmp(req.Amount) >= 0 {
		return ErrRewardExceedsAmount
	}

	if err := advance(); err != nil {
		return err
	}
	c.meter.RecordProgress(messageHash)

	minted := new(big.Int).Sub(req.Amount, reward)
	if err := c.utilityToken.Mint(req.Beneficiary, minted); err != nil {
		c.logger.Error("mint failed", "messageHash", messageHash.Hex(), "beneficiary", req.Beneficiary.Hex(), "err", err)
	}
	if reward.Sign() > 0 {
		if err := c.utilityToken.Mint(caller, reward); err != nil {
			c.logger.Error("reward mint failed", "messageHash", messageHash.Hex(), "facilitator", caller.Hex(), "err", err)
		}
	}

	ev := MintProgressedEvent{
		MessageHash:  messageHash,
		Beneficiary:  req.Beneficiary,
		MintedAmount: minted,
		RewardAmount: reward,
		Facilitator:  caller,
	}
	delete(c.mints, messageHash)

	c.metrics.Counter("cogateway.mint.progressed").Inc()
	c.logger.Info("mint progressed", "messageHash", messageHash.Hex(), "minted", minted.String(), "reward", reward.String())
	c.events.Emit(EventMintProgressed, ev)
	return nil
}

// Redeem escrows amount of the utility token from redeemer plus a bounty of
// the base token, and declares the redeem intent. The nonce must match the
// redeemer's next outbound nonce.
func (c *CoGateway) Redeem(redeemer types.Address, amount *big.Int, beneficiary types.Address, gasPrice, gasLimit *big.Int, nonce uint64, hashLock types.Hash) (types.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return types.Hash{}, ErrInvalidAmount
	}
	if beneficiary.IsZero() {
		return types.Hash{}, ErrZeroBeneficiary
	}
	if err := checkRewardBounded(gasPrice, gasLimit, amount); err != nil {
		return types.Hash{}, err
	}

	m := &messagebus.Message{
		IntentHash: HashRedeemIntent(amount, beneficiary, c.address),
		Nonce:      nonce,
		GasPrice:   gasPrice,
		GasLimit:   gasLimit,
		Sender:     redeemer,
		HashLock:   hashLock,
	}
	if err := m.Validate(); err != nil {
		return types.Hash{}, err
	}
	if err := c.outTracker.CanRegister(redeemer, nonce); err != nil {
		return types.Hash{}, err
	}

	bounty := c.cfg.BountyAmount()
	if err := c.utilityToken.TransferFrom(redeemer, c.address, amount); err != nil {
		return types.Hash{}, fmt.Errorf("gateway: escrowing redeem: %w", err)
	}
	if err := c.baseToken.TransferFrom(redeemer, c.address, bounty); err != nil {
		c.pay(c.utilityToken, c.address, redeemer, amount, m.Hash())
		return types.Hash{}, fmt.Errorf("gateway: posting bounty: %w", err)
	}

	h, err := c.box.DeclareMessage(m)
	if err != nil {
		c.pay(c.utilityToken, c.address, redeemer, amount, m.Hash())
		c.pay(c.baseToken, c.address, redeemer, bounty, m.Hash())
		return types.Hash{}, err
	}
	if err := c.outTracker.Register(redeemer, nonce, h); err != nil {
		return types.Hash{}, err
	}

	c.redeems[h] = &RedeemRequest{Redeemer: redeemer, Beneficiary: beneficiary, Amount: new(big.Int).Set(amount)}
	c.bounties[h] = bounty
	c.declaredAt[h] = c.roots.LatestHeight()

	c.metrics.Counter("cogateway.redeem.declared").Inc()
	c.logger.Info("redeem intent declared", "messageHash", h.Hex(), "redeemer", redeemer.Hex(), "amount", amount.String(), "nonce", nonce)
	c.events.Emit(EventRedeemIntentDeclared, RedeemIntentDeclaredEvent{
		MessageHash: h,
		Redeemer:    redeemer,
		Beneficiary: beneficiary,
		Amount:      new(big.Int).Set(amount),
		Nonce:       nonce,
		HashLock:    hashLock,
	})
	return h, nil
}

// ProgressRedeem completes the redeem by revealing the hash-lock secret. The
// escrowed utility tokens burn and the bounty pays the caller.
func (c *CoGateway) ProgressRedeem(caller types.Address, messageHash types.Hash, unlockSecret []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.redeems[messageHash]
	if !ok {
		return c.box.ProgressOutbox(messageHash, unlockSecret)
	}
	if caller.IsZero() {
		return ErrZeroCaller
	}
	if err := c.checkRedeemSettlementFunds(messageHash, req); err != nil {
		return err
	}
	if err := c.box.ProgressOutbox(messageHash, unlockSecret); err != nil {
		return err
	}
	c.settleRedeemProgress(messageHash, req, caller, false, unlockSecret)
	return nil
}

// checkRedeemSettlementFunds verifies the co-gateway's escrow covers the
// utility principal and base-token payouts before any box transition.
func (c *CoGateway) checkRedeemSettlementFunds(messageHash types.Hash, req *RedeemRequest) error {
	if err := checkFunds(c.utilityToken, c.address, req.Amount); err != nil {
		return err
	}
	forfeit := new(big.Int)
	if b := c.bounties[messageHash]; b != nil {
		forfeit.Add(forfeit, b)
	}
	if p := c.penalties[messageHash]; p != nil {
		forfeit.Add(forfeit, p)
	}
	return checkFunds(c.baseToken, c.address, forfeit)
}

// ProgressRedeemWithProof completes the redeem with a proof that the
// gateway's inbox already holds it. The bounty returns to the redeemer.
func (c *CoGateway) ProgressRedeemWithProof(messageHash types.Hash, blockHeight uint64, serializedProof []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	root, err := c.storageRootAt(blockHeight)
	if err != nil {
		return err
	}
	req, ok := c.redeems[messageHash]
	if !ok {
		return c.box.ProgressOutboxWithProof(messageHash, c.verifier, root, serializedProof)
	}
	if err := c.checkRedeemSettlementFunds(messageHash, req); err != nil {
		return err
	}
	if err := c.box.ProgressOutboxWithProof(messageHash, c.verifier, root, serializedProof); err != nil {
		return err
	}
	c.settleRedeemProgress(messageHash, req, req.Redeemer, true, nil)
	return nil
}

func (c *CoGateway) settleRedeemProgress(messageHash types.Hash, req *RedeemRequest, bountyTo types.Address, proofProgress bool, secret []byte) {
	if err := c.utilityToken.Burn(c.address, req.Amount); err != nil {
		c.logger.Error("escrow burn failed", "messageHash", messageHash.Hex(), "amount", req.Amount.String(), "err", err)
	}
	c.pay(c.baseToken, c.address, bountyTo, c.bounties[messageHash], messageHash)
	amount := new(big.Int).Set(req.Amount)
	redeemer := req.Redeemer
	delete(c.redeems, messageHash)
	c.clearEconomics(messageHash)

	c.metrics.Counter("cogateway.redeem.progressed").Inc()
	c.logger.Info("redeem progressed", "messageHash", messageHash.Hex(), "proof", proofProgress)
	c.events.Emit(EventRedeemProgressed, RedeemProgressedEvent{
		MessageHash:   messageHash,
		Redeemer:      redeemer,
		Amount:        amount,
		ProofProgress: proofProgress,
		UnlockSecret:  secret,
	})
}

// RevertRedeem abandons a declared redeem. Only the redeemer may revert,
// only after the counter chain has advanced WaitBlocks past the declaration,
// and only by posting a penalty of bounty × 3/2.
func (c *CoGateway) RevertRedeem(caller types.Address, messageHash types.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.redeems[messageHash]
	if !ok {
		return ErrUnknownRequest
	}
	if _, err := c.requireSender(messageHash, caller); err != nil {
		return err
	}
	if err := c.checkRevertWindow(c.declaredAt[messageHash]); err != nil {
		return err
	}

	penalty := c.cfg.PenaltyAmount()
	if err := c.baseToken.TransferFrom(caller, c.address, penalty); err != nil {
		return fmt.Errorf("gateway: posting penalty: %w", err)
	}
	if err := c.box.DeclareRevocationMessage(messageHash); err != nil {
		c.pay(c.baseToken, c.address, caller, penalty, messageHash)
		return err
	}
	c.penalties[messageHash] = penalty
	c.revertedAt[messageHash] = c.roots.LatestHeight()

	c.metrics.Counter("cogateway.redeem.revertDeclared").Inc()
	c.logger.Info("redeem revert declared", "messageHash", messageHash.Hex(), "redeemer", req.Redeemer.Hex())
	c.events.Emit(EventRevertRedeemDeclared, RevertRedeemDeclaredEvent{
		MessageHash: messageHash,
		Redeemer:    req.Redeemer,
		Amount:      new(big.Int).Set(req.Amount),
		Penalty:     new(big.Int).Set(penalty),
	})
	return nil
}

// ProgressRevertRedeem completes a redeem revert with a proof that the
// gateway's inbox reached Revoked. The escrowed utility tokens return to the
// redeemer; the bounty and penalty burn.
func (c *CoGateway) ProgressRevertRedeem(messageHash types.Hash, blockHeight uint64, serializedProof []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	root, err := c.storageRootAt(blockHeight)
	if err != nil {
		return err
	}
	req, ok := c.redeems[messageHash]
	if !ok {
		return c.box.ProgressOutboxRevocation(messageHash, c.verifier, root, serializedProof)
	}
	if err := c.checkRedeemSettlementFunds(messageHash, req); err != nil {
		return err
	}
	if err := c.box.ProgressOutboxRevocation(messageHash, c.verifier, root, serializedProof); err != nil {
		return err
	}
	c.settleRedeemRevert(messageHash, req, false)
	return nil
}

// ProgressRevertRedeemUnilateral completes a redeem revert the value chain
// never confirmed, using an absence proof past the wait window. Everything
// posted returns to the redeemer.
func (c *CoGateway) ProgressRevertRedeemUnilateral(messageHash types.Hash, blockHeight uint64, serializedProof []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.redeems[messageHash]
	if !ok {
		return ErrUnknownRequest
	}
	if err := c.checkUnilateralWindow(messageHash, blockHeight); err != nil {
		return err
	}
	root, err := c.storageRootAt(blockHeight)
	if err != nil {
		return err
	}
	if err := c.checkRedeemSettlementFunds(messageHash, req); err != nil {
		return err
	}
	if err := c.box.ProgressOutboxRevocationUnilateral(messageHash, c.verifier, root, serializedProof); err != nil {
		return err
	}
	c.settleRedeemRevert(messageHash, req, true)
	return nil
}

func (c *CoGateway) settleRedeemRevert(messageHash types.Hash, req *RedeemRequest, unilateral bool) {
	bounty := c.bounties[messageHash]
	penalty := c.penalties[messageHash]

	c.pay(c.utilityToken, c.address, req.Redeemer, req.Amount, messageHash)
	forfeit := new(big.Int)
	if bounty != nil {
		forfeit.Add(forfeit, bounty)
	}
	if penalty != nil {
		forfeit.Add(forfeit, penalty)
	}
	if unilateral {
		c.pay(c.baseToken, c.address, req.Redeemer, forfeit, messageHash)
	} else {
		c.pay(c.baseToken, c.address, c.burner, forfeit, messageHash)
	}

	amount := new(big.Int).Set(req.Amount)
	redeemer := req.Redeemer
	delete(c.redeems, messageHash)
	c.clearEconomics(messageHash)

	c.metrics.Counter("cogateway.redeem.reverted").Inc()
	c.logger.Info("redeem reverted", "messageHash", messageHash.Hex(), "unilateral", unilateral)
	c.events.Emit(EventRedeemReverted, RedeemRevertedEvent{
		MessageHash: messageHash,
		Redeemer:    redeemer,
		Amount:      amount,
		Unilateral:  unilateral,
	})
}

// ConfirmRevertStakeIntent mirrors a stake revert declared on the value
// chain into the co-gateway's inbox.
func (c *CoGateway) ConfirmRevertStakeIntent(messageHash types.Hash, blockHeight uint64, serializedProof []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.mints[messageHash]
	if !ok {
		return ErrUnknownRequest
	}
	root, err := c.storageRootAt(blockHeight)
	if err != nil {
		return err
	}
	if err := c.box.ConfirmRevocation(messageHash, c.verifier, root, serializedProof); err != nil {
		return err
	}

	c.metrics.Counter("cogateway.stake.revertConfirmed").Inc()
	c.logger.Info("stake revert confirmed", "messageHash", messageHash.Hex())
	c.events.Emit(EventRevertStakeIntentConfirmed, RevertStakeIntentConfirmedEvent{
		MessageHash: messageHash,
		Staker:      req.Staker,
	})
	return nil
}

// ProgressRevertStakeIntent finishes the co-gateway side of a stake revert.
// Nothing was minted for this flow, so only the pending mint record is
// dropped.
func (c *CoGateway) ProgressRevertStakeIntent(messageHash types.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.mints[messageHash]
	if !ok {
		return ErrUnknownRequest
	}
	if err := c.box.ProgressInboxRevocation(messageHash); err != nil {
		return err
	}
	staker := req.Staker
	delete(c.mints, messageHash)

	c.metrics.Counter("cogateway.stake.revertProgressed").Inc()
	c.logger.Info("stake revert progressed", "messageHash", messageHash.Hex())
	c.events.Emit(EventRevertStakeIntentProgressed, RevertStakeIntentProgressedEvent{
		MessageHash: messageHash,
		Staker:      staker,
	})
	return nil
}
