package gateway

import (
	"math/big"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
	"github.com/OpenST/mosaic-contracts-sub002/crypto"
)

// Intent type hashes domain-separate the two intent kinds.
var (
	stakeIntentTypeHash  = crypto.Keccak256([]byte("StakeIntent(uint256 amount,address beneficiary,address gateway)"))
	redeemIntentTypeHash = crypto.Keccak256([]byte("RedeemIntent(uint256 amount,address beneficiary,address gateway)"))
)

// HashStakeIntent binds a stake's economic terms to the gateway endpoint it
// was declared on. Both chains must derive the identical hash.
func HashStakeIntent(amount *big.Int, beneficiary, gatewayAddr types.Address) types.Hash {
	return hashIntent(stakeIntentTypeHash, amount, beneficiary, gatewayAddr)
}

// HashRedeemIntent binds a redeem's economic terms to the co-gateway
// endpoint it was declared on.
func HashRedeemIntent(amount *big.Int, beneficiary, coGatewayAddr types.Address) types.Hash {
	return hashIntent(redeemIntentTypeHash, amount, beneficiary, coGatewayAddr)
}

func hashIntent(typeHash []byte, amount *big.Int, beneficiary, endpoint types.Address) types.Hash {
	var buf [4 * 32]byte
	copy(buf[0:32], typeHash)
	amt := amount.Bytes()
	if len(amt) > 32 {
		amt = amt[len(amt)-32:]
	}
	copy(buf[64-len(amt):64], amt)
	copy(buf[64+12:96], beneficiary[:])
	copy(buf[96+12:128], endpoint[:])
	return crypto.Keccak256Hash(buf[:])
}
