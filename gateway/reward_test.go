package gateway

import (
	"errors"
	"math/big"
	"testing"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
)

func TestWorkMeter(t *testing.T) {
	m := NewWorkMeter()
	h := types.Hash{0x01}

	if got := m.Consumed(h); got != 0 {
		t.Fatalf("Consumed = %d, want 0", got)
	}
	m.RecordConfirm(h, 100)
	want := uint64(ConfirmBaseGas + 100*GasPerProofByte)
	if got := m.Consumed(h); got != want {
		t.Errorf("after confirm: Consumed = %d, want %d", got, want)
	}
	want += ProgressBaseGas
	if got := m.RecordProgress(h); got != want {
		t.Errorf("RecordProgress = %d, want %d", got, want)
	}

	// Hashes meter independently.
	if got := m.Consumed(types.Hash{0x02}); got != 0 {
		t.Errorf("other hash Consumed = %d, want 0", got)
	}
}

func TestFacilitatorReward(t *testing.T) {
	tests := []struct {
		name     string
		price    int64
		limit    int64
		consumed uint64
		want     int64
	}{
		{"under the cap", 2, 100_000, 50_000, 100_000},
		{"capped by limit", 2, 30_000, 71_016, 60_000},
		{"exactly at cap", 1, 50_000, 50_000, 50_000},
		{"zero price", 0, 100_000, 50_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FacilitatorReward(big.NewInt(tt.price), big.NewInt(tt.limit), tt.consumed)
			if err != nil {
				t.Fatalf("FacilitatorReward() = %v", err)
			}
			if got.Int64() != tt.want {
				t.Errorf("FacilitatorReward() = %s, want %d", got, tt.want)
			}
		})
	}
}

func TestFacilitatorRewardOverflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 300)
	if _, err := FacilitatorReward(huge, big.NewInt(1), 1); !errors.Is(err, ErrGasOverflow) {
		t.Errorf("err = %v, want ErrGasOverflow", err)
	}

	// price × limit overflowing 256 bits is a hard error: the cap itself is
	// unrepresentable.
	big255 := new(big.Int).Lsh(big.NewInt(1), 255)
	if _, err := FacilitatorReward(big255, big.NewInt(4), 1); !errors.Is(err, ErrGasOverflow) {
		t.Errorf("err = %v, want ErrGasOverflow", err)
	}
}

func TestCheckRewardBounded(t *testing.T) {
	// gasPrice × gasLimit must be strictly below amount.
	if err := checkRewardBounded(big.NewInt(1), big.NewInt(999), big.NewInt(1000)); err != nil {
		t.Errorf("bounded case: %v", err)
	}
	if err := checkRewardBounded(big.NewInt(1), big.NewInt(1000), big.NewInt(1000)); !errors.Is(err, ErrRewardExceedsAmount) {
		t.Errorf("equal case: err = %v, want ErrRewardExceedsAmount", err)
	}
	if err := checkRewardBounded(big.NewInt(1), big.NewInt(1_000_000), big.NewInt(100_000)); !errors.Is(err, ErrRewardExceedsAmount) {
		t.Errorf("exceeding case: err = %v, want ErrRewardExceedsAmount", err)
	}
	if err := checkRewardBounded(big.NewInt(0), big.NewInt(0), big.NewInt(1)); err != nil {
		t.Errorf("zero gas: %v", err)
	}
}

func TestHashIntentDistinct(t *testing.T) {
	amount := big.NewInt(1000)
	beneficiary := types.Address{0x01}
	endpoint := types.Address{0x02}

	stake := HashStakeIntent(amount, beneficiary, endpoint)
	redeem := HashRedeemIntent(amount, beneficiary, endpoint)
	if stake == redeem {
		t.Error("stake and redeem intents must hash differently")
	}
	if stake != HashStakeIntent(big.NewInt(1000), beneficiary, endpoint) {
		t.Error("intent hash not deterministic")
	}
	if stake == HashStakeIntent(amount, beneficiary, types.Address{0x03}) {
		t.Error("intent hash must bind the endpoint address")
	}
}
