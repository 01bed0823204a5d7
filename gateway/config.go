// Package gateway implements the two protocol endpoints: Gateway on the
// value chain (stake/unstake) and CoGateway on the utility chain
// (mint/redeem). Both layer escrow, bounty/penalty economics, and
// facilitator rewards on top of the messagebus state machine.
package gateway

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/OpenST/mosaic-contracts-sub002/core/types"
)

// Penalty multiplier: a revert costs the initiator bounty × 3/2, posted up
// front. Fixed protocol parameter.
const (
	PenaltyNumerator   = 3
	PenaltyDenominator = 2
)

// Config holds one endpoint's protocol parameters.
type Config struct {
	// Bounty is the base-token amount the declare caller posts per message.
	Bounty uint64 `yaml:"bounty"`

	// WaitBlocks is the number of counter-chain blocks that must elapse
	// after a declare before the sender may revert, and again after a
	// revert declaration before unilateral completion.
	WaitBlocks uint64 `yaml:"wait_blocks"`

	// Burner is the hex address burned bounty+penalty funds are sent to.
	Burner string `yaml:"burner"`

	// RemoteGateway is the hex address of the counterpart endpoint on the
	// other chain; it is bound into every intent hash.
	RemoteGateway string `yaml:"remote_gateway"`

	// Staker optionally restricts who may initiate stakes. Empty means
	// open staking.
	Staker string `yaml:"staker"`

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config with sensible defaults. RemoteGateway has
// no default and must be set by the operator.
func DefaultConfig() Config {
	return Config{
		Bounty:     100,
		WaitBlocks: 25,
		Burner:     "0x000000000000000000000000000000000000dead",
		LogLevel:   "info",
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Bounty == 0 {
		return errors.New("config: bounty must be positive")
	}
	if c.WaitBlocks == 0 {
		return errors.New("config: wait_blocks must be positive")
	}
	if types.HexToAddress(c.Burner).IsZero() {
		return errors.New("config: burner must be a non-zero address")
	}
	if types.HexToAddress(c.RemoteGateway).IsZero() {
		return errors.New("config: remote_gateway must be a non-zero address")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

// LoadConfig reads a YAML config file, applying defaults for absent keys.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// BountyAmount returns the bounty as a big.Int.
func (c *Config) BountyAmount() *big.Int {
	return new(big.Int).SetUint64(c.Bounty)
}

// PenaltyAmount returns bounty × 3/2, rounded up so the penalty never falls
// below the protocol's multiplier for odd bounties.
func (c *Config) PenaltyAmount() *big.Int {
	p := new(big.Int).SetUint64(c.Bounty)
	p.Mul(p, big.NewInt(PenaltyNumerator))
	p.Add(p, big.NewInt(PenaltyDenominator-1))
	return p.Div(p, big.NewInt(PenaltyDenominator))
}

// BurnerAddress returns the parsed burner address.
func (c *Config) BurnerAddress() types.Address {
	return types.HexToAddress(c.Burner)
}

// RemoteGatewayAddress returns the parsed counterpart endpoint address.
func (c *Config) RemoteGatewayAddress() types.Address {
	return types.HexToAddress(c.RemoteGateway)
}

// StakerAddress returns the restricted staking account, zero when staking
// is open.
func (c *Config) StakerAddress() types.Address {
	if c.Staker == "" {
		return types.Address{}
	}
	return types.HexToAddress(c.Staker)
}
