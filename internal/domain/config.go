package domain

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/pinjaman/hybrid"
)

// ChainConfig pins the deployment a component talks to.
type ChainConfig struct {
	ChainID         int64
	RPCURL          string
	ContractAddress common.Address
	StableAddress   common.Address
	StableDecimals  uint8
}

func (c ChainConfig) Decimals(token pinjaman.Token) uint8 {
	if token == pinjaman.TokenStable {
		return c.StableDecimals
	}
	return NativeDecimals
}

// TokenAddress is the address the contract uses for token; native is the zero address.
func (c ChainConfig) TokenAddress(token pinjaman.Token) common.Address {
	if token == pinjaman.TokenStable {
		return c.StableAddress
	}
	return common.Address{}
}

func (c ChainConfig) TokenOf(addr common.Address) pinjaman.Token {
	if addr == (common.Address{}) {
		return pinjaman.TokenNative
	}
	return pinjaman.TokenStable
}

// RiskParams are protocol constants in basis points.
type RiskParams struct {
	MaxLtvBps               uint64
	LiquidationThresholdBps uint64
	AprBps                  uint64
}

func DefaultRiskParams() RiskParams {
	return RiskParams{
		MaxLtvBps:               DefaultMaxLtv,
		LiquidationThresholdBps: DefaultLiqLtv,
		AprBps:                  DefaultAprBps,
	}
}
