package domain

import (
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

var (
	bpsDenominator = big.NewInt(BpsDenominator)
	secondsPerYear = big.NewInt(SecondsPerYear)
)

func nz(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// AccruedInterest is simple, non-compounding interest linear in elapsed time.
func AccruedInterest(principal *big.Int, aprBps uint64, elapsed time.Duration) *big.Int {
	if elapsed <= 0 {
		return new(big.Int)
	}
	seconds := big.NewInt(int64(elapsed / time.Second))
	out := new(big.Int).Mul(nz(principal), new(big.Int).SetUint64(aprBps))
	out.Mul(out, seconds)
	denom := new(big.Int).Mul(bpsDenominator, secondsPerYear)
	return out.Quo(out, denom)
}

func DebtNow(principal *big.Int, aprBps uint64, elapsed time.Duration) *big.Int {
	return new(big.Int).Add(nz(principal), AccruedInterest(principal, aprBps, elapsed))
}

// LtvBps is debt*10000/collateralValue, zero when there is no collateral value.
// Results beyond uint64 saturate.
func LtvBps(debt, collateralValue *big.Int) uint64 {
	if collateralValue == nil || collateralValue.Sign() <= 0 {
		return 0
	}
	out := new(big.Int).Mul(nz(debt), bpsDenominator)
	out.Quo(out, collateralValue)
	if !out.IsUint64() {
		return math.MaxUint64
	}
	return out.Uint64()
}

func MaxBorrow(collateralValue *big.Int, maxLtvBps uint64) *big.Int {
	out := new(big.Int).Mul(nz(collateralValue), new(big.Int).SetUint64(maxLtvBps))
	return out.Quo(out, bpsDenominator)
}

// IsLiquidationEligible mirrors the ledger rule for display. The ledger decides.
func IsLiquidationEligible(ltvBps, thresholdBps uint64) bool {
	return ltvBps >= thresholdBps
}

func WarningTierOf(ltvBps uint64, params RiskParams) WarningTier {
	switch {
	case ltvBps >= params.LiquidationThresholdBps:
		return TierLiquidatable
	case ltvBps >= 9000:
		return TierDanger
	case ltvBps >= 8000:
		return TierWarning
	case ltvBps >= params.MaxLtvBps:
		return TierCaution
	default:
		return TierSafe
	}
}

func CheckBorrow(requested, maxBorrow *big.Int) error {
	if nz(requested).Cmp(nz(maxBorrow)) > 0 {
		return ExceedsMaxBorrowError{Requested: requested, Max: maxBorrow}
	}
	return nil
}

// EstimatedAnnualDebt is the borrow form estimate: one year of interest on the request.
func EstimatedAnnualDebt(requested *big.Int, aprBps uint64) *big.Int {
	return DebtNow(requested, aprBps, SecondsPerYear*time.Second)
}

// FormatBps renders basis points as a percentage with two decimals ("87.50").
// Presentation only.
func FormatBps(bps uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(bps), -2).StringFixed(2)
}
