package domain

const (
	ViewerAddressCtxKey  = "pj-viewerAddress"
	ViewerVerifiedCtxKey = "pj-viewerVerified"
	RequestIDCtxKey      = "pj-requestId"
)

const (
	ViewerAddressHeader = "X-Wallet-Address"
	RequestIDHeader     = "X-Request-Id"
)

const (
	BpsDenominator  = 10000
	SecondsPerYear  = 365 * 24 * 60 * 60
	NativeDecimals  = 18
	DefaultMaxLtv   = 7000
	DefaultLiqLtv   = 9500
	DefaultAprBps   = 500
	WalletChannelNS = "pinjaman:wallet:"
)

// WarningTier is a display band derived from LTV; it never gates a write.
type WarningTier int

const (
	TierSafe WarningTier = iota
	TierCaution
	TierWarning
	TierDanger
	TierLiquidatable
)

func (t WarningTier) String() string {
	switch t {
	case TierSafe:
		return "safe"
	case TierCaution:
		return "caution"
	case TierWarning:
		return "warning"
	case TierDanger:
		return "danger"
	case TierLiquidatable:
		return "liquidatable"
	default:
		return "unknown"
	}
}
