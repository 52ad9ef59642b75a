package amount

// FeeSnapshot captures the fee schedule in effect at the moment an escrow
// was created. It is stored immutably on the escrow row so later changes to
// the platform default never retroactively alter an in-flight deal.
type FeeSnapshot struct {
	// FlatMicro is a fixed fee charged on every payout, expressed in
	// micro-units of the escrow's token.
	FlatMicro Micro
	// PercentBasisPoints is the percentage fee, represented as parts per
	// 10000 to keep the snapshot integer-only (e.g. 200 == 2%).
	PercentBasisPoints int64
	// ThresholdMicro is the net-amount threshold above which the percent
	// fee applies in addition to the flat fee; below it, only the flat
	// fee is charged.
	ThresholdMicro Micro
}

// DefaultFeeSnapshot mirrors the platform defaults: a flat 5 USDT fee, a 2%
// marginal fee on amounts exceeding a 100 USDT threshold.
var DefaultFeeSnapshot = FeeSnapshot{
	FlatMicro:          MustParse("5"),
	PercentBasisPoints: 200,
	ThresholdMicro:     MustParse("100"),
}

// CalculateFee returns the fee charged on a gross deposit amount under this
// snapshot: at or below the threshold the flat fee applies; above it, the
// fee is the percent rate applied to the whole amount (not the flat fee
// plus a marginal percent on the excess).
func (f FeeSnapshot) CalculateFee(gross Micro) Micro {
	if gross.Cmp(f.ThresholdMicro) <= 0 {
		return f.FlatMicro
	}
	return Micro(int64(gross) * f.PercentBasisPoints / 10000)
}

// CalculateNet returns the amount payable to the seller after the fee is
// deducted from the gross deposit. Never returns a negative amount; a gross
// deposit smaller than the fee nets to zero.
func (f FeeSnapshot) CalculateNet(gross Micro) Micro {
	fee := f.CalculateFee(gross)
	net := gross.Sub(fee)
	if net.IsNegative() {
		return 0
	}
	return net
}
