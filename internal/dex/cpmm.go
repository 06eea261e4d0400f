package dex

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

const bpsDenominator = 10_000

// constantProductOut computes the output amount for a constant-product pool
// with the given fee, using arbitrary-precision integers so large token
// amounts never lose precision:
//
//	out = reserveOut * in * (10000 - feeBps) / (reserveIn * 10000 + in * (10000 - feeBps))
func constantProductOut(amountIn, reserveIn, reserveOut *big.Int, feeBps int) (*big.Int, error) {
	if amountIn.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "swap amount must be positive")
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "pool has no liquidity")
	}

	feeFactor := big.NewInt(int64(bpsDenominator - feeBps))
	inWithFee := new(big.Int).Mul(amountIn, feeFactor)

	numerator := new(big.Int).Mul(reserveOut, inWithFee)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(bpsDenominator))
	denominator.Add(denominator, inWithFee)

	return numerator.Div(numerator, denominator), nil
}

// priceImpactPercent measures how far the execution price deviates from the
// spot price, in basis points, and renders it as a percentage string ("0.42").
func priceImpactPercent(amountIn, amountOut, reserveIn, reserveOut *big.Int) string {
	if amountIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return "0.00"
	}

	// spotOut = in * reserveOut / reserveIn; impactBps = (1 - out/spotOut) * 10000.
	spotOut := new(big.Int).Mul(amountIn, reserveOut)
	spotOut.Div(spotOut, reserveIn)
	if spotOut.Sign() <= 0 {
		return "0.00"
	}

	scaled := new(big.Int).Mul(amountOut, big.NewInt(bpsDenominator))
	scaled.Div(scaled, spotOut)
	impactBps := bpsDenominator - scaled.Int64()
	if impactBps < 0 {
		impactBps = 0
	}
	return FormatBpsPercent(impactBps)
}

// FormatBpsPercent renders basis points as a two-decimal percentage string.
func FormatBpsPercent(bps int64) string {
	return fmt.Sprintf("%d.%02d", bps/100, bps%100)
}

// ParseBpsPercent is the inverse of FormatBpsPercent: it reads a percentage
// string such as "0.42" or "1" back into basis points.
func ParseBpsPercent(s string) (int64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" {
		whole = "0"
	}
	wholeVal, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || wholeVal < 0 {
		return 0, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("malformed percentage %q", s))
	}
	bps := wholeVal * 100
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		fracVal, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || fracVal < 0 {
			return 0, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("malformed percentage %q", s))
		}
		bps += fracVal
	}
	return bps, nil
}
