package domain

import "math/big"

// VestedAmount computes the entitlement accrued by now (unix seconds).
//
// Before the start or the cliff nothing is vested; the cliff is an absolute
// gate, not a floor on the linear formula. At or after the end the full
// allocation is vested. In between, accrual is linear with floor division,
// so the engine never over-allocates; the residual fraction is picked up by
// later calls because the computation always restarts from the full elapsed
// time. The product is taken at 128-bit width so large allocations cannot
// overflow.
func VestedAmount(grant EmployeeGrant, now int64) int64 {
	if now < grant.StartTime || now < grant.CliffTime {
		return 0
	}
	if now >= grant.EndTime {
		return grant.TotalAmount
	}

	elapsed := big.NewInt(now - grant.StartTime)
	duration := big.NewInt(grant.EndTime - grant.StartTime)

	vested := new(big.Int).Mul(big.NewInt(grant.TotalAmount), elapsed)
	vested.Quo(vested, duration)
	return vested.Int64()
}

// ClaimableAt returns the amount withdrawable at now, never negative.
func ClaimableAt(grant EmployeeGrant, now int64) int64 {
	claimable := VestedAmount(grant, now) - grant.TotalWithdrawn
	if claimable < 0 {
		return 0
	}
	return claimable
}
