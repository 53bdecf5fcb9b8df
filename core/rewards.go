package core

import "math/big"

// distributeRewards runs spec §4.3.3's reward distribution, step 2 of the
// epoch transition (spec §4.3.2). Emissions are FLK (HpFixed<18>) minted from
// inflation over the supply recorded at the start of the year; the service
// revenue pool (HpFixed<6> USD) accumulated in total_served.reward_pool is
// split alongside it. Both are partitioned protocol / node / service_builder,
// with node shares further split by the boosted stake-weighted revenue rule.
func distributeRewards(b *WriteBatch) error {
	p := b.t.Params
	rUsd := b.t.TotalServed.RewardPool

	emissions, err := yearlyEmissions(b.t.Metadata.SupplyAtYearStart, p.MaxInflationBps)
	if err != nil {
		return err
	}

	protocolFlk := emissions.MulFrac(big.NewInt(int64(p.ProtocolShareBps)), big.NewInt(10000))
	nodeFlk := emissions.MulFrac(big.NewInt(int64(p.NodeShareBps)), big.NewInt(10000))
	builderFlk := emissions.MulFrac(big.NewInt(int64(p.ServiceBuilderShareBps)), big.NewInt(10000))

	protocolUsd := rUsd.MulFrac(big.NewInt(int64(p.ProtocolShareBps)), big.NewInt(10000))
	nodeUsd := rUsd.MulFrac(big.NewInt(int64(p.NodeShareBps)), big.NewInt(10000))
	builderUsd := rUsd.MulFrac(big.NewInt(int64(p.ServiceBuilderShareBps)), big.NewInt(10000))

	if err := creditProtocolFund(b, protocolFlk, protocolUsd); err != nil {
		return err
	}
	if err := creditServiceBuilders(b, builderFlk, builderUsd); err != nil {
		return err
	}
	if err := creditNodes(b, nodeFlk, nodeUsd); err != nil {
		return err
	}

	newSupply, err := b.t.Metadata.Supply.Add(emissions)
	if err != nil {
		return err
	}
	b.t.Metadata.Supply = newSupply
	return nil
}

// yearlyEmissions computes inflation × supply_at_year_start / 365 (spec
// §4.3.3), exact to HpFixed<18> via MulFrac.
func yearlyEmissions(supplyAtYearStart *HpFixed, inflationBps uint32) (*HpFixed, error) {
	return supplyAtYearStart.MulFrac(big.NewInt(int64(inflationBps)), big.NewInt(10000*365)), nil
}

// creditProtocolFund adds the protocol's FLK and stable shares directly to
// the configured protocol fund account.
func creditProtocolFund(b *WriteBatch, flk, usd *HpFixed) error {
	acct := loadAccount(b, b.t.Metadata.ProtocolFundAddress)
	newFlk, err := acct.FlkBalance.Add(flk)
	if err != nil {
		return err
	}
	newUsd, err := acct.StablesBalance.Add(usd.Rescale(6))
	if err != nil {
		return err
	}
	acct.FlkBalance = newFlk
	acct.StablesBalance = newUsd
	b.t.Accounts[b.t.Metadata.ProtocolFundAddress] = acct
	return nil
}

// creditServiceBuilders splits the service-builder emission and revenue pro
// rata to each service's share of R_usd (spec §4.3.3: "Service-builder
// emissions are split across services in proportion to their contribution to
// R_usd"), using the per-service revenue SubmitDeliveryAck accumulated.
func creditServiceBuilders(b *WriteBatch, flk, usd *HpFixed) error {
	total := new(big.Int)
	contrib := make(map[ServiceId]*big.Int, len(b.t.TotalServed.ServiceRevenue))
	for id, revenue := range b.t.TotalServed.ServiceRevenue {
		v := revenue.Raw()
		contrib[id] = v
		total.Add(total, v)
	}
	if total.Sign() == 0 {
		return nil
	}
	for id, share := range contrib {
		if share.Sign() == 0 {
			continue
		}
		svc, ok := b.t.Services[id]
		if !ok {
			continue
		}
		acct := loadAccount(b, svc.Owner)
		shareFlk := flk.MulFrac(share, total)
		shareUsd := usd.MulFrac(share, total).Rescale(6)
		newFlk, err := acct.FlkBalance.Add(shareFlk)
		if err != nil {
			return err
		}
		newUsd, err := acct.StablesBalance.Add(shareUsd)
		if err != nil {
			return err
		}
		acct.FlkBalance = newFlk
		acct.StablesBalance = newUsd
		b.t.Accounts[svc.Owner] = acct
	}
	return nil
}

// creditNodes distributes the node emission and revenue shares using the
// boosted stake-weighted revenue rule (spec §4.3.3):
//
//	b_i = 1 + (max_boost-1) × min(stake_locked_until_i - current_epoch, max_lock) / max_lock
//	share_i = r_i·b_i / Σ_j r_j·b_j     (FLK, boosted)
//	share_i = r_i / Σ_j r_j             (stables, unboosted)
//
// r_i is the USD revenue SubmitDeliveryAck attributed to node i this epoch.
func creditNodes(b *WriteBatch, flk, usd *HpFixed) error {
	type weighted struct {
		id      NodeId
		revenue *big.Int // r_i, the node's accumulated RevenueUSD raw integer
		boosted *big.Int // r_i * b_i, scaled by 1e6 to keep boost fractional precision
	}
	maxLock := new(big.Int).SetUint64(b.t.Params.MaxLockEpochs)
	maxBoostMinus1 := new(big.Int).SetUint64(b.t.Params.MaxBoost - 1)

	ws := make([]weighted, 0, len(b.t.TotalServed.NodeRevenue))
	totalRevenue := new(big.Int)
	totalBoosted := new(big.Int)
	for idx, revenue := range b.t.TotalServed.NodeRevenue {
		r := revenue.Raw()
		if r.Sign() == 0 {
			continue
		}
		id, ok := b.t.IndexToNode[idx]
		if !ok {
			continue
		}
		n := b.t.Nodes[id]

		lockRemain := new(big.Int)
		if n.StakeLockedUntil > b.t.Metadata.CurrentEpoch {
			lockRemain.SetUint64(uint64(n.StakeLockedUntil - b.t.Metadata.CurrentEpoch))
		}
		if lockRemain.Cmp(maxLock) > 0 {
			lockRemain = maxLock
		}
		// boost_i = 1 + (max_boost-1) * lockRemain/max_lock, represented as a
		// 1e6-scaled integer numerator over denominator max_lock*1e6.
		const fracScale = 1_000_000
		boostNum := new(big.Int).Mul(maxBoostMinus1, lockRemain)
		boostNum.Mul(boostNum, big.NewInt(fracScale))
		if maxLock.Sign() > 0 {
			boostNum.Div(boostNum, maxLock)
		}
		boostScaled := new(big.Int).Add(big.NewInt(fracScale), boostNum) // (1+x) * fracScale

		boosted := new(big.Int).Mul(r, boostScaled)
		ws = append(ws, weighted{id: id, revenue: r, boosted: boosted})
		totalRevenue.Add(totalRevenue, r)
		totalBoosted.Add(totalBoosted, boosted)
	}
	if len(ws) == 0 {
		return nil
	}

	for _, w := range ws {
		n := b.t.Nodes[w.id]
		acct := loadAccount(b, n.Owner)

		if totalBoosted.Sign() > 0 {
			shareFlk := flk.MulFrac(w.boosted, totalBoosted)
			newFlk, err := acct.FlkBalance.Add(shareFlk)
			if err != nil {
				return err
			}
			acct.FlkBalance = newFlk
		}
		if totalRevenue.Sign() > 0 {
			shareUsd := usd.MulFrac(w.revenue, totalRevenue).Rescale(6)
			newUsd, err := acct.StablesBalance.Add(shareUsd)
			if err != nil {
				return err
			}
			acct.StablesBalance = newUsd
		}
		b.t.Accounts[n.Owner] = acct
	}
	return nil
}

// rolloverSupplyAtYearStart re-bases the year-start supply snapshot once a
// full year's worth of epoch changes has elapsed (supplements original_source's
// year-boundary bookkeeping; SPEC_FULL.md §S).
func rolloverSupplyAtYearStart(b *WriteBatch) {
	epochsPerYear := uint64(0)
	if b.t.Params.EpochTimeMs > 0 {
		const msPerYear = uint64(365) * 24 * 60 * 60 * 1000
		epochsPerYear = msPerYear / b.t.Params.EpochTimeMs
	}
	b.t.Metadata.EpochChangesThisYear++
	if epochsPerYear > 0 && b.t.Metadata.EpochChangesThisYear >= epochsPerYear {
		b.t.Metadata.SupplyAtYearStart = b.t.Metadata.Supply.Clone()
		b.t.Metadata.EpochChangesThisYear = 0
	}
}
