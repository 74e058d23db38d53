package cgroup

import "time"

// PeriodQuotaForRatio converts a cpu_time/real_time budget into a
// cpu.cfs_period_us/cpu.cfs_quota_us pair. The period is fixed at one second
// (the largest value cfs_period_us accepts), and the quota scales to match
// the cpu/real ratio, minimizing scheduler jitter relative to a shorter
// period.
func PeriodQuotaForRatio(cpuTime, realTime time.Duration) (period, quota time.Duration) {
	period = time.Second
	realMicros := realTime.Microseconds()
	if realMicros <= 0 {
		return period, period
	}
	// Computed in microseconds (the unit the cfs files use) so the product
	// does not overflow int64 for multi-second cpu budgets.
	quota = time.Duration(period.Microseconds()*cpuTime.Microseconds()/realMicros) * time.Microsecond
	return period, quota
}
