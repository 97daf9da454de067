package settlement

import "expvar"

var (
	metricSettleAttemptTotal = expvar.NewInt("settlement_attempt_total")
	metricSettleSuccessTotal = expvar.NewInt("settlement_success_total")
	metricSettleRetryTotal   = expvar.NewInt("settlement_retry_total")
	metricSettleFailedTotal  = expvar.NewInt("settlement_failed_total")
	metricSettleReplayTotal  = expvar.NewInt("settlement_replay_total")
	metricStakeLockTotal     = expvar.NewInt("settlement_stake_lock_total")
)
