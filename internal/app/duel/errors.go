package duel

import "errors"

var ErrStakeLockFailed = errors.New("stake_lock_failed")
