package runtimeabi

import "time"

// SetTimeout/SetInterval/ClearTimeout/ClearInterval back
// __gots_set_timeout, __gots_set_interval, __gots_clear_timeout, and
// __gots_clear_interval.
//
// goroutineID identifies the GoTS goroutine the timer belongs to, needed
// for ClearGoroutineTimers (§4.10) when that goroutine finishes. Emitted
// code does not pass it: setTimeoutShim/setIntervalShim supply the id last
// declared through __set_goroutine_context, which is 0 until that is called.
func (a *ABI) SetTimeout(goroutineID uint64, callbackRef int64, delayMs int64) int64 {
	cb := a.makeCallback(callbackRef)
	return a.timers.SetTimeout(goroutineID, cb, time.Duration(delayMs)*time.Millisecond)
}

func (a *ABI) SetInterval(goroutineID uint64, callbackRef int64, intervalMs int64) int64 {
	cb := a.makeCallback(callbackRef)
	return a.timers.SetInterval(goroutineID, cb, time.Duration(intervalMs)*time.Millisecond)
}

func (a *ABI) ClearTimeout(id int64) int64 {
	if a.timers.ClearTimer(id) {
		return 1
	}
	return 0
}

func (a *ABI) ClearInterval(id int64) int64 {
	return a.ClearTimeout(id)
}

// makeCallback wraps a function-value reference (the same Addr/Offset/ID
// preference order emitFunctionExpressionRef leaves in RAX) into the
// argument-less closure internal/timer's event loop calls directly on its
// own thread. Like goroutine spawning, actually invoking it needs the
// NativeCaller boundary; a callback fired with none wired in is logged and
// dropped rather than panicking the shared event-loop goroutine.
func (a *ABI) makeCallback(ref int64) func() {
	return func() {
		if a.native == nil {
			a.log.Warn().Int64("callback_ref", ref).Msg("timer fired with no NativeCaller wired in")
			return
		}
		if _, err := a.native.Call(uintptr(ref), nil); err != nil {
			a.log.Error().Err(err).Int64("callback_ref", ref).Msg("timer callback invocation failed")
		}
	}
}
