package broker

import (
	"time"

	"tungo/multi/instance"
)

// keepaliveTimeout is the Schedule payload armed by ArmKeepalive. It
// implements the generic `OnTimeout(time.Time)` contract multi/loop's
// serviceTimeouts dispatches to, closing the instance exactly as
// spec.md §4.7/§8 scenario 3 (keepalive disconnect) requires: no ping or
// data was seen within PingRestartSeconds, so the connection is torn down.
type keepaliveTimeout struct {
	b    *Broker
	inst *instance.Instance
}

func (k keepaliveTimeout) OnTimeout(time.Time) {
	k.b.CloseInstance(k.inst)
}

// ArmKeepalive (re)schedules inst's keepalive deadline restartSeconds after
// now, the per-instance timeout §4.7 describes: receiving a ping or any
// data resets the deadline via this same call, and letting it elapse
// without a reset triggers CloseInstance through keepaliveTimeout.OnTimeout.
func (b *Broker) ArmKeepalive(inst *instance.Instance, restartSeconds int, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	deadline := now.Add(time.Duration(restartSeconds) * time.Second)
	if inst.ScheduleEntry != nil {
		b.schedule.Reschedule(inst.ScheduleEntry, deadline)
		return
	}
	inst.ScheduleEntry = b.schedule.Insert(deadline, keepaliveTimeout{b: b, inst: inst})
}
