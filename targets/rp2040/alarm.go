//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"axisdrive/core"
)

// Alarms 1 and 2 run the step generators of axes 1 and 2. Alarms 0 and 3
// are left to the runtime.
const (
	timerTIMELR = timerBase + 0x0c
	timerALARM0 = timerBase + 0x10
	timerARMED  = timerBase + 0x20
	timerINTR   = timerBase + 0x34
	timerINTE   = timerBase + 0x38

	firstAlarm = 1
	lastAlarm  = 2
)

var (
	timerLR    = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMELR)))
	timerArmed = (*volatile.Register32)(unsafe.Pointer(uintptr(timerARMED)))
	timerIntr  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTR)))
	timerInte  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTE)))
)

// alarm is one TIMER alarm driving a task callback
type alarm struct {
	num      uint8
	reg      *volatile.Register32
	isr      func()
	schedule core.AlarmSchedule
}

var alarms [lastAlarm + 1]alarm

// SetPeriodSubMicros runs with interrupts masked (core.Tasks holds Critical)
func (a *alarm) SetPeriodSubMicros(period uint32) {
	if period == 0 {
		timerArmed.Set(1 << a.num)
	}
	if a.schedule.SetPeriod(period, timerLR.Get()) {
		// writing the alarm register arms it
		a.reg.Set(a.schedule.Target())
	}
}

func (a *alarm) fire() {
	timerIntr.Set(1 << a.num)
	if a.schedule.Period() == 0 {
		return
	}
	a.isr()
	a.reg.Set(a.schedule.Next(timerLR.Get()))
}

func alarm1Handler(interrupt.Interrupt) { alarms[1].fire() }
func alarm2Handler(interrupt.Interrupt) { alarms[2].fire() }

// alarmTimers hands TIMER alarms to core.Tasks as dedicated step timers
type alarmTimers struct{}

func (alarmTimers) Claim(num uint8, isr func()) (core.HardwareTimer, bool) {
	if num < firstAlarm || num > lastAlarm || isr == nil {
		return nil, false
	}
	a := &alarms[num]
	if a.isr != nil {
		return nil, false
	}
	a.num = num
	a.reg = (*volatile.Register32)(unsafe.Pointer(uintptr(timerALARM0 + 4*uint32(num))))
	a.isr = isr

	var irq interrupt.Interrupt
	switch num {
	case 1:
		irq = interrupt.New(rp.IRQ_TIMER_IRQ_1, alarm1Handler)
	case 2:
		irq = interrupt.New(rp.IRQ_TIMER_IRQ_2, alarm2Handler)
	}
	timerInte.SetBits(1 << num)
	irq.Enable()
	return a, true
}
