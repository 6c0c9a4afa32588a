// Package boot is the device side of the STM32 USART bootloader protocol
// (AN3155). An interrupt handler feeds received bytes into the engine's
// ring; a single cooperative loop drains complete frames, runs the INIT
// handshake, validates command frames and steps the selected command until
// it reports Done.
package boot

import (
	"context"
	"strings"
	"sync/atomic"

	"stm32boot-go/errcode"
	"stm32boot-go/protocol"
	"stm32boot-go/services/boot/halcore"
	"stm32boot-go/types"
	"stm32boot-go/x/conv"
	"stm32boot-go/x/shmring"
)

// Engine owns one bootloader session. All methods except OnByteReceived and
// OnAlarm must be called from the engine's own context.
type Engine struct {
	hw   halcore.Hardware
	cfg  Config
	reg  *Registry
	ring *shmring.Ring

	timedOut atomic.Bool

	state    types.State
	hostInit bool
	expected int
	staging  []byte
	frame    []byte
	selected Command
	sess     Session

	started    bool
	alarmArmed bool
	dropLogged bool
	frames     uint32
	commands   uint32

	err error // session end, nil while running or on a normal end
	end errcode.Code
}

func New(hw halcore.Hardware, reg *Registry, opts ...Option) *Engine {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.normalised()
	if reg == nil {
		reg = NewRegistry()
	}
	e := &Engine{
		hw:      hw,
		cfg:     cfg,
		reg:     reg,
		ring:    shmring.New(cfg.RingSize),
		staging: make([]byte, reg.MaxFrame()),
	}
	e.sess.e = e
	return e
}

// OnByteReceived is the UART RX interrupt entry point. It never blocks;
// bytes that do not fit in the ring are dropped and counted.
func (e *Engine) OnByteReceived(b byte) {
	e.ring.Push(b)
}

// OnAlarm is the inactivity alarm callback.
func (e *Engine) OnAlarm() {
	e.timedOut.Store(true)
}

// Start validates the capability bundle and configuration, resets the
// session and arms the inactivity alarm.
func (e *Engine) Start() error {
	needs := halcore.Needs{Alarm: e.cfg.InactivityTimeout > 0, Log: e.cfg.Logging}
	if missing := e.hw.Missing(needs); len(missing) > 0 {
		e.abortStart(errcode.MissingCapability, strings.Join(missing, ","))
		return e.err
	}
	if e.reg.MaxFrame() > e.ring.Cap() {
		e.abortStart(errcode.InvalidConfig, "frame "+conv.Dec(uint64(e.reg.MaxFrame()))+
			" exceeds ring "+conv.Dec(uint64(e.ring.Cap())))
		return e.err
	}

	e.log("Starting serial stm32 bootloader (AN3155)")
	e.state = types.StateAwaitingInit
	e.hostInit = false
	e.selected = nil
	e.timedOut.Store(false)
	e.err, e.end = nil, ""
	e.frames, e.commands = 0, 0
	e.dropLogged = false

	e.ring.Reset()
	e.expected = 1
	e.started = true

	if d := e.cfg.InactivityTimeout; d > 0 {
		now := e.hw.Alarm.Now()
		e.hw.Alarm.SetAlarm(now+d, e.OnAlarm)
		e.hw.Alarm.EnableAlarm()
		e.alarmArmed = true
		e.log("Waiting ", d.String(), " for bootloader init command...")
	}
	return nil
}

func (e *Engine) abortStart(c errcode.Code, msg string) {
	e.started = false
	e.state = types.StateSessionEnded
	e.end = c
	e.err = &errcode.E{C: c, Op: "start", Msg: msg}
	if e.hw.IRQ != nil {
		e.hw.IRQ.DisableInterrupts()
	}
}

// Poll runs one iteration of the session loop and reports whether the
// session is still running. It never blocks.
func (e *Engine) Poll() bool {
	running, _ := e.poll()
	return running
}

// poll also reports whether a frame was consumed.
func (e *Engine) poll() (running, progressed bool) {
	if !e.started || e.state == types.StateSessionEnded {
		return false, false
	}
	e.hw.Watchdog.Feed()

	if e.timedOut.Load() && !e.hostInit {
		e.log("No host within inactivity timeout")
		e.finish(errcode.Timeout, "")
		return false, false
	}

	if e.ring.Available() < e.expected {
		e.noteDrops()
		return true, false
	}

	e.frame = e.staging[:e.expected]
	e.hw.IRQ.DisableInterrupts()
	ok := e.ring.Drain(e.frame)
	e.hw.IRQ.EnableInterrupts()
	if !ok {
		return true, false
	}
	e.frames++

	if !e.hostInit {
		e.awaitInit()
		return e.state != types.StateSessionEnded, true
	}

	if e.selected == nil {
		if !e.selectCommand() {
			return false, true
		}
	}

	if e.selected.Step(&e.sess) == Done {
		e.selected = nil
		e.commands++
		e.expected = protocol.CommandFrameSize
		e.state = types.StateAwaitingCommand
	}
	return true, true
}

func (e *Engine) awaitInit() {
	switch e.frame[0] {
	case protocol.ByteInit:
		e.hostInit = true
		e.expected = protocol.CommandFrameSize
		e.state = types.StateAwaitingCommand
		e.disarm()
		e.send(protocol.ByteACK)
	case protocol.ByteQuit:
		e.log("Host quit before init")
		e.finish(errcode.Quit, "")
	default:
		e.expected = 1
	}
}

// selectCommand validates the command frame and selects the command. It
// ends the session and returns false on a protocol violation.
func (e *Engine) selectCommand() bool {
	if !protocol.Validate(e.frame) {
		e.log("csum error while selecting next cmd ", conv.Hex8(e.frame[0]), " ", conv.Hex8(e.frame[1]))
		e.finish(errcode.Checksum, "command "+conv.Hex8(e.frame[0]))
		return false
	}
	op := e.frame[0]
	cmd, ok := e.reg.Lookup(op)
	if !ok {
		e.log("unsupported cmd ", conv.Hex8(op))
		e.send(protocol.ByteNACK)
		e.finish(errcode.UnsupportedCommand, "opcode "+conv.Hex8(op))
		return false
	}
	e.selected = cmd
	e.state = types.StateExecutingCommand
	cmd.Reset()
	e.log("cmd ", cmd.Descriptor().Name)
	return true
}

// Run starts the session and polls it until it ends or ctx is cancelled.
// It returns nil when the session ended normally.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	return e.loop(ctx)
}

func (e *Engine) loop(ctx context.Context) error {
	for {
		running, progressed := e.poll()
		if !running {
			return e.err
		}
		if err := ctx.Err(); err != nil {
			if rf, ok := context.Cause(ctx).(*rxFailure); ok {
				e.log("rx port failed: ", rf.err.Error())
				e.finishCause(errcode.Error, "rx", rf.err)
			} else {
				e.finish(errcode.Cancelled, err.Error())
			}
			return e.err
		}
		if !progressed && e.cfg.Idle != nil {
			e.cfg.Idle()
		}
	}
}

// finish ends the session. Disabling interrupts is the last action.
func (e *Engine) finish(c errcode.Code, msg string) { e.finishCause(c, msg, nil) }

func (e *Engine) finishCause(c errcode.Code, msg string, cause error) {
	e.disarm()
	e.selected = nil
	e.state = types.StateSessionEnded
	e.end = c
	if !errcode.Normal(c) {
		e.err = &errcode.E{C: c, Op: "session", Msg: msg, Err: cause}
	}
	e.log("Leaving serial stm32 bootloader (", string(c), ")")
	e.hw.IRQ.DisableInterrupts()
}

func (e *Engine) disarm() {
	if e.alarmArmed {
		e.hw.Alarm.DisableAlarm()
		e.alarmArmed = false
	}
}

func (e *Engine) noteDrops() {
	if e.dropLogged {
		return
	}
	if n := e.ring.Dropped(); n > 0 {
		e.dropLogged = true
		e.log("rx ring overflow, dropped ", conv.Dec(uint64(n)), " bytes")
	}
}

func (e *Engine) send(b ...byte) {
	for _, c := range b {
		if err := e.hw.UART.WriteByte(c); err != nil {
			e.log("tx error: ", err.Error())
			return
		}
	}
}

// Ended reports whether the session is over and how it ended.
func (e *Engine) Ended() (bool, errcode.Code) {
	return e.state == types.StateSessionEnded, e.end
}

// Err is nil while running and after a normal end.
func (e *Engine) Err() error { return e.err }

// Info returns a diagnostic snapshot.
func (e *Engine) Info() types.SessionInfo {
	sel := -1
	if e.selected != nil {
		sel = int(e.selected.Descriptor().Opcode)
	}
	return types.SessionInfo{
		State:         e.state,
		HostInitDone:  e.hostInit,
		TimedOut:      e.timedOut.Load(),
		ExpectedBytes: e.expected,
		Selected:      sel,
		Buffered:      e.ring.Available(),
		Dropped:       e.ring.Dropped(),
		Frames:        e.frames,
		Commands:      e.commands,
		End:           string(e.end),
	}
}
