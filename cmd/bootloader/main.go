//go:build rp2040

// Command bootloader runs one AN3155 session on uart0 and then lets the
// watchdog reset the board, which boots whatever image is now in flash.
package main

import (
	"context"
	"machine"
	"runtime"
	"time"

	"stm32boot-go/errcode"
	"stm32boot-go/protocol"
	"stm32boot-go/services/boot"
	"stm32boot-go/services/boot/commands"
	"stm32boot-go/services/boot/halcore"
	"stm32boot-go/services/boot/platform"
	"stm32boot-go/types"
)

const (
	chipID            = 0x0413 // what stm32flash and friends expect to see
	inactivity        = 5 * time.Second
	watchdogTimeoutMs = 2000
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(1500 * time.Millisecond)
	println("[boot] start")

	u, err := platform.OpenUART("uart0", types.BootSerialFormat, machine.UART0_TX_PIN, machine.UART0_RX_PIN)
	if err != nil {
		println("[boot] uart:", err.Error())
		return
	}

	hw := halcore.Hardware{
		UART:     platform.NewUARTSender(u),
		IRQ:      &platform.IRQGate{},
		Watchdog: platform.StartWatchdog(watchdogTimeoutMs),
		Flash:    platform.Flash(),
		Alarm:    platform.NewTimerAlarm(),
		Log:      platform.PrintlnSink{},
	}
	e := boot.New(hw, boot.NewRegistry(commands.Standard(protocol.DefaultFlashBase)...),
		boot.WithTimeout(inactivity),
		boot.WithChipID(chipID),
		boot.WithLogging(true),
		boot.WithIdle(runtime.Gosched),
	)

	// Interrupts are masked by the engine on exit; the reader goroutine is
	// the only consumer of the uartx buffer, so no gate is needed here.
	err = e.Serve(context.Background(), u, nil)
	if err != nil {
		println("[boot] session aborted:", string(errcode.Of(err)), err.Error())
	} else {
		_, code := e.Ended()
		println("[boot] session ended:", string(code))
	}

	// Interrupts stay masked from here on, so no sleeping. The watchdog is
	// no longer fed and resets the board within watchdogTimeoutMs.
	for {
	}
}
