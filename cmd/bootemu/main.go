//go:build !(rp2040 || rp2350)

// Command bootemu runs the bootloader engine on a host serial port over a
// file-backed flash image, so AN3155 host tools can be tested without a
// board.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/golang/glog"

	"stm32boot-go/errcode"
	"stm32boot-go/protocol"
	"stm32boot-go/services/boot"
	"stm32boot-go/services/boot/commands"
	"stm32boot-go/services/boot/halcore"
	"stm32boot-go/services/boot/platform"
	"stm32boot-go/types"
)

var (
	portName  = flag.String("port", "/dev/ttyUSB0", "serial device")
	baud      = flag.Uint("baud", 115200, "baud rate")
	parity    = flag.String("parity", "even", "none|even|odd")
	image     = flag.String("image", "", "flash image file, loaded at start")
	save      = flag.Bool("save", true, "write the flash back to -image after each session")
	flashSize = flag.Int("flash-size", 128*1024, "flash size in bytes")
	blockSize = flag.Int("block-size", 1024, "erase block (page) size in bytes")
	timeout   = flag.Duration("timeout", 10*time.Second, "wait for INIT before giving up, 0 waits forever")
	chipID    = flag.Uint("chip-id", 0x0413, "product id reported by Get ID")
	ringSize  = flag.Int("ring", 2048, "receive ring size")
	loop      = flag.Bool("loop", false, "start a new session after each one ends")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	format := types.BootSerialFormat
	format.Baud = uint32(*baud)
	p, ok := types.ParseParity(*parity)
	if !ok {
		glog.Exitf("unknown parity %q", *parity)
	}
	format.Parity = p
	port, err := platform.OpenSerial(*portName, format, 20*time.Millisecond)
	if err != nil {
		glog.Exitf("serial: %v", err)
	}
	defer port.Close()

	flash := halcore.NewMemFlash(*flashSize, *blockSize)
	if *image != "" {
		if err := loadImage(flash, *image); err != nil {
			glog.Exitf("image: %v", err)
		}
	}

	gate := &platform.IRQGate{}
	wd := &platform.CountingWatchdog{}
	hw := halcore.Hardware{
		UART:     platform.NewUARTSender(port),
		IRQ:      gate,
		Watchdog: wd,
		Flash:    flash,
		Alarm:    platform.NewTimerAlarm(),
		Log:      platform.GlogSink{Level: 1},
	}
	e := boot.New(hw, boot.NewRegistry(commands.Standard(protocol.DefaultFlashBase)...),
		boot.WithTimeout(*timeout),
		boot.WithChipID(uint16(*chipID)),
		boot.WithRingSize(*ringSize),
		boot.WithLogging(true),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	glog.Infof("serving %s at %d baud, %s parity, flash %d bytes in %d-byte pages",
		*portName, format.Baud, format.Parity, flash.Size(), flash.EraseBlockSize())
	failed := false
	for {
		err := e.Serve(ctx, port, gate)
		report(e, wd)
		if err != nil && errcode.Of(err) != errcode.Cancelled {
			glog.Errorf("session aborted: %v", err)
			failed = true
		}
		if *save && *image != "" {
			if err := os.WriteFile(*image, flash.Bytes(), 0o644); err != nil {
				glog.Errorf("save image: %v", err)
				failed = true
			}
		}
		if !*loop || ctx.Err() != nil {
			break
		}
		// The engine leaves the gate masked on exit, as a real target would.
		gate.EnableInterrupts()
	}
	if failed {
		glog.Flush()
		os.Exit(1)
	}
}

func loadImage(f *halcore.MemFlash, name string) error {
	img, err := os.ReadFile(name)
	if os.IsNotExist(err) {
		glog.Warningf("%s does not exist, starting erased", name)
		return nil
	}
	if err != nil {
		return err
	}
	return f.Load(img)
}

func report(e *boot.Engine, wd *platform.CountingWatchdog) {
	info := e.Info()
	b, err := json.Marshal(info)
	if err != nil {
		glog.Errorf("info: %v", err)
		return
	}
	feeds, _ := wd.Feeds()
	glog.Infof("session %s (watchdog feeds %d)", b, feeds)
}
