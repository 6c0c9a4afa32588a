//go:build !(rp2040 || rp2350)

// Command bootctl drives an AN3155 serial bootloader from a script.
//
//	bootctl -port /dev/ttyUSB0 get getid "read 0x08000000 64"
//	bootctl -port /dev/ttyUSB0 -script flash.txt
//
// Script lines: get | getversion | getid | read ADDR LEN | write ADDR HEX |
// erase all|PAGE... | xerase all|bank1|bank2|PAGE... | quit. Lines starting
// with # are comments.
package main

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"

	"stm32boot-go/services/boot/platform"
	"stm32boot-go/types"
	"stm32boot-go/x/timex"
)

var (
	portName = flag.String("port", "/dev/ttyUSB0", "serial device")
	baud     = flag.Uint("baud", 115200, "baud rate")
	parity   = flag.String("parity", "even", "none|even|odd")
	timeout  = flag.Duration("timeout", 500*time.Millisecond, "reply timeout")
	script   = flag.String("script", "", "script file, - for stdin")
	tries    = flag.Int("tries", 20, "INIT attempts before giving up")
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
	// Poll the port a few characters at a time.
	port, err := platform.OpenSerial(*portName, format, 16*timex.CharTime(format.Baud, 11))
	if err != nil {
		glog.Exitf("serial: %v", err)
	}
	defer port.Close()

	r := NewRunner(NewClient(port, *timeout), os.Stdout)
	r.Tries = *tries

	switch {
	case *script == "-":
		err = r.RunScript(os.Stdin)
	case *script != "":
		f, ferr := os.Open(*script)
		if ferr != nil {
			glog.Exitf("script: %v", ferr)
		}
		err = r.RunScript(f)
		f.Close()
	default:
		err = r.RunScript(strings.NewReader(strings.Join(flag.Args(), "\n")))
	}
	if err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
	glog.V(1).Infof("done")
}
