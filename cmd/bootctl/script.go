package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/pkg/errors"

	"stm32boot-go/protocol"
)

// Runner executes script lines against a client, writing results to out.
type Runner struct {
	c   *Client
	out io.Writer
	// Tries is how many INITs to send before the first command.
	Tries int
}

func NewRunner(c *Client, out io.Writer) *Runner {
	return &Runner{c: c, out: out, Tries: 10}
}

// RunScript runs every non-empty, non-comment line of r and stops at the
// first failure.
func (r *Runner) RunScript(src io.Reader) error {
	sc := bufio.NewScanner(src)
	line := 0
	for sc.Scan() {
		line++
		if err := r.Exec(sc.Text()); err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
	}
	return errors.Wrap(sc.Err(), "script")
}

// Exec runs one command line.
func (r *Runner) Exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return errors.Wrapf(err, "parse %q", line)
	}
	if len(args) == 0 || strings.HasPrefix(args[0], "#") {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	if cmd == "quit" {
		return r.c.Quit()
	}
	if !r.c.synced {
		if err := r.c.Init(r.Tries); err != nil {
			return err
		}
	}

	switch cmd {
	case "get":
		ver, ops, err := r.c.Get()
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "version %d.%d commands % X\n", ver>>4, ver&0x0F, ops)

	case "getversion":
		ver, err := r.c.GetVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "version %d.%d\n", ver>>4, ver&0x0F)

	case "getid":
		id, err := r.c.GetID()
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "product id 0x%04X\n", id)

	case "read":
		if len(args) != 2 {
			return errors.New("usage: read ADDR LEN")
		}
		addr, err := parseU32(args[0])
		if err != nil {
			return err
		}
		n, err := parseU32(args[1])
		if err != nil {
			return err
		}
		data, err := r.c.Read(addr, int(n))
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "0x%08X:\n%s", addr, hex.Dump(data))

	case "write":
		if len(args) != 2 {
			return errors.New("usage: write ADDR HEX")
		}
		addr, err := parseU32(args[0])
		if err != nil {
			return err
		}
		data, err := hex.DecodeString(args[1])
		if err != nil || len(data) == 0 {
			return errors.Errorf("bad hex data %q", args[1])
		}
		if err := r.c.Write(addr, data); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "wrote %d bytes at 0x%08X\n", len(data), addr)

	case "erase":
		if len(args) == 0 {
			return errors.New("usage: erase all|PAGE...")
		}
		var pages []byte
		if args[0] != "all" {
			for _, a := range args {
				p, err := parseU32(a)
				if err != nil || p > 0xFF {
					return errors.Errorf("bad page %q", a)
				}
				pages = append(pages, byte(p))
			}
		}
		if err := r.c.Erase(pages); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "erased")

	case "xerase":
		if len(args) == 0 {
			return errors.New("usage: xerase all|bank1|bank2|PAGE...")
		}
		var err error
		switch args[0] {
		case "all":
			err = r.c.ExtendedEraseSpecial(protocol.ExtEraseMass)
		case "bank1":
			err = r.c.ExtendedEraseSpecial(protocol.ExtEraseBank1)
		case "bank2":
			err = r.c.ExtendedEraseSpecial(protocol.ExtEraseBank2)
		default:
			var pages []uint16
			for _, a := range args {
				p, perr := parseU32(a)
				if perr != nil || p > 0xFFFC {
					return errors.Errorf("bad page %q", a)
				}
				pages = append(pages, uint16(p))
			}
			err = r.c.ExtendedErase(pages)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, "erased")

	default:
		return errors.Errorf("unknown command %q", cmd)
	}
	return nil
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "bad number %q", s)
	}
	return uint32(v), nil
}
