package boot

import (
	"time"

	"stm32boot-go/protocol"
	"stm32boot-go/x/mathx"
)

const (
	minRingSize     = 16
	maxRingSize     = 16384
	defaultRingSize = 2048
)

// Config holds the session configuration.
type Config struct {
	// InactivityTimeout bounds the wait for the host's INIT byte. 0 disables
	// it; the alarm capability is then not required.
	InactivityTimeout time.Duration

	// ChipID is passed through to commands (Get ID).
	ChipID uint16

	// Version is the protocol version commands report.
	Version byte

	// RingSize is the receive ring capacity in bytes, rounded up to a power
	// of two within [16, 16384].
	RingSize int

	// Logging enables diagnostic lines on the log capability.
	Logging bool

	// Idle, if set, is called by Run whenever a poll found no complete frame.
	// Cooperative schedulers need it to let the RX producer run.
	Idle func()
}

func DefaultConfig() Config {
	return Config{
		Version:  protocol.Version,
		RingSize: defaultRingSize,
	}
}

type Option func(*Config)

func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.InactivityTimeout = d }
}

func WithChipID(id uint16) Option {
	return func(c *Config) { c.ChipID = id }
}

func WithVersion(v byte) Option {
	return func(c *Config) { c.Version = v }
}

func WithRingSize(n int) Option {
	return func(c *Config) { c.RingSize = n }
}

func WithLogging(on bool) Option {
	return func(c *Config) { c.Logging = on }
}

func WithIdle(f func()) Option {
	return func(c *Config) { c.Idle = f }
}

func (c Config) normalised() Config {
	c.RingSize = mathx.NextPow2(mathx.Clamp(c.RingSize, minRingSize, maxRingSize))
	if c.InactivityTimeout < 0 {
		c.InactivityTimeout = 0
	}
	return c
}
