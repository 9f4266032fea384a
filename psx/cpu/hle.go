package cpu

import "log/slog"

// BIOSHLE is a minimal kernel-call interceptor for bring-up boots that skip
// real BIOS execution (spec §4.2 "Optional HLE", §4.8 fast-boot path). It
// intercepts PC landing on one of the three jump-table entry points
// (0xA0/0xB0/0xC0) and services a small subset of calls directly instead of
// stepping through real kernel code.
type BIOSHLE struct {
	Putchar func(b byte)
	logger  *slog.Logger
}

// NewBIOSHLE creates a HLE hook set. putchar receives bytes written via the
// B0 table's putchar call (function 0x3D), routed to the host text sink per
// spec §4.2/§6.
func NewBIOSHLE(putchar func(b byte), logger *slog.Logger) *BIOSHLE {
	return &BIOSHLE{Putchar: putchar, logger: logger}
}

const (
	biosTableA0 = 0xA0
	biosTableB0 = 0xB0
	biosTableC0 = 0xC0
)

// Intercept implements cpu.HLEHooks. It recognizes PC == one of the three
// BIOS trampoline addresses, services the call using r9 (function number)
// and r4..r7 (arguments), and performs the equivalent of a JR ra to return
// control to the caller.
func (h *BIOSHLE) Intercept(c *CPU) bool {
	switch c.PC {
	case biosTableA0, biosTableB0, biosTableC0:
	default:
		return false
	}

	fn := c.reg(9)

	if c.PC == biosTableB0 && fn == 0x3D { // putchar
		if h.Putchar != nil {
			h.Putchar(byte(c.reg(4)))
		}
	}

	// Emulate "return to caller": PC <- ra, no delay slot bookkeeping needed
	// since we never entered a real call frame.
	c.PC = c.reg(31)
	return true
}
