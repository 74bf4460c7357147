// Package vm implements the duet register machine.
//
// This package contains:
//   - Registers, a bank of 26 signed 64-bit registers
//   - Machine, a single-stepping interpreter over a decoded asm.Program
//   - Channel, an unbounded FIFO carrying values between machines
//   - IO implementations that connect a machine's snd and rcv to channels
//
// A Machine never shares state with another machine; values move only
// through its IO.
package vm
