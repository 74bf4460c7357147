// Package duet solves the two halves of the duet puzzle on top of the vm
// package.
//
// Recover runs a single program with "sound" semantics: snd plays a
// frequency and rcv recovers the last one played when its register is not
// zero. Execution stops at the first recovery.
//
// Runner runs two copies of one program as communicating processes. Program
// k starts with its id register (p by default) set to k. Each program's snd
// feeds the other's rcv through an unbounded FIFO channel. The runner steps
// the programs alternately, program 0 first, one instruction each per round,
// and halts after the first round in which neither program executed an
// instruction. Such a round can only happen when every program is terminated
// or parked on a rcv with an empty channel, so nothing can change any more.
package duet
