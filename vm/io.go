package vm

// IO performs a machine's snd and rcv instructions.
type IO interface {
	// Send delivers the operand value of a snd.
	Send(v int64)

	// Receive is called for a rcv whose register currently holds current.
	// It returns the value to store in the register, or ok=false when the
	// machine must block. A blocked receive must not consume anything.
	Receive(current int64) (v int64, ok bool)
}

// ChannelIO connects a machine to a pair of channels: snd pushes to Out and
// rcv pops from In.
type ChannelIO struct {
	In  *Channel
	Out *Channel
}

func (c ChannelIO) Send(v int64) {
	c.Out.Push(v)
}

func (c ChannelIO) Receive(int64) (int64, bool) {
	return c.In.Pop()
}

// Discard drops sent values and never delivers any.
type Discard struct{}

func (Discard) Send(int64) {}

func (Discard) Receive(int64) (int64, bool) {
	return 0, false
}
