package jobs

import "sync"

// mailbox is an unbounded FIFO command channel: sends never block the
// producer, at the accepted cost of unbounded memory growth if producers
// outpace the consumer. A pump goroutine buffers between the two ends.
type mailbox struct {
	in  chan Command
	out chan Command

	done      chan struct{}
	closeOnce sync.Once
}

func newMailbox() *mailbox {
	m := &mailbox{
		in:   make(chan Command),
		out:  make(chan Command),
		done: make(chan struct{}),
	}
	go m.pump()
	return m
}

// Send enqueues a command. It reports false once the mailbox is closed.
func (m *mailbox) Send(cmd Command) bool {
	select {
	case m.in <- cmd:
		return true
	case <-m.done:
		return false
	}
}

// Close stops the mailbox. Commands still buffered are delivered before
// the out channel closes; new sends are rejected.
func (m *mailbox) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}

func (m *mailbox) pump() {
	defer close(m.out)

	var buf []Command
	for {
		if len(buf) == 0 {
			select {
			case cmd := <-m.in:
				buf = append(buf, cmd)
			case <-m.done:
				return
			}
		}

		select {
		case cmd := <-m.in:
			buf = append(buf, cmd)
		case m.out <- buf[0]:
			buf = buf[1:]
		case <-m.done:
			// Flush what producers already handed over, then stop.
			for _, cmd := range buf {
				m.out <- cmd
			}
			return
		}
	}
}
