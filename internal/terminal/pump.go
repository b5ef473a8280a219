package terminal

import (
	"fmt"
	"io"
	"runtime/debug"

	"go.uber.org/zap"
)

// pump drains a session's controller side into the sink until the stream
// ends. It is the only reader of the PTY.
type pump struct {
	source Source
	src    io.Reader
	sink   Sink
	buf    []byte
	dec    *utf8Decoder
	logger *zap.Logger // carries segment_id

	// closed reports whether the session was closed on request; reads
	// failing after that are expected and not reported.
	closed func() bool
	// exitCode waits briefly for the child's exit status.
	exitCode func() int
	// onRead observes the size of each successful read.
	onRead func(n int)

	done chan struct{}
}

func newPump(source Source, src io.Reader, sink Sink, bufSize int, logger *zap.Logger) *pump {
	return &pump{
		source:   source,
		src:      src,
		sink:     sink,
		buf:      make([]byte, bufSize),
		dec:      newUTF8Decoder(),
		logger:   logger,
		closed:   func() bool { return false },
		exitCode: func() int { return -1 },
		onRead:   func(int) {},
		done:     make(chan struct{}),
	}
}

func (p *pump) run() {
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Output pump panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			if !p.closed() {
				p.fail("output pump failed")
			}
		}
	}()

	for {
		n, err := p.src.Read(p.buf)
		if n > 0 {
			p.onRead(n)
			if text := p.dec.decode(p.buf[:n]); text != "" {
				p.sink.Output(p.source, text)
			}
		}
		if err == nil && n > 0 {
			continue
		}
		if err == nil {
			// A zero-byte read with no error is end-of-stream too.
			err = io.EOF
		}

		if p.closed() {
			p.logger.Debug("Output pump stopped by close")
			return
		}

		if tail := p.dec.flush(); tail != "" {
			p.sink.Output(p.source, tail)
		}

		if isEndOfStream(err) {
			code := p.exitCode()
			p.logger.Info("Shell exited", zap.Int("exit_code", code))
			p.sink.Exit(p.source, code)
			return
		}

		p.logger.Warn("PTY read failed", zap.Error(err))
		p.sink.Error(p.source, fmt.Sprintf("pty read error: %v", err))
		return
	}
}

// fail reports a terminal error after a panic. The sink may be what
// panicked, so a second panic is logged and dropped.
func (p *pump) fail(message string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Sink panicked while reporting pump failure", zap.Any("panic", r))
		}
	}()
	p.sink.Error(p.source, message)
}
