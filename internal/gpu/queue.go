package gpu

import (
	"errors"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// Queue is the ordered submission channel of a context. Every submission
// blocks until the device has completed it, so data read back is valid the
// moment the call returns. A Queue is not safe for concurrent use.
type Queue struct {
	cx   *Context
	impl driver.Queue
}

func (q *Queue) check(op string, kind ErrorKind) error {
	if q.cx.isReleased() {
		return errorf(kind, op, "context already released")
	}
	return nil
}

// WriteBuffer copies src into buf and waits for completion. src may be
// shorter than the buffer; the remainder keeps its previous contents.
func (q *Queue) WriteBuffer(buf *Buffer, src []byte) error {
	const op = "upload"
	if err := q.check(op, KindTransferError); err != nil {
		return err
	}
	if err := checkTransfer(op, buf, len(src)); err != nil {
		return err
	}
	if err := q.impl.WriteBuffer(buf.impl, src); err != nil {
		return newError(KindTransferError, op, err)
	}
	return nil
}

// ReadBuffer copies buf into dst and waits for completion. It must only be
// called after the kernels writing buf have completed, which queue ordering
// guarantees for synchronous dispatches.
func (q *Queue) ReadBuffer(buf *Buffer, dst []byte) error {
	const op = "download"
	if err := q.check(op, KindTransferError); err != nil {
		return err
	}
	if err := checkTransfer(op, buf, len(dst)); err != nil {
		return err
	}
	if err := q.impl.ReadBuffer(buf.impl, dst); err != nil {
		return newError(KindTransferError, op, err)
	}
	return nil
}

func checkTransfer(op string, buf *Buffer, n int) error {
	switch {
	case buf == nil:
		return errorf(KindTransferError, op, "nil buffer")
	case buf.Released():
		return errorf(KindTransferError, op, "buffer already released")
	case n == 0:
		return errorf(KindTransferError, op, "empty host array")
	case int64(n) > buf.size:
		return errorf(KindTransferError, op, "host array of %d bytes exceeds buffer of %d bytes", n, buf.size)
	}
	return nil
}

// Dispatch validates the index space, launches k across it and waits for
// the device to finish. It either completes fully or fails.
func (q *Queue) Dispatch(k *Kernel, nd NDRange) error {
	const op = "dispatch"
	if err := q.check(op, KindDispatchError); err != nil {
		return err
	}
	if err := nd.Validate(); err != nil {
		return err
	}
	if k == nil || k.Released() {
		return errorf(KindDispatchError, op, "kernel is nil or released")
	}
	if missing := k.unbound(); len(missing) > 0 {
		return errorf(KindDispatchError, op, "kernel %s: arguments %v not bound", k.name, missing)
	}
	slogger().Debugf("gpu: dispatch %s over %s", k.name, nd)
	if err := q.impl.Dispatch(k.impl, driver.NDRange(nd)); err != nil {
		if errors.Is(err, driver.ErrInvalidWorkSize) {
			return newError(KindInvalidWorkSize, op, err)
		}
		return newError(KindDispatchError, op, err)
	}
	return nil
}

// Finish blocks until every submission so far has completed.
func (q *Queue) Finish() error {
	if err := q.check("finish", KindDispatchError); err != nil {
		return err
	}
	if err := q.impl.Finish(); err != nil {
		return newError(KindDispatchError, "finish", err)
	}
	return nil
}
