package gpu

// Retrieve reads a result buffer back into host storage. It is the terminal
// data-producing step of a pipeline run; after it returns the device
// resources may be released.
func Retrieve[T Element](q *Queue, buf *Buffer, dst []T) error {
	return Download(q, buf, dst)
}
