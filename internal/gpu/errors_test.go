package gpu

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindString(t *testing.T) {
	kinds := map[ErrorKind]string{
		KindNoPlatformAvailable:   "NoPlatformAvailable",
		KindNoDeviceAvailable:     "NoDeviceAvailable",
		KindContextCreationFailed: "ContextCreationFailed",
		KindSourceUnavailable:     "SourceUnavailable",
		KindBuildError:            "BuildError",
		KindAllocationError:       "AllocationError",
		KindTransferError:         "TransferError",
		KindInvalidWorkSize:       "InvalidWorkSize",
		KindDispatchError:         "DispatchError",
		ErrorKind(99):             "Unknown",
	}
	for k, want := range kinds {
		assert.Equal(t, want, k.String())
	}
}

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("run: %w", errorf(KindTransferError, "upload", "short write"))

	assert.ErrorIs(t, err, ErrTransfer)
	assert.NotErrorIs(t, err, ErrDispatch)
	assert.Equal(t, KindTransferError, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "TransferError: upload: short write", errors.Unwrap(err).Error())
}

func TestErrorUnwrapsBackendCause(t *testing.T) {
	cause := errors.New("device lost")
	err := newError(KindDispatchError, "dispatch", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrDispatch)
}

func TestBuildLogExtraction(t *testing.T) {
	err := fmt.Errorf("matmul: %w", &Error{Kind: KindBuildError, Op: "build program", Log: "line 3: oops"})
	log, ok := BuildLog(err)
	assert.True(t, ok)
	assert.Equal(t, "line 3: oops", log)

	_, ok = BuildLog(errorf(KindDispatchError, "dispatch", "x"))
	assert.False(t, ok)
}
