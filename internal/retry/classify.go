package retry

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"strings"
	"syscall"

	"google.golang.org/api/googleapi"
)

// ClassifyAPI maps failures of HTTP/gRPC provider clients to a Kind.
func ClassifyAPI(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		switch {
		case ge.Code == 429:
			return KindRateLimit
		case ge.Code == 401 || ge.Code == 403:
			return KindAuth
		case ge.Code >= 500:
			return KindNetwork
		}
		return KindUnknown
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "resource exhausted"), strings.Contains(msg, "quota"):
		return KindRateLimit
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return KindTimeout
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "connection"), strings.Contains(msg, "broken pipe"):
		return KindNetwork
	case strings.Contains(msg, "unauthenticated"), strings.Contains(msg, "permission denied"):
		return KindAuth
	}
	return KindUnknown
}

// ClassifyFile maps filesystem and spawned-process failures to a Kind.
func ClassifyFile(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	switch {
	case errors.Is(err, fs.ErrPermission), errors.Is(err, os.ErrPermission):
		return KindFilePermission
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, os.ErrNotExist):
		return KindFileNotFound
	case errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.ETXTBSY):
		return KindFileBusy
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "resource busy"), strings.Contains(msg, "text file busy"):
		return KindFileBusy
	case strings.Contains(msg, "no such file"):
		return KindFileNotFound
	case strings.Contains(msg, "permission denied"):
		return KindFilePermission
	}
	return KindUnknown
}

// ClassifyGPU maps diarization-sidecar failures to a Kind. The sidecar
// reports device failures as plain text in the error body.
func ClassifyGPU(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "out of memory"), strings.Contains(msg, "oom"):
		return KindGPUMemory
	case strings.Contains(msg, "cuda"), strings.Contains(msg, "device"), strings.Contains(msg, "runtime"):
		return KindGPURuntime
	}
	return KindUnknown
}
