package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Path: path, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckHTTPAPI verifies that the daemon's HTTP API answers on bind.
func CheckHTTPAPI(ctx context.Context, bind string) Result {
	const name = "HTTP API"

	bind = strings.TrimSpace(bind)
	if bind == "" {
		return Result{Name: name, Detail: "Disabled"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, "http://"+bind+"/api/count", nil)
	if err != nil {
		return Result{Name: name, Path: bind, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Path: bind, Detail: summarizeDialError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Path: bind, Detail: fmt.Sprintf("unexpected status (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Path: bind, Passed: true, Detail: "Reachable at " + bind}
}

func summarizeDialError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	if errors.Is(err, unix.ECONNREFUSED) {
		return "connection refused"
	}
	return err.Error()
}
