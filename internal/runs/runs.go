// Package runs allocates numbered output locations.
//
// Run folders are named <prefix>_<N> and files follow a printf pattern with a
// single %d. Allocation scans what already exists and then claims the next
// name with an exclusive create, so two concurrent invocations never end up
// sharing a folder or overwriting each other's file.
package runs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// ErrNoRuns is returned by Latest when the root holds no run folder.
var ErrNoRuns = errors.New("no run folders found")

// maxClaimAttempts bounds the retry loop when other processes keep winning.
const maxClaimAttempts = 1000

func namePattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `_(\d+)$`)
}

// Scan returns the largest N among entries of root named <prefix>_<N>.
// Files count as well as folders. A missing root yields 0.
func Scan(root, prefix string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list %s: %w", root, err)
	}

	re := namePattern(prefix)
	highest := 0
	for _, entry := range entries {
		m := re.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			// Overflowing suffixes are not ours.
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}

// Create makes the next run folder under root and returns its path and number.
// root is created when absent.
func Create(root, prefix string) (string, int, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create output root: %w", err)
	}

	highest, err := Scan(root, prefix)
	if err != nil {
		return "", 0, err
	}

	for n := highest + 1; n <= highest+maxClaimAttempts; n++ {
		dir := filepath.Join(root, fmt.Sprintf("%s_%d", prefix, n))
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, n, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", 0, fmt.Errorf("failed to create run folder: %w", err)
		}
	}
	return "", 0, fmt.Errorf("no free run number after %d attempts", maxClaimAttempts)
}

// Latest returns the highest-numbered existing run folder under root.
func Latest(root, prefix string) (string, int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, ErrNoRuns
		}
		return "", 0, fmt.Errorf("failed to list %s: %w", root, err)
	}

	re := namePattern(prefix)
	best, bestName := 0, ""
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > best {
			best, bestName = n, entry.Name()
		}
	}
	if bestName == "" {
		return "", 0, ErrNoRuns
	}
	return filepath.Join(root, bestName), best, nil
}

// ClaimFile opens the first fmt.Sprintf(pattern, n) in dir, n = 1, 2, ...,
// that does not exist yet. The caller owns and must close the file.
func ClaimFile(dir, pattern string) (*os.File, string, error) {
	for n := 1; n > 0; n++ {
		path := filepath.Join(dir, fmt.Sprintf(pattern, n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no free file name for pattern %q", pattern)
}
