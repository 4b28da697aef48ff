package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Key builds a cache key of the form "prefix:op:hash" where the hash covers
// the operation identity plus the string form of every argument, in order.
// Map arguments are rendered with sorted keys so the fingerprint is stable.
func Key(prefix, op string, args ...any) string {
	h := sha256.New()
	io.WriteString(h, op)
	for _, a := range args {
		io.WriteString(h, "|")
		io.WriteString(h, render(a))
	}
	return prefix + ":" + op + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

// KeyCoarse ignores arguments entirely: one slot per operation.
func KeyCoarse(prefix, op string) string {
	return prefix + ":" + op + ":all"
}

func render(a any) string {
	switch t := a.(type) {
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&b, "%s=%s;", k, t[k])
		}
		return b.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", a)
	}
}

const digestChunkSize = 1 << 20

// FileDigest computes the sha256 of a file by streaming fixed-size chunks,
// so arbitrarily large media never lands in memory at once. The digest is
// the stable external identity of an uploaded file and a cache-key
// ingredient for everything derived from it.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, digestChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
