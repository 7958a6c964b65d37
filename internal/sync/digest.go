package sync

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// digestBlockSize is the read granularity for hashing. Correctness does not
// depend on it; the digest is over the byte stream.
const digestBlockSize = 4096

// DigestReader streams r and returns the base64-encoded MD5 of its content,
// the wire form the fabric uses in its Digest headers and change metadata.
// The caller must reset or reopen the stream to read it again.
func DigestReader(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.CopyBuffer(h, r, make([]byte, digestBlockSize)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// DigestFile computes the content digest of a file on disk.
func DigestFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", path, err)
	}
	defer file.Close()

	digest, err := DigestReader(file)
	if err != nil {
		return "", fmt.Errorf("digest %q: %w", path, err)
	}
	return digest, nil
}
