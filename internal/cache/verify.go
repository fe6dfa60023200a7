package cache

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
)

// verifier 在写入 partial 文件的同时计算摘要。
type verifier struct {
	expected Checksum
	digester digest.Digester
}

func newVerifier(expected Checksum) (*verifier, error) {
	if expected.IsZero() {
		return nil, nil
	}
	v := &verifier{expected: expected}
	if expected.Digest != "" {
		if err := expected.Digest.Validate(); err != nil {
			return nil, errors.Join(ErrInvalidChecksum, err)
		}
		v.digester = expected.Digest.Algorithm().Digester()
	}
	return v, nil
}

func (v *verifier) Write(p []byte) (int, error) {
	if v.digester == nil {
		return len(p), nil
	}
	return v.digester.Hash().Write(p)
}

func (v *verifier) verify(size int64) error {
	if v.expected.Size > 0 && size != v.expected.Size {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrChecksumMismatch, size, v.expected.Size)
	}
	if v.digester != nil {
		if got := v.digester.Digest(); got != v.expected.Digest {
			return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, v.expected.Digest)
		}
	}
	return nil
}

func verifyFile(p string, expected Checksum) error {
	v, err := newVerifier(expected)
	if err != nil || v == nil {
		return err
	}
	f, err := os.Open(p)
	if err != nil {
		return &FilesystemError{Op: "open", Path: p, Err: err}
	}
	defer f.Close()

	n, err := io.Copy(v, f)
	if err != nil {
		return &FilesystemError{Op: "read", Path: p, Err: err}
	}
	return v.verify(n)
}
