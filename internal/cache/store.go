package cache

import (
	"errors"
	"time"

	"github.com/opencontainers/go-digest"
)

// State 描述一个缓存条目在磁盘上的状态。
type State string

const (
	// StateAbsent 表示既没有最终文件也没有 partial 文件。
	StateAbsent State = "absent"
	// StatePartial 表示只残留了上一次中断下载的 partial 文件。
	StatePartial State = "partial"
	// StatePresent 表示最终文件已就绪，后续调用直接复用。
	StatePresent State = "present"
)

// Entry 描述一次 EnsureLocal/Stat 的结果，包含绝对文件路径及文件信息。
type Entry struct {
	Source      string    `json:"source"`
	FilePath    string    `json:"file_path"`
	PartialPath string    `json:"partial_path"`
	State       State     `json:"state"`
	SizeBytes   int64     `json:"size_bytes"`
	ModTime     time.Time `json:"mod_time"`
	CacheHit    bool      `json:"cache_hit"`
}

// Checksum 是可选的内容校验信息。Digest 为空时不校验摘要，Size <= 0 时不校验长度。
type Checksum struct {
	Digest digest.Digest
	Size   int64
}

// IsZero 表示未配置任何校验项。
func (c Checksum) IsZero() bool {
	return c.Digest == "" && c.Size <= 0
}

// NewChecksum 根据十六进制 SHA-256 与字节长度构建 Checksum，hex 为空时仅校验长度。
func NewChecksum(sha256Hex string, size int64) (Checksum, error) {
	c := Checksum{Size: size}
	if sha256Hex == "" {
		return c, nil
	}
	d := digest.NewDigestFromEncoded(digest.SHA256, sha256Hex)
	if err := d.Validate(); err != nil {
		return Checksum{}, errors.Join(ErrInvalidChecksum, err)
	}
	c.Digest = d
	return c, nil
}

// Request 汇总一次 Ensure 调用的输入。
type Request struct {
	// Source 是远端资源 URL，其路径最后一段决定缓存文件名。
	Source string
	// CacheDir 为空时使用 <home>/.cache/<namespace>。
	CacheDir string
	// Expected 在下载完成、rename 之前校验；校验失败不会产生最终文件。
	Expected Checksum
	// VerifyOnHit 为 true 时命中缓存也会重新计算摘要，但从不重写文件。
	VerifyOnHit bool
}
