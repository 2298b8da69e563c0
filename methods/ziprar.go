package methods

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
)

func unarchiverFor(path string) archiver.Unarchiver {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return archiver.NewZip()
	case ".rar":
		return archiver.NewRar()
	}
	return nil
}

// IsArchive 是否为支持解压的压缩包
func IsArchive(path string) bool {
	return unarchiverFor(path) != nil
}

// ExtractArchive 将 zip/rar 解压到临时目录，返回目录与清理函数
func ExtractArchive(src string) (string, func(), error) {
	u := unarchiverFor(src)
	if u == nil {
		return "", nil, fmt.Errorf("%w: unsupported archive %s", ErrInvalidPayload, filepath.Base(src))
	}
	dir, err := os.MkdirTemp("", "sectormap-import-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	if err := u.Unarchive(src, dir); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w: extract %s: %v", ErrInvalidPayload, filepath.Base(src), err)
	}
	return dir, cleanup, nil
}
