package infra

import (
	"path/filepath"
)

func GetResourcesPath(path ...string) string {
	return filepath.Join(path...)
}
