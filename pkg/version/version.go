package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get 返回构建时嵌入的版本号
func Get() string {
	return strings.TrimSpace(raw)
}
