package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"img2imgd/internal/common/fsutil"
	"img2imgd/pkg/types"
)

// weightFormats maps recognised weight file extensions to a format name.
var weightFormats = map[string]string{
	".safetensors": "safetensors",
	".ckpt":        "ckpt",
	".gguf":        "gguf",
	".bin":         "bin",
}

// LoadDir scans a resource directory for model weight files. ID is the file
// name; results are sorted so the preferred format comes first
// (safetensors, gguf, ckpt, bin), then by name.
func LoadDir(dir string) ([]types.Resource, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []types.Resource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		format, ok := weightFormats[strings.ToLower(filepath.Ext(name))]
		if !ok {
			continue
		}
		var size int64
		if fi, err := e.Info(); err == nil {
			size = fi.Size()
		}
		out = append(out, types.Resource{ID: name, Path: filepath.Join(abs, name), Format: format, SizeBytes: size})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := formatRank(out[i].Format), formatRank(out[j].Format)
		if ri != rj {
			return ri < rj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FirstModel returns the preferred weight file in dir.
func FirstModel(dir string) (types.Resource, error) {
	res, err := LoadDir(dir)
	if err != nil {
		return types.Resource{}, err
	}
	if len(res) == 0 {
		return types.Resource{}, fmt.Errorf("no model weights in %s", dir)
	}
	return res[0], nil
}

func formatRank(f string) int {
	switch f {
	case "safetensors":
		return 0
	case "gguf":
		return 1
	case "ckpt":
		return 2
	default:
		return 3
	}
}
