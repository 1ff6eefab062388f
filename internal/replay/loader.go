package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Entry 回放清单中的一条缓存
// Start/End 为帧区间 [Start, End)，End 为 0 时取到末尾
type Entry struct {
	Name  string `yaml:"name"`
	File  string `yaml:"file"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
}

// Manifest 回放清单
type Manifest struct {
	Caches []Entry `yaml:"caches"`
}

// cacheFile 对象形式的缓存文件
type cacheFile struct {
	Frames [][][]float64 `json:"frames"`
}

// LoadManifest 读取 YAML 清单，相对路径按清单所在目录解析
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if len(m.Caches) == 0 {
		return nil, fmt.Errorf("manifest %s has no caches", path)
	}

	dir := filepath.Dir(path)
	for i := range m.Caches {
		e := &m.Caches[i]
		if e.File == "" {
			return nil, fmt.Errorf("manifest entry %d: file is required", i)
		}
		if !filepath.IsAbs(e.File) {
			e.File = filepath.Join(dir, e.File)
		}
		if e.Name == "" {
			e.Name = filepath.Base(e.File)
		}
		if e.Start < 0 || e.End < 0 || (e.End > 0 && e.End <= e.Start) {
			return nil, fmt.Errorf("manifest entry %s: invalid frame range [%d, %d)", e.Name, e.Start, e.End)
		}
	}
	return &m, nil
}

// LoadCache 读取缓存文件，支持 Mx17x2 数组或 {"frames": [...]}
func LoadCache(path string) ([][][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var f cacheFile
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("failed to parse cache %s: %w", path, err)
		}
		return f.Frames, nil
	}

	var frames [][][]float64
	if err := json.Unmarshal(trimmed, &frames); err != nil {
		return nil, fmt.Errorf("failed to parse cache %s: %w", path, err)
	}
	return frames, nil
}

// slice 按 [start, end) 截取帧
func slice(frames [][][]float64, start, end int) ([][][]float64, error) {
	if end == 0 || end > len(frames) {
		end = len(frames)
	}
	if start >= end {
		return nil, fmt.Errorf("frame range [%d, %d) is empty for %d frames", start, end, len(frames))
	}
	return frames[start:end], nil
}
