// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retailer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/tombarlow/storeharvester/pkg/errors"
)

// File is the on-disk shape of config/retailers.yaml: a flat map of
// retailer name to its Config.
type File struct {
	Retailers map[string]*Config `yaml:"retailers"`
}

// LoadFile parses path into a File. It does not touch the registry; callers
// decide whether to apply it via ReplaceAll.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &pkgerrors.ConfigError{Key: path, Reason: "reading config file", Cause: err}
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &pkgerrors.ConfigError{Key: path, Reason: "parsing YAML", Cause: err}
	}
	return &f, nil
}

// ValidateFile parses raw YAML and validates every retailer entry,
// collecting every field error rather than stopping at the first — this is
// what backs the Control API's POST /api/config `details` list.
func ValidateFile(raw []byte) (*File, []string) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, []string{fmt.Sprintf("invalid YAML: %v", err)}
	}
	var problems []string
	for name, cfg := range f.Retailers {
		if cfg.Name == "" {
			cfg.Name = name
		}
		if err := cfg.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("retailers.%s.%s", name, err.Error()))
		}
	}
	if len(problems) > 0 {
		return nil, problems
	}
	return &f, nil
}

// Save atomically writes f to path: MkdirAll, marshal, write a temp file in
// the same directory, then rename over the target. On any failure the
// active file at path is left unchanged.
func Save(path string, f *File) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &pkgerrors.ConfigError{Key: path, Reason: "creating config directory", Cause: err}
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return &pkgerrors.ConfigError{Key: path, Reason: "marshaling YAML", Cause: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &pkgerrors.ConfigError{Key: path, Reason: "writing temp file", Cause: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &pkgerrors.ConfigError{Key: path, Reason: "renaming temp file", Cause: err}
	}
	return nil
}

// Backup copies the file at path into backupDir with a timestamped name,
// returning the backup's path. Used by POST /api/config before any write to
// the active file is attempted.
func Backup(path, backupDir string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", &pkgerrors.ConfigError{Key: path, Reason: "reading file to back up", Cause: err}
	}
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", &pkgerrors.ConfigError{Key: backupDir, Reason: "creating backup directory", Cause: err}
	}
	name := fmt.Sprintf("retailers_%s.yaml", time.Now().UTC().Format("20060102_150405"))
	dest := filepath.Join(backupDir, name)
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", &pkgerrors.ConfigError{Key: dest, Reason: "writing backup", Cause: err}
	}
	return dest, nil
}
