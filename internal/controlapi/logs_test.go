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

package controlapi

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveLogPath_RejectsTraversal(t *testing.T) {
	tests := []struct {
		name  string
		runID string
	}{
		{"parent traversal", "../../etc/passwd"},
		{"embedded dotdot", "foo/../../bar"},
		{"empty", ""},
		{"shell metacharacter", "run;rm -rf"},
		{"path separator", "foo/bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolveLogPath("/data", "verizon", tt.runID); err == nil {
				t.Errorf("resolveLogPath(%q) should have been rejected", tt.runID)
			}
		})
	}
}

func TestResolveLogPath_AcceptsValidRunID(t *testing.T) {
	path, err := resolveLogPath("/data", "verizon", "verizon_20260101_120000_ab12")
	if err != nil {
		t.Fatalf("resolveLogPath returned unexpected error: %v", err)
	}
	want := filepath.Join("/data", "verizon", "logs", "verizon_20260101_120000_ab12.log")
	if path != want {
		t.Errorf("resolveLogPath() = %q, want %q", path, want)
	}
}

func TestRunIDPattern_RejectsSpecialCharacters(t *testing.T) {
	bad := []string{"run id", "run/id", "run$id", "run\nid"}
	for _, id := range bad {
		if runIDPattern.MatchString(id) {
			t.Errorf("runIDPattern should reject %q", id)
		}
	}
	good := []string{"verizon_20260101_120000_ab12", "a-b.c:d"}
	for _, id := range good {
		if !runIDPattern.MatchString(id) {
			t.Errorf("runIDPattern should accept %q", id)
		}
	}
	if strings.Contains("", "..") {
		t.Fatal("sanity check failed")
	}
}
