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

package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestClientGetStatusAll(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string][]StatusResponse{"retailers": {
			{Retailer: "verizon", Running: true, RunID: "verizon_20260101_000000_abcd", PID: 1234},
		}})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client, err := New(WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	client.baseURL = server.URL

	ctx := context.Background()
	statuses, err := client.GetStatus(ctx, "")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}

	if len(statuses) != 1 || statuses[0].Retailer != "verizon" {
		t.Errorf("unexpected statuses: %+v", statuses)
	}
}

func TestClientGetStatusSingle(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status/verizon" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(StatusResponse{Retailer: "verizon", Running: false})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client, err := New(WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	client.baseURL = server.URL

	ctx := context.Background()
	statuses, err := client.GetStatus(ctx, "verizon")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Retailer != "verizon" {
		t.Errorf("unexpected statuses: %+v", statuses)
	}
}

func TestClientPing(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client, err := New(WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	client.baseURL = server.URL

	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestClientWithUnixSocket(t *testing.T) {
	// Create temp directory for socket
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test.sock")

	// Create Unix socket listener
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("Failed to create Unix socket: %v", err)
	}
	defer ln.Close()

	// Start simple HTTP server on socket
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
		}),
	}
	go server.Serve(ln)
	defer server.Close()

	// Wait for server to be ready
	time.Sleep(50 * time.Millisecond)

	// Create client with Unix transport
	transport := NewUnixTransport(socketPath)
	client, err := New(WithTransport(transport))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		t.Errorf("Ping via Unix socket failed: %v", err)
	}
}

func TestParseHarvesterHost(t *testing.T) {
	tests := []struct {
		name       string
		host       string
		wantSocket string
		wantTCP    string
		wantErr    bool
	}{
		{
			name:       "unix socket",
			host:       "unix:///var/run/harvester.sock",
			wantSocket: "/var/run/harvester.sock",
		},
		{
			name:    "tcp address",
			host:    "tcp://localhost:9000",
			wantTCP: "localhost:9000",
		},
		{
			name:    "https address",
			host:    "https://harvester.example.com:9000",
			wantTCP: "harvester.example.com:9000",
		},
		{
			name:    "invalid format",
			host:    "http://localhost:9000",
			wantErr: true,
		},
		{
			name:    "invalid scheme",
			host:    "ftp://localhost:9000",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport, err := ParseHarvesterHost(tt.host)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if tt.wantSocket != "" && transport.SocketPath != tt.wantSocket {
				t.Errorf("Expected socket path %s, got %s", tt.wantSocket, transport.SocketPath)
			}

			if tt.wantTCP != "" && transport.TCPAddr != tt.wantTCP {
				t.Errorf("Expected TCP addr %s, got %s", tt.wantTCP, transport.TCPAddr)
			}
		})
	}
}

func TestDefaultSocketPath(t *testing.T) {
	// Clear XDG_RUNTIME_DIR to test home directory fallback
	origXDG := os.Getenv("XDG_RUNTIME_DIR")
	os.Unsetenv("XDG_RUNTIME_DIR")
	defer os.Setenv("XDG_RUNTIME_DIR", origXDG)

	path, err := DefaultSocketPath()
	if err != nil {
		t.Fatalf("DefaultSocketPath failed: %v", err)
	}

	if path == "" {
		t.Error("DefaultSocketPath returned empty string")
	}

	// Should end with harvester.sock
	if filepath.Base(path) != "harvester.sock" {
		t.Errorf("Expected path to end with harvester.sock, got %s", path)
	}
}

func TestIsDaemonNotRunning(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "connection refused",
			err:  &net.OpError{Op: "dial", Err: &os.SyscallError{Err: os.ErrNotExist}},
			want: false, // This specific error doesn't match our string checks
		},
		{
			name: "daemon not running error",
			err:  &DaemonNotRunningError{SocketPath: "/tmp/test.sock"},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsDaemonNotRunning(tt.err)
			if got != tt.want {
				t.Errorf("IsDaemonNotRunning() = %v, want %v", got, tt.want)
			}
		})
	}
}
