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

import "testing"

func TestCSRFIssuer_IssueAndVerify(t *testing.T) {
	c := newCSRFIssuer([]byte("test-secret-at-least-this-long"))

	token, err := c.issue()
	if err != nil {
		t.Fatalf("issue() returned error: %v", err)
	}
	if !c.verify(token) {
		t.Error("a freshly issued token should verify")
	}
}

func TestCSRFIssuer_RejectsForeignToken(t *testing.T) {
	a := newCSRFIssuer([]byte("secret-one-at-least-this-long"))
	b := newCSRFIssuer([]byte("secret-two-at-least-this-long"))

	token, err := a.issue()
	if err != nil {
		t.Fatalf("issue() returned error: %v", err)
	}
	if b.verify(token) {
		t.Error("a token signed by a different secret should not verify")
	}
}

func TestCSRFIssuer_RejectsGarbage(t *testing.T) {
	c := newCSRFIssuer([]byte("test-secret-at-least-this-long"))
	if c.verify("not-a-jwt") {
		t.Error("garbage input should not verify")
	}
	if c.verify("") {
		t.Error("empty token should not verify")
	}
}
