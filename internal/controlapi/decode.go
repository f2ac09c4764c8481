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
	"encoding/json"
	"io"
	"net/http"
)

// maxRequestBodySize bounds request bodies the control API will decode.
const maxRequestBodySize = 1 * 1024 * 1024 // 1MB

// decodeJSONBody decodes r.Body into dst, writing a 400 response and
// returning false on any failure (oversized body, malformed JSON).
// Callers should return immediately when this returns false.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength > maxRequestBodySize {
		writeError(w, http.StatusBadRequest, "request body too large")
		return false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
