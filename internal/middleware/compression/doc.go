// Copyright 2025 The Rivaas Authors
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

// Package compression decides, once a response is fully rendered, whether
// to gzip it before it goes on the wire.
//
// # Basic Usage
//
//	c := compression.Build(compression.WithMinSize(512))
//	if c.ShouldCompress(path, contentType, len(body)) && compression.Negotiate(acceptEncoding) {
//		body, encoding, ok = c.Compress(body)
//	}
//
// Only gzip is wired to an actual encoder; brotli options are accepted for
// API compatibility but currently fall back to gzip (see DESIGN.md).
//
// # Configuration Options
//
//   - GzipLevel: Compression level (gzip.BestSpeed..gzip.BestCompression)
//   - MinSize: Minimum response size to compress (default: 1KB), enforced
//   - ExcludePaths / ExcludeExtensions / ExcludeContentTypes: opt-outs
//   - Logger: Optional logger for compression failures
package compression
