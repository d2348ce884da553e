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

// Package recovery catches panics escaping a handler invocation and turns
// them into the same fixed 500 response a returned error produces, instead
// of letting them unwind past the trampoline.
//
// # Basic Usage
//
//	rec := recovery.Build(recovery.WithLogger(logger))
//	rendered := rec.Protect(req, func() trampoline.Rendered {
//		return chain.Run(req)
//	})
//
// # Configuration Options
//
//   - WithStackTrace / WithStackSize: stack capture on panic (default: on, 4KB)
//   - WithLogger / WithoutLogging: where recovered panics are reported
//   - WithHandler: replace the fixed 500 body with a custom response
package recovery
