/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

//go:build !keyring

package config

import "errors"

// Default builds keep the OS keyring out of the binary so tests and headless
// environments never touch a real secret store. Build with -tags keyring to
// enable it.

var errKeyringDisabled = errors.New("keyring disabled in this build (rebuild with -tags keyring)")

func init() {
	keyringGet = func(service, key string) (string, error) { return "", errKeyringDisabled }
	keyringSet = func(service, key, value string) error { return errKeyringDisabled }
	keyringDelete = func(service, key string) error { return errKeyringDisabled }
}
