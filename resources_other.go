// Copyright 2021-2025 Nikita Fediuchin. All rights reserved.
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

//go:build !darwin

package pack

import (
	"fmt"
	"os"
	"path/filepath"
)

// resourcesDir locates the application's resources directory. On platforms
// other than macOS there is no distinct bundle resources directory, so this
// returns the executable's own directory.
func resourcesDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("%w: locating executable: %w", ErrUnsupported, err)
	}
	return filepath.Dir(exe), nil
}
