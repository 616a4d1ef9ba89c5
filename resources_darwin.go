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

//go:build darwin

package pack

import (
	"fmt"
	"os"
	"path/filepath"
)

// resourcesDir locates the application's resources directory for macOS app
// bundles: Contents/Resources, a sibling of the Contents/MacOS directory the
// executable lives in. Executables not running from inside a .app bundle
// fall back to the executable's own directory.
func resourcesDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("%w: locating executable: %w", ErrUnsupported, err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("%w: resolving executable path: %w", ErrUnsupported, err)
	}

	macOSDir := filepath.Dir(exe)
	contentsDir := filepath.Dir(macOSDir)
	if filepath.Base(macOSDir) != "MacOS" || filepath.Base(contentsDir) != "Contents" {
		return macOSDir, nil
	}

	resources := filepath.Join(contentsDir, "Resources")
	if info, err := os.Stat(resources); err == nil && info.IsDir() {
		return resources, nil
	}
	return macOSDir, nil
}
