// Copyright 2026 fanjia1024
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

package source

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	apperrors "filehash-platform/pkg/errors"
)

// ValidateFile 检查路径为已存在的普通文件
func ValidateFile(path string) error {
	if path == "" {
		return apperrors.Validationf("file_path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.NotFoundf("file does not exist: %s", path)
	}
	if !info.Mode().IsRegular() {
		return apperrors.NotFoundf("not a regular file: %s", path)
	}
	return nil
}

// Enumerate 列出目录下的普通文件（按路径排序）；recursive 为 true 时遍历子目录。
// 无法进入的子目录被跳过，不影响其余文件。
func Enumerate(dir string, recursive bool) ([]string, error) {
	if dir == "" {
		return nil, apperrors.Validationf("directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, apperrors.NotFoundf("directory does not exist: %s", dir)
	}

	var files []string
	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrSourceUnreadable, "read directory %s", dir)
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
		return files, nil
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrSourceUnreadable, "walk directory %s", dir)
	}
	sort.Strings(files)
	return files, nil
}
