// Package kernels holds the bundled kernel programs, one source per kernel
// language.
package kernels

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

//go:embed *.cl *.wgsl *.gokernel
var files embed.FS

// Bundled programs.
const (
	MatMul   = "matmul"
	Rotation = "rotation"
)

var entryPoints = map[string]string{
	MatMul:   "simpleMultiply",
	Rotation: "img_rotate",
}

// Ext returns the file extension used for sources in lang.
func Ext(lang driver.Language) (string, error) {
	switch lang {
	case driver.LanguageOpenCLC:
		return ".cl", nil
	case driver.LanguageWGSL:
		return ".wgsl", nil
	case driver.LanguageGo:
		return ".gokernel", nil
	}
	return "", fmt.Errorf("no kernel sources for language %q", lang)
}

// LanguageOf infers the kernel language of a source file from its
// extension. Plain .go files are taken as Go kernels.
func LanguageOf(path string) (driver.Language, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cl":
		return driver.LanguageOpenCLC, nil
	case ".wgsl":
		return driver.LanguageWGSL, nil
	case ".gokernel", ".go":
		return driver.LanguageGo, nil
	}
	return "", fmt.Errorf("cannot tell the kernel language of %s", filepath.Base(path))
}

// Names lists the bundled programs.
func Names() []string {
	names := make([]string, 0, len(entryPoints))
	for n := range entryPoints {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EntryPoint returns the kernel function name of a bundled program.
func EntryPoint(name string) (string, error) {
	ep, ok := entryPoints[name]
	if !ok {
		return "", fmt.Errorf("unknown kernel program %q", name)
	}
	return ep, nil
}

// Source returns the bundled source of program name written in lang.
func Source(lang driver.Language, name string) (string, error) {
	if _, err := EntryPoint(name); err != nil {
		return "", err
	}
	ext, err := Ext(lang)
	if err != nil {
		return "", err
	}
	b, err := files.ReadFile(name + ext)
	if err != nil {
		return "", fmt.Errorf("read bundled %s%s: %w", name, ext, err)
	}
	return string(b), nil
}

// Path returns where program name in lang lives under dir.
func Path(dir string, lang driver.Language, name string) (string, error) {
	ext, err := Ext(lang)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+ext), nil
}

// Export writes every bundled source into dir, which must exist. Existing
// files are left untouched unless overwrite is set.
func Export(dir string, overwrite bool) ([]string, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var written []string
	for _, e := range entries {
		dst := filepath.Join(dir, e.Name())
		if !overwrite {
			if _, err := os.Stat(dst); err == nil {
				continue
			}
		}
		b, err := files.ReadFile(e.Name())
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(dst, b, 0o644); err != nil {
			return written, fmt.Errorf("export %s: %w", e.Name(), err)
		}
		written = append(written, dst)
	}
	return written, nil
}
