// Command mkimage packs user-program ELF images into a Go source file the
// kernel embeds: a generated constructor returning an apps.StaticCatalog
// with each program's name and bytes, standing in for the linker-symbol
// catalog (_num_app/_app_names) when the image is assembled by the Go
// toolchain instead of a custom linker script.
//
// Programs are selected either by a YAML manifest naming them explicitly
// or, with no manifest, by scanning the given directories for RV64 ELF
// executables.
package main

import (
	"bytes"
	"debug/elf"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

// manifest describes which programs to embed and their load order.
type manifest struct {
	Apps []manifestApp `yaml:"apps"`
}

type manifestApp struct {
	// Name is the catalog name tasks are created under; defaults to the
	// file's base name without extension.
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type app struct {
	name  string
	image []byte
}

func main() {
	var (
		manifestPath = flag.String("manifest", "", "YAML manifest naming the programs to embed")
		outPath      = flag.String("out", "catalog_gen.go", "generated Go source file")
		pkgName      = flag.String("pkg", "payload", "package name for the generated file")
	)
	flag.Parse()

	var (
		apps []app
		err  error
	)
	switch {
	case *manifestPath != "":
		apps, err = loadFromManifest(*manifestPath)
	case flag.NArg() > 0:
		apps, err = scanDirs(flag.Args())
	default:
		err = fmt.Errorf("nothing to embed: pass -manifest or one or more directories")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkimage: %v\n", err)
		os.Exit(1)
	}

	src := generate(*pkgName, apps)
	if err := os.WriteFile(*outPath, src, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "mkimage: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("mkimage: embedded %d program(s) into %s\n", len(apps), *outPath)
}

func loadFromManifest(path string) ([]app, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(m.Apps) == 0 {
		return nil, fmt.Errorf("%s lists no apps", path)
	}

	dir := filepath.Dir(path)
	apps := make([]app, 0, len(m.Apps))
	for _, entry := range m.Apps {
		p := entry.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		image, err := readELF(p)
		if err != nil {
			return nil, err
		}
		name := entry.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		}
		apps = append(apps, app{name: name, image: image})
	}
	return apps, nil
}

// scanDirs walks the given directories and embeds every regular file that
// parses as an RV64 ELF executable, in name order.
func scanDirs(dirs []string) ([]app, error) {
	var apps []app
	for _, dir := range dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			// Symlinks, sockets and other oddities in a build tree
			// are skipped by checking the real mode bits.
			var st unix.Stat_t
			if err := unix.Lstat(path, &st); err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if st.Mode&unix.S_IFMT != unix.S_IFREG {
				return nil
			}

			image, err := readELF(path)
			if err != nil {
				return nil // not an ELF; ignore
			}
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			apps = append(apps, app{name: name, image: image})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(apps) == 0 {
		return nil, fmt.Errorf("no RV64 ELF executables found under %s", strings.Join(dirs, ", "))
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].name < apps[j].name })
	return apps, nil
}

// readELF loads path and verifies it is the kind of image the kernel can
// map: ELF64 for EM_RISCV (the same guard addrspace.FromELF applies at
// run time, applied here so a bad build fails at pack time instead).
func readELF(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()
	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%s: not an RV64 ELF", path)
	}
	return raw, nil
}

func generate(pkg string, apps []app) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by mkimage. DO NOT EDIT.\n\npackage %s\n\n", pkg)
	fmt.Fprintf(&b, "import \"rvkernel/kernel/apps\"\n\n")
	fmt.Fprintf(&b, "// Catalog returns the embedded application catalog.\n")
	fmt.Fprintf(&b, "func Catalog() *apps.StaticCatalog {\n")
	fmt.Fprintf(&b, "\treturn apps.NewStaticCatalog(\n\t\t[]string{\n")
	for _, a := range apps {
		fmt.Fprintf(&b, "\t\t\t%q,\n", a.name)
	}
	fmt.Fprintf(&b, "\t\t},\n\t\t[][]byte{\n")
	for _, a := range apps {
		fmt.Fprintf(&b, "\t\t\t{")
		for i, by := range a.image {
			if i%16 == 0 {
				fmt.Fprintf(&b, "\n\t\t\t\t")
			}
			fmt.Fprintf(&b, "0x%02x, ", by)
		}
		fmt.Fprintf(&b, "\n\t\t\t},\n")
	}
	fmt.Fprintf(&b, "\t\t},\n\t)\n}\n")
	return b.Bytes()
}
