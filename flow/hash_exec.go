// Copyright 2025 Poiesic Systems
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


package flow

import (
	"debug/elf"
	"debug/macho"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
)

// codeRange locates a function's machine code inside the executable file.
type codeRange struct {
	offset int64
	size   int64
}

var (
	symbolsOnce sync.Once
	symbolsPath string
	symbols     map[string]codeRange

	identityOnce sync.Once
	identity     string
)

// hashBuilt hashes a function whose source is unavailable. The function's
// machine code is used when the executable carries a symbol table; otherwise
// the name is combined with the build identity, so a rebuilt binary yields new
// hashes. Code addresses embedded in the instructions make the machine-code
// hash move when unrelated code is relinked as well.
func hashBuilt(name string) string {
	if sum, ok := hashCompiled(name); ok {
		return sum
	}
	return digestString("build:" + buildIdentity() + ":" + name)
}

// hashCompiled digests the machine code of the named function.
func hashCompiled(name string) (string, bool) {
	code, ok := compiledCode(name)
	if !ok {
		return "", false
	}
	h := newDigest()
	io.WriteString(h, "bin:")
	h.Write(code)
	return hex.EncodeToString(h.Sum(nil)), true
}

func compiledCode(name string) ([]byte, bool) {
	symbolsOnce.Do(loadSymbols)
	r, ok := symbols[name]
	if !ok || r.size <= 0 {
		return nil, false
	}

	f, err := os.Open(symbolsPath)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	code := make([]byte, r.size)
	if _, err := f.ReadAt(code, r.offset); err != nil {
		return nil, false
	}
	return code, true
}

func loadSymbols() {
	path, err := os.Executable()
	if err != nil {
		return
	}
	if table, err := elfSymbols(path); err == nil {
		symbolsPath, symbols = path, table
		return
	}
	if table, err := machoSymbols(path); err == nil {
		symbolsPath, symbols = path, table
	}
}

func elfSymbols(path string) (map[string]codeRange, error) {
	file, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	syms, err := file.Symbols()
	if err != nil {
		return nil, err
	}

	table := make(map[string]codeRange, len(syms))
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Size == 0 {
			continue
		}
		if s.Section == elf.SHN_UNDEF || int(s.Section) >= len(file.Sections) {
			continue
		}
		sec := file.Sections[s.Section]
		if sec.Flags&elf.SHF_EXECINSTR == 0 || sec.Type == elf.SHT_NOBITS || s.Value < sec.Addr {
			continue
		}
		table[s.Name] = codeRange{
			offset: int64(sec.Offset + (s.Value - sec.Addr)),
			size:   int64(s.Size),
		}
	}
	return table, nil
}

// machoSymbols derives function sizes from the distance to the next symbol,
// since Mach-O symbols carry no size.
func machoSymbols(path string) (map[string]codeRange, error) {
	file, err := macho.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if file.Symtab == nil {
		return nil, fmt.Errorf("no symbol table in %s", path)
	}

	var text *macho.Section
	textIndex := 0
	for i, sec := range file.Sections {
		if sec.Seg == "__TEXT" && sec.Name == "__text" {
			text, textIndex = sec, i+1
			break
		}
	}
	if text == nil {
		return nil, fmt.Errorf("no text section in %s", path)
	}

	var syms []macho.Symbol
	for _, s := range file.Symtab.Syms {
		if int(s.Sect) == textIndex && s.Type&0xe0 == 0 {
			syms = append(syms, s)
		}
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].Value < syms[j].Value })

	end := text.Addr + text.Size
	table := make(map[string]codeRange, len(syms))
	for i, s := range syms {
		next := end
		if i+1 < len(syms) {
			next = syms[i+1].Value
		}
		if next <= s.Value || s.Value < text.Addr {
			continue
		}
		table[strings.TrimPrefix(s.Name, "_")] = codeRange{
			offset: int64(uint64(text.Offset) + (s.Value - text.Addr)),
			size:   int64(next - s.Value),
		}
	}
	return table, nil
}

// buildIdentity digests the module version, VCS state and executable bytes.
func buildIdentity() string {
	identityOnce.Do(func() {
		h := newDigest()
		if info, ok := debug.ReadBuildInfo(); ok {
			fmt.Fprintf(h, "%s %s %s\n", info.Main.Path, info.Main.Version, info.Main.Sum)
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision", "vcs.modified", "vcs.time":
					fmt.Fprintf(h, "%s=%s\n", s.Key, s.Value)
				}
			}
		}
		if path, err := os.Executable(); err == nil {
			if f, err := os.Open(path); err == nil {
				io.Copy(h, f)
				f.Close()
			}
		}
		identity = hex.EncodeToString(h.Sum(nil))
	})
	return identity
}
