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
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"hash"
	"io"
	"os"
	"reflect"
	"runtime"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// hashSize is the digest size in bytes (128 bits).
const hashSize = 16

// StableHash computes a version hash for a handler's logic.
//
// The function's syntax tree is located through its runtime symbol and
// serialized without positions or comments, so reformatting, comment edits and
// moving the function within or between files leave the hash unchanged, while
// any change to statements, operators, literals or identifiers changes it.
// The function's own name is not part of the hash.
//
// When the source cannot be parsed (-trimpath builds, binaries deployed
// without their source tree, bound method values) the hash falls back to the
// normalized source text, then to the function's machine code read from the
// running executable, then to the function name combined with the build
// identity. StableHash never panics.
func StableHash(fn any) string {
	return stableHash(fn, os.ReadFile)
}

func stableHash(fn any, readFile func(string) ([]byte, error)) (h string) {
	defer func() {
		if r := recover(); r != nil {
			h = digestString("unhashable:" + fmt.Sprint(r))
		}
	}()

	f := funcForValue(fn)
	if f == nil {
		return digestString(fmt.Sprintf("type:%T", fn))
	}

	file, line := f.FileLine(f.Entry())
	if src, err := readFile(file); err == nil {
		if sum, ok := hashFuncSource(file, src, line); ok {
			return sum
		}
		if sum, ok := hashSourceText(src, line); ok {
			return sum
		}
	}
	return hashBuilt(FuncName(fn))
}

// FuncName returns the package-qualified name of a function value, without
// the suffixes the compiler adds to bound methods. Returns "" for non-functions.
func FuncName(fn any) string {
	f := funcForValue(fn)
	if f == nil {
		return ""
	}
	return strings.TrimSuffix(f.Name(), "-fm")
}

// ShortFuncName returns the last element of FuncName, e.g. "chunkDocument"
// for "github.com/acme/graph.chunkDocument".
func ShortFuncName(fn any) string {
	name := FuncName(fn)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func funcForValue(fn any) *runtime.Func {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil
	}
	return runtime.FuncForPC(v.Pointer())
}

// hashFuncSource parses src and hashes the function whose body spans line.
func hashFuncSource(filename string, src []byte, line int) (string, bool) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return "", false
	}

	node := findFunc(fset, file, line)
	if node == nil {
		return "", false
	}

	h := newDigest()
	io.WriteString(h, "ast:")
	switch fn := node.(type) {
	case *ast.FuncDecl:
		if fn.Recv != nil {
			writeNode(h, fn.Recv)
		}
		writeNode(h, fn.Type)
		writeNode(h, fn.Body)
	case *ast.FuncLit:
		writeNode(h, fn.Type)
		writeNode(h, fn.Body)
	}
	return hex.EncodeToString(h.Sum(nil)), true
}

// findFunc returns the innermost function declaration or literal containing
// line, preferring one that starts on that line.
func findFunc(fset *token.FileSet, file *ast.File, line int) ast.Node {
	var best ast.Node
	bestStarts := false
	bestSpan := 0

	ast.Inspect(file, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.FuncDecl, *ast.FuncLit:
		default:
			return true
		}
		start := fset.Position(n.Pos()).Line
		end := fset.Position(n.End()).Line
		if line < start || line > end {
			return false
		}
		if d, ok := n.(*ast.FuncDecl); ok && d.Body == nil {
			return false
		}
		starts := start == line
		span := end - start
		if best == nil || (starts && !bestStarts) || (starts == bestStarts && span <= bestSpan) {
			best, bestStarts, bestSpan = n, starts, span
		}
		return true
	})
	return best
}

// writeNode serializes a subtree: node types, names, literals and operators
// in traversal order. Positions and comments are never written.
func writeNode(w io.Writer, root ast.Node) {
	ast.Inspect(root, func(n ast.Node) bool {
		switch n.(type) {
		case nil:
			io.WriteString(w, ")")
			return false
		case *ast.CommentGroup, *ast.Comment:
			return false
		}

		fmt.Fprintf(w, "(%T", n)
		switch x := n.(type) {
		case *ast.Ident:
			fmt.Fprintf(w, " %s", x.Name)
		case *ast.BasicLit:
			fmt.Fprintf(w, " %s %s", x.Kind, x.Value)
		case *ast.BinaryExpr:
			fmt.Fprintf(w, " %s", x.Op)
		case *ast.UnaryExpr:
			fmt.Fprintf(w, " %s", x.Op)
		case *ast.AssignStmt:
			fmt.Fprintf(w, " %s", x.Tok)
		case *ast.IncDecStmt:
			fmt.Fprintf(w, " %s", x.Tok)
		case *ast.BranchStmt:
			fmt.Fprintf(w, " %s", x.Tok)
		case *ast.RangeStmt:
			fmt.Fprintf(w, " %s", x.Tok)
		case *ast.GenDecl:
			fmt.Fprintf(w, " %s", x.Tok)
		case *ast.ChanType:
			fmt.Fprintf(w, " %d", x.Dir)
		case *ast.CallExpr:
			if x.Ellipsis.IsValid() {
				io.WriteString(w, " ...")
			}
		}
		return true
	})
}

// hashSourceText hashes the raw text of the function starting at line,
// dedented and trimmed, reading until braces balance.
func hashSourceText(src []byte, line int) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(src))
	var lines []string
	depth := 0
	opened := false
	for n := 1; scanner.Scan(); n++ {
		if n < line {
			continue
		}
		text := scanner.Text()
		lines = append(lines, text)
		depth += strings.Count(text, "{") - strings.Count(text, "}")
		if strings.Contains(text, "{") {
			opened = true
		}
		if opened && depth <= 0 {
			break
		}
	}
	if len(lines) == 0 {
		return "", false
	}
	normalized := strings.TrimSpace(dedent(lines))
	if normalized == "" {
		return "", false
	}
	return digestString("src:" + normalized), true
}

// dedent removes the longest common leading whitespace from non-blank lines.
func dedent(lines []string) string {
	prefix := ""
	first := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if first {
			prefix, first = indent, false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimPrefix(l, prefix)
	}
	return strings.Join(out, "\n")
}

func newDigest() hash.Hash {
	h, _ := blake2b.New(hashSize, nil)
	return h
}

func digestString(s string) string {
	h := newDigest()
	io.WriteString(h, s)
	return hex.EncodeToString(h.Sum(nil))
}
