/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Parse parses macro source text into commands. Syntax errors do not
// stop the scan; every bad line produces one Error so an author sees
// the whole damage report at once. The returned commands are only safe
// to run when errs is empty.
func Parse(input string) (cmds []Command, errs []Error) {
	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0

	fail := func(format string, args ...any) {
		errs = append(errs, Error{Line: lineNo, Column: 1, Message: fmt.Sprintf(format, args...)})
	}

	for scanner.Scan() {
		lineNo++
		trim := strings.TrimSpace(scanner.Text())
		if trim == "" || strings.HasPrefix(trim, "#") {
			continue
		}

		fields, err := splitFields(trim)
		if err != nil {
			fail("%v", err)
			continue
		}

		op := strings.ToLower(fields[0])
		rest := fields[1:]
		cmd := Command{LineNo: lineNo}

		switch op {
		case "add":
			if len(rest) < 1 {
				fail("add needs an item kind")
				continue
			}
			cmd.Op = OpAdd
			cmd.Kind = strings.ToLower(rest[0])
			switch cmd.Kind {
			case "rect", "ellipse":
				args, ok := numericTail(rest, 2, 4, fail)
				if !ok {
					continue
				}
				cmd.Target, cmd.Args = rest[1], args
			case "text":
				if len(rest) < 5 {
					fail("add text needs a name, a position and the text")
					continue
				}
				args, ok := numbers(rest[2:4], fail)
				if !ok {
					continue
				}
				cmd.Target, cmd.Args = rest[1], args
				cmd.Text = strings.Join(rest[4:], " ")
			default:
				fail("unknown item kind %q", rest[0])
				continue
			}
		case "move":
			cmd.Op = OpMove
			if !targetArgs(&cmd, rest, 2, fail) {
				continue
			}
		case "resize":
			cmd.Op = OpResize
			if !targetArgs(&cmd, rest, 2, fail) {
				continue
			}
		case "rotate":
			cmd.Op = OpRotate
			if !targetArgs(&cmd, rest, 1, fail) {
				continue
			}
		case "scale":
			cmd.Op = OpScale
			if !targetArgs(&cmd, rest, 1, fail) {
				continue
			}
		case "setprop":
			if len(rest) < 3 {
				fail("setprop needs a name, a property and a value")
				continue
			}
			cmd.Op = OpSetProp
			cmd.Target, cmd.Prop = rest[0], rest[1]
			cmd.Text = strings.Join(rest[2:], " ")
		case "settext":
			if len(rest) < 2 {
				fail("settext needs a name and the text")
				continue
			}
			cmd.Op = OpSetText
			cmd.Target = rest[0]
			cmd.Text = strings.Join(rest[1:], " ")
		case "delete":
			if len(rest) != 1 {
				fail("delete needs exactly one name")
				continue
			}
			cmd.Op = OpDelete
			cmd.Target = rest[0]
		case "crop":
			cmd.Op = OpCrop
			if !targetArgs(&cmd, rest, 4, fail) {
				continue
			}
		case "scale-image":
			cmd.Op = OpScaleImage
			if !targetArgs(&cmd, rest, 2, fail) {
				continue
			}
		default:
			fail("unknown command %q", fields[0])
			continue
		}
		cmds = append(cmds, cmd)
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, Error{Line: lineNo, Column: 1, Message: err.Error()})
	}
	return cmds, errs
}

// targetArgs fills the common "<name> <n numbers>" argument shape.
func targetArgs(cmd *Command, rest []string, n int, fail func(string, ...any)) bool {
	if len(rest) != n+1 {
		fail("expected a name and %d numeric argument(s), got %d field(s)", n, len(rest))
		return false
	}
	args, ok := numbers(rest[1:], fail)
	if !ok {
		return false
	}
	cmd.Target, cmd.Args = rest[0], args
	return true
}

// numericTail parses fields[from:from+n] as numbers after checking the
// total field count.
func numericTail(fields []string, from, n int, fail func(string, ...any)) ([]float64, bool) {
	if len(fields) != from+n {
		fail("expected %d numeric argument(s), got %d field(s)", n, len(fields)-from)
		return nil, false
	}
	return numbers(fields[from:], fail)
}

func numbers(fields []string, fail func(string, ...any)) ([]float64, bool) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			fail("bad number %q", f)
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// splitFields splits a line on whitespace, keeping double-quoted runs
// together (quotes stripped).
func splitFields(s string) ([]string, error) {
	var out []string
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}
		if s[i] == '"' {
			j := i + 1
			for j < len(s) && s[j] != '"' {
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("unclosed quote")
			}
			out = append(out, s[i+1:j])
			i = j + 1
			continue
		}
		j := i
		for j < len(s) && s[j] != ' ' && s[j] != '\t' {
			j++
		}
		out = append(out, s[i:j])
		i = j
	}
	return out, nil
}
