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

// A .cvfmacro file is a plain text list of edit commands, one per line.
// Lines starting with "#" are comments, blank lines are skipped. Item
// names containing spaces are double-quoted; the trailing text of
// "add text", "settext" and "setprop" runs to the end of the line.
//
//	add rect|ellipse <name> <x> <y> <w> <h>
//	add text <name> <x> <y> <text...>
//	move <name> <x> <y>
//	resize <name> <w> <h>
//	rotate <name> <degrees>
//	scale <name> <factor>
//	setprop <name> <property> <value...>
//	settext <name> <text...>
//	delete <name>
//	crop <name> <x> <y> <w> <h>
//	scale-image <name> <w> <h>

// Op identifies a macro command.
type Op int

const (
	OpUnknown Op = iota
	OpAdd
	OpMove
	OpResize
	OpRotate
	OpScale
	OpSetProp
	OpSetText
	OpDelete
	OpCrop
	OpScaleImage
)

// Command is one parsed macro line. Which fields are populated depends
// on the op: Add fills Kind and, for text items, Text; SetProp fills
// Prop and Text; the geometry ops fill Args.
type Command struct {
	Op     Op
	Kind   string    // add: rect, ellipse or text
	Target string    // item display name; for add, the new item's name
	Prop   string    // setprop: property name
	Text   string    // trailing free text
	Args   []float64 // numeric arguments in source order
	LineNo int       // 1-based starting line number in the source
}

// Error represents a parse error with position context.
type Error struct {
	Line    int
	Column  int
	Message string
}
