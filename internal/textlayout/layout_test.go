/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"image"
	"image/color"
	"testing"
)

func TestLayoutWraps(t *testing.T) {
	box := Layout(BasicProvider{}, "Hello world from Go", FontSpec{}, 50)
	if len(box.Lines) < 2 {
		t.Fatalf("expected wrapping into multiple lines, got %d", len(box.Lines))
	}
	if box.Width <= 0 || box.Height <= 0 {
		t.Fatalf("expected positive box size: %+v", box)
	}
}

func TestLayoutHonorsNewlines(t *testing.T) {
	box := Layout(BasicProvider{}, "one\ntwo\nthree", FontSpec{}, 0)
	if len(box.Lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(box.Lines))
	}
	if box.Lines[1].Text != "two" {
		t.Fatalf("line[1] = %q", box.Lines[1].Text)
	}
}

func TestLayoutWithoutWrapKeepsOneLine(t *testing.T) {
	box := Layout(BasicProvider{}, "a long single line of text", FontSpec{}, 0)
	if len(box.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(box.Lines))
	}
}

func TestMeasureDeterministic(t *testing.T) {
	w1, h1 := Measure(BasicProvider{}, "ABC", FontSpec{})
	w2, h2 := Measure(BasicProvider{}, "ABC", FontSpec{})
	if w1 != w2 || h1 != h2 {
		t.Fatalf("expected same measure, got w1=%v h1=%v vs w2=%v h2=%v", w1, h1, w2, h2)
	}
	if w1 != 7*3 {
		t.Fatalf("Face7x13 width = %v, want 21", w1)
	}
}

func TestDrawPaintsGlyphs(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 60, 20))
	Draw(dst, BasicProvider{}, "Hi", FontSpec{}, color.RGBA{R: 255, A: 255}, 2, 2, 0)
	painted := 0
	for y := 0; y < 20; y++ {
		for x := 0; x < 60; x++ {
			if _, _, _, a := dst.At(x, y).RGBA(); a > 0 {
				painted++
			}
		}
	}
	if painted == 0 {
		t.Fatal("expected some painted pixels")
	}
}
