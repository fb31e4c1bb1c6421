/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package recorder

import (
	"sync"
	"testing"

	"github.com/bittoy/interceptor/subject"
)

func TestTouchDeduplicatesWithinFrame(t *testing.T) {
	StartRecording()
	s := subject.New(&struct{ X int }{})
	ref := subject.Ref(s, "X")
	Touch(ref)
	Touch(ref)
	Touch(ref)
	got := FinishRecording()
	ClearLast()
	if len(got) != 1 {
		t.Fatalf("want 1 deduplicated entry, got %d", len(got))
	}
}

func TestNestedFramesAreIndependent(t *testing.T) {
	s := subject.New(&struct{ A, B int }{})
	outerRef := subject.Ref(s, "A")
	innerRef := subject.Ref(s, "B")

	StartRecording()
	Touch(outerRef)

	StartRecording()
	Touch(innerRef)
	inner := FinishRecording()
	if len(inner) != 1 || !inner[0].Equal(innerRef) {
		t.Fatalf("inner frame should only see its own touch, got %v", inner)
	}
	ClearLast()

	outer := FinishRecording()
	if len(outer) != 1 || !outer[0].Equal(outerRef) {
		t.Fatalf("outer frame should not see the inner frame's touch, got %v", outer)
	}
	ClearLast()
}

func TestIsRecordingReflectsActiveFrame(t *testing.T) {
	if IsRecording() {
		t.Fatal("no frame started yet; IsRecording should be false")
	}
	StartRecording()
	if !IsRecording() {
		t.Fatal("frame started; IsRecording should be true")
	}
	FinishRecording()
	if IsRecording() {
		t.Fatal("frame finished; IsRecording should be false again")
	}
	ClearLast()
}

func TestTouchWithoutRecordingIsNoop(t *testing.T) {
	s := subject.New(&struct{ X int }{})
	// Must not panic even though no StartRecording has run on this
	// goroutine.
	Touch(subject.Ref(s, "X"))
}

func TestFinishRecordingPanicsOnUnderflow(t *testing.T) {
	// Run on a fresh goroutine so another test's state can't mask the
	// underflow, and so the panic can be recovered without crashing the
	// whole test binary.
	done := make(chan any, 1)
	go func() {
		defer func() { done <- recover() }()
		FinishRecording()
	}()
	if r := <-done; r == nil {
		t.Fatal("expected FinishRecording to panic on an empty stack")
	}
}

func TestRecordingIsPerGoroutine(t *testing.T) {
	var wg sync.WaitGroup
	s := subject.New(&struct{ X int }{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			StartRecording()
			Touch(subject.Ref(s, "X"))
			got := FinishRecording()
			if len(got) != 1 {
				t.Errorf("want 1 touch on this goroutine's frame, got %d", len(got))
			}
			ClearLast()
		}()
	}
	wg.Wait()
}
