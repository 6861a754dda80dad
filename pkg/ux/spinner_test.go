// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewSpinner_Defaults(t *testing.T) {
	spin := NewSpinnerTo(&bytes.Buffer{}, "检索中")
	if spin.message != "检索中" {
		t.Errorf("message = %q", spin.message)
	}
	if spin.spinType != SpinnerDots {
		t.Errorf("expected dots by default, got %d", spin.spinType)
	}
	if spin.IsRunning() {
		t.Error("new spinner must not be running")
	}
}

func TestSpinner_WithType(t *testing.T) {
	spin := NewSpinnerTo(&bytes.Buffer{}, "x").WithType(SpinnerPages)
	if spin.spinType != SpinnerPages {
		t.Errorf("expected pages, got %d", spin.spinType)
	}
}

func TestSpinner_Start_MachineMode(t *testing.T) {
	withPersonality(t, PersonalityMachine)
	var buf bytes.Buffer

	spin := NewSpinnerTo(&buf, "Processing...")
	spin.Start()
	spin.Start()
	spin.Stop()

	if buf.String() != "PROGRESS: Processing...\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestSpinner_Stop_NotRunning(t *testing.T) {
	spin := NewSpinnerTo(&bytes.Buffer{}, "x")
	spin.Stop()
	spin.Stop()

	// A stopped spinner does not restart.
	spin.Start()
	if spin.IsRunning() {
		t.Error("spinner restarted after Stop")
	}
}

func TestSpinner_StartStop_FullMode(t *testing.T) {
	withPersonality(t, PersonalityFull)
	var buf bytes.Buffer

	spin := NewSpinnerTo(&buf, "检索中")
	spin.Start()
	time.Sleep(3 * spinnerInterval)
	spin.UpdateMessage("分析中")
	time.Sleep(2 * spinnerInterval)
	spin.Stop()

	out := buf.String()
	if !strings.Contains(out, "检索中") {
		t.Errorf("expected first message to be drawn, got %q", out)
	}
	if !strings.HasSuffix(out, "\r\033[K") {
		t.Errorf("expected line clear on stop, got %q", out)
	}
}

func TestWithSpinner(t *testing.T) {
	withPersonality(t, PersonalityMachine)

	t.Run("success", func(t *testing.T) {
		out, _ := captureOutput(t)
		if err := WithSpinner("索引", func() error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.String() != "PROGRESS: 索引\nOK: 索引\n" {
			t.Errorf("got %q", out.String())
		}
	})

	t.Run("failure", func(t *testing.T) {
		out, errOut := captureOutput(t)
		boom := errors.New("boom")
		if err := WithSpinner("索引", func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if out.String() != "PROGRESS: 索引\n" {
			t.Errorf("stdout = %q", out.String())
		}
		if errOut.String() != "ERROR: 索引: boom\n" {
			t.Errorf("stderr = %q", errOut.String())
		}
	})
}
