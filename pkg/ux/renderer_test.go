// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/sovereign/pkg/conversation"
	"github.com/AleutianAI/sovereign/pkg/evidence"
)

var sampleSources = []evidence.Record{
	{SourceID: "a.pdf", Page: "1", Text: "第一段\n摘录"},
	{SourceID: "b.pdf", Page: "N/A"},
}

// =============================================================================
// TurnRenderer Tests
// =============================================================================

func TestTurnRenderer_Machine(t *testing.T) {
	var buf bytes.Buffer
	r := NewTurnRenderer(&buf, PersonalityMachine)

	r.Render(conversation.UserTurn("总结文档"))
	r.Render(conversation.AssistantTurn("结果是X [来源: a.pdf, Page 1; source: b.pdf]", sampleSources))

	want := "QUERY: 总结文档\n" +
		"ANSWER: 结果是X [来源: a.pdf, Page 1; source: b.pdf]\n" +
		"CITATION: a.pdf page=1\n" +
		"CITATION: b.pdf\n" +
		"SOURCE: a.pdf page=1\n" +
		"SOURCE: b.pdf page=N/A\n"
	assert.Equal(t, want, buf.String())
}

func TestTurnRenderer_Minimal(t *testing.T) {
	var buf bytes.Buffer
	r := NewTurnRenderer(&buf, PersonalityMinimal)

	r.Render(conversation.UserTurn("问题"))
	r.Render(conversation.AssistantTurn("**结论**\n见 [来源: a.pdf, Page 1]", sampleSources[:1]))

	want := "你 问题\n" +
		"📓 结论\n见 🔖 a.pdf · Page 1\n" +
		"Sources & Citations:\n  1. a.pdf P.1\n"
	assert.Equal(t, want, buf.String())
}

func TestTurnRenderer_AssistantWithoutSourcesHasNoShelf(t *testing.T) {
	var buf bytes.Buffer
	NewTurnRenderer(&buf, PersonalityMinimal).Render(conversation.AssistantTurn("暂未生成答案。", nil))

	assert.Equal(t, "📓 暂未生成答案。\n", buf.String())
}

func TestTurnRenderer_RenderContent_NonSourceBracketKept(t *testing.T) {
	r := NewTurnRenderer(&bytes.Buffer{}, PersonalityMinimal)
	assert.Equal(t, "see [note]", r.RenderContent("see [note]"))
}

func TestTurnRenderer_RenderSources_Full(t *testing.T) {
	r := NewTurnRenderer(&bytes.Buffer{}, PersonalityFull)

	shelf := r.RenderSources(sampleSources)

	assert.Contains(t, shelf, "Sources & Citations")
	assert.Contains(t, shelf, "a.pdf")
	assert.Contains(t, shelf, "P.1")
	assert.Contains(t, shelf, "第一段 摘录")
	assert.Contains(t, shelf, "P.N/A")
}

func TestTurnRenderer_RenderSources_Empty(t *testing.T) {
	r := NewTurnRenderer(&bytes.Buffer{}, PersonalityFull)
	assert.Contains(t, r.RenderSources(nil), "回答里的引用会展示在这里。")
}

func TestChipLabel(t *testing.T) {
	assert.Equal(t, "🔖 a.pdf · Page 3", ChipLabel(Citation{File: "a.pdf", Page: "3"}))
	assert.Equal(t, "🔖 x.pdf", ChipLabel(Citation{File: "x.pdf"}))
}

func TestClipExcerpt(t *testing.T) {
	long := strings.Repeat("段", 200)
	clipped := clipExcerpt(long)
	assert.Equal(t, excerptRunes, len([]rune(clipped)))
	assert.True(t, strings.HasSuffix(clipped, "..."))
	assert.Equal(t, "a b", clipExcerpt("  a\n\tb "))
}

// =============================================================================
// TerminalObserver Tests
// =============================================================================

func TestTerminalObserver_Machine(t *testing.T) {
	var buf bytes.Buffer
	o := NewTerminalObserver(&buf, personalityFor(PersonalityMachine))

	o.OnTurnStart("总结文档")
	o.OnLogLine("检索中")
	o.OnEvidence(sampleSources[:1])
	o.OnLogLine("🧠 Step 1: 分析中")
	o.OnTurnComplete(conversation.AssistantTurn("结果是X", sampleSources[:1]))
	o.Close()

	want := "LOG: 检索中\n" +
		"EVIDENCE: 1\n" +
		"LOG: 🧠 Step 1: 分析中\n" +
		"ANSWER: 结果是X\n" +
		"SOURCE: a.pdf page=1\n"
	assert.Equal(t, want, buf.String())
}

func TestTerminalObserver_StandardHidesLiveEvidence(t *testing.T) {
	var buf bytes.Buffer
	o := NewTerminalObserver(&buf, personalityFor(PersonalityStandard))

	o.OnTurnStart("q")
	o.OnLogLine("检索中")
	o.OnEvidence(sampleSources)
	o.Close()

	out := buf.String()
	assert.Contains(t, out, "检索中")
	assert.NotContains(t, out, "Sources & Citations")
}

func TestTerminalObserver_FullShowsLiveEvidence(t *testing.T) {
	var buf bytes.Buffer
	o := NewTerminalObserver(&buf, personalityFor(PersonalityFull))

	o.OnEvidence(sampleSources)

	assert.Contains(t, buf.String(), "Sources & Citations")
}

func TestTerminalObserver_StepsHidden(t *testing.T) {
	var buf bytes.Buffer
	p := personalityFor(PersonalityMinimal)
	p.ShowSteps = false
	o := NewTerminalObserver(&buf, p)

	o.OnLogLine("检索中")

	assert.Empty(t, buf.String())
}
