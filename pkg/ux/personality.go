// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityEnv overrides the configured personality level.
const PersonalityEnv = "SOVEREIGN_PERSONALITY"

// PersonalityLevel defines the verbosity and richness of CLI output
type PersonalityLevel string

const (
	// PersonalityFull shows the reasoning trail, source shelves and styled chips
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard shows colors and chips but only the final source shelf
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal prints plain text with icons
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine outputs KEY: value lines for scripting
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality holds the current output configuration
type Personality struct {
	Level PersonalityLevel

	// ShowSteps prints each status-log line while a turn streams.
	ShowSteps bool

	// ShowEvidence prints the source shelf on every evidence snapshot
	// instead of once with the finished answer.
	ShowEvidence bool
}

var (
	currentPersonality = DefaultPersonality()
	personalityMu      sync.RWMutex
)

// GetPersonality returns the current personality settings
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentPersonality
}

// SetPersonality updates the current personality settings
func SetPersonality(p Personality) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality = p
}

// SetPersonalityLevel switches level and the flags that follow from it.
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality = personalityFor(level)
}

// ParsePersonalityLevel converts a string to PersonalityLevel
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "f":
		return PersonalityFull
	case "standard", "std", "s":
		return PersonalityStandard
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// InitPersonality picks the level from, in order, the environment, the
// configured value and whether stdout is a terminal.
func InitPersonality(configured string) {
	if envLevel := os.Getenv(PersonalityEnv); envLevel != "" {
		SetPersonalityLevel(ParsePersonalityLevel(envLevel))
		return
	}

	if !isTerminal() {
		SetPersonalityLevel(PersonalityMachine)
		return
	}

	if configured != "" {
		SetPersonalityLevel(ParsePersonalityLevel(configured))
		return
	}

	SetPersonalityLevel(PersonalityFull)
}

// isTerminal checks if stdout is a terminal
func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive returns true if we should show interactive prompts
func IsInteractive() bool {
	p := GetPersonality()
	return p.Level != PersonalityMachine && isTerminal()
}

// ShouldShowProgress returns true if we should show progress indicators
func ShouldShowProgress() bool {
	return GetPersonality().Level != PersonalityMachine
}

// DefaultPersonality returns the default personality settings
func DefaultPersonality() Personality {
	return personalityFor(PersonalityFull)
}

func personalityFor(level PersonalityLevel) Personality {
	return Personality{
		Level:        level,
		ShowSteps:    level != PersonalityMachine,
		ShowEvidence: level == PersonalityFull,
	}
}
