// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command sovereign is a terminal front end for the research backend: it
// streams investigations, keeps the conversation and manages the document
// library.
package main

import (
	"errors"
	"os"

	"github.com/AleutianAI/sovereign/pkg/ux"
)

func main() {
	err := rootCmd.Execute()
	teardown()
	if err != nil {
		if !errors.Is(err, errReported) {
			ux.Error(err.Error())
		}
		os.Exit(1)
	}
}
