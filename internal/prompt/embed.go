package prompt

import "embed"

// templateFS holds the default prompt templates shipped in the binary.
//
//go:embed templates/*
var templateFS embed.FS
