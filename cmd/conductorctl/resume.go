package main

import (
	"regexp"
)

// Vendor CLIs sometimes print their resume command in human-readable
// trailer text instead of (or in addition to) the structured stream.
// These patterns recover the token from such lines so an attached client
// can stash it without parsing vendor-specific prose.
var (
	codexResumeRe  = regexp.MustCompile(`codex\s+resume\s+([A-Za-z0-9_-]+)`)
	claudeResumeRe = regexp.MustCompile(`claude\s+(?:--resume|-r)\s+([A-Za-z0-9_-]+)`)
)

// resumeToken is one token recovered from a line of agent output.
type resumeToken struct {
	Engine string `json:"engine"`
	Token  string `json:"token"`
}

// scanResumeTokens applies both vendor patterns to line and returns every
// match, codex first. A line advertising both vendors' resume commands
// (unlikely, but cheap to honor) yields both.
func scanResumeTokens(line string) []resumeToken {
	var tokens []resumeToken
	for _, m := range codexResumeRe.FindAllStringSubmatch(line, -1) {
		tokens = append(tokens, resumeToken{Engine: "codex", Token: m[1]})
	}
	for _, m := range claudeResumeRe.FindAllStringSubmatch(line, -1) {
		tokens = append(tokens, resumeToken{Engine: "claude", Token: m[1]})
	}
	return tokens
}
