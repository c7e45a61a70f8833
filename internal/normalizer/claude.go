package normalizer

import (
	"fmt"
	"strings"
)

// ClaudeParser holds Claude's per-session state: the session's resume
// token and the pending map of in-flight tool_use ids awaiting their
// matching tool_result.
type ClaudeParser struct {
	resume  string
	pending map[string]*Action
	noteSeq int
}

// NewClaudeParser returns a fresh Claude parser with zeroed state.
func NewClaudeParser() *ClaudeParser {
	return &ClaudeParser{pending: make(map[string]*Action)}
}

// Parse feeds one decoded Claude stream line through the dispatch table.
func (p *ClaudeParser) Parse(v map[string]any) (events []Event, ok bool) {
	switch getString(v, "type") {
	case "system":
		if getString(v, "subtype") != "init" {
			return []Event{}, true
		}
		p.resume = getString(v, "session_id")
		model := getString(v, "model")
		meta := map[string]any{}
		if cwd := getString(v, "cwd"); cwd != "" {
			meta["cwd"] = cwd
		}
		if tools := getSlice(v, "tools"); tools != nil {
			meta["tools"] = tools
		}
		if pm := getString(v, "permissionMode"); pm != "" {
			meta["permissionMode"] = pm
		}
		if style := getString(v, "output_style"); style != "" {
			meta["output_style"] = style
		}
		if model != "" {
			meta["model"] = model
		}
		if len(meta) == 0 {
			meta = nil
		}
		return []Event{started(EngineClaude, p.resume, model, meta)}, true

	case "assistant":
		blocks := getSlice(getMap(v, "message"), "content")
		var out []Event
		var texts []string
		for _, raw := range blocks {
			block, isMap := raw.(map[string]any)
			if !isMap {
				continue
			}
			switch getString(block, "type") {
			case "tool_use":
				out = append(out, p.handleToolUse(block)...)
			case "tool_result":
				out = append(out, p.handleToolResult(block)...)
			case "thinking":
				out = append(out, p.handleThinking(block)...)
			case "text":
				if text := getString(block, "text"); text != "" {
					texts = append(texts, text)
				}
			}
		}
		if len(texts) > 0 {
			// Newline join preserves block boundaries.
			out = append(out, message(EngineClaude, strings.Join(texts, "\n")))
		}
		return out, true

	case "result":
		ok := !getBool(v, "is_error")
		answer := getString(v, "result")
		errMsg := ""
		if !ok {
			errMsg = answer
		}
		return []Event{completed(EngineClaude, ok, answer, p.resume, errMsg, getMap(v, "usage"))}, true

	default:
		return nil, false
	}
}

// claudeToolKind classifies a Claude tool_use name (case-insensitively)
// into the fixed action-kind enumeration.
func claudeToolKind(name string) ActionKind {
	switch strings.ToLower(name) {
	case "bash", "shell":
		return KindCommand
	case "read", "edit", "write", "multiedit":
		return KindFileChange
	case "websearch", "web_search", "webfetch", "browser":
		return KindWebSearch
	case "task", "agent":
		return KindSubagent
	case "todowrite":
		return KindTodo
	default:
		return KindTool
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (p *ClaudeParser) handleToolUse(block map[string]any) []Event {
	id := getString(block, "id")
	name := getString(block, "name")
	input := getMap(block, "input")
	kind := claudeToolKind(name)

	var title string
	detail := map[string]any{}

	switch kind {
	case KindCommand:
		title = getString(input, "command")
	case KindFileChange:
		title = firstNonEmpty(getString(input, "file_path"), getString(input, "path"))
		if title != "" {
			detail["changes"] = []map[string]any{{"path": title, "kind": "update"}}
		}
	case KindWebSearch:
		title = firstNonEmpty(getString(input, "query"), getString(input, "url"))
	case KindSubagent:
		title = firstNonEmpty(getString(input, "title"), getString(input, "name"))
	case KindTodo:
		completedN, total, activeForm := todoProgress(getSlice(input, "todos"))
		title = todoTitle(completedN, total, activeForm)
	default:
		title = name
	}
	if title == "" {
		title = name
	}

	a := Action{ID: id, Kind: kind, Title: title, Detail: detail}
	p.pending[id] = &a
	return []Event{action(EngineClaude, PhaseStarted, a, nil, "", "")}
}

// todoProgress counts completed/total todos and returns the activeForm of
// the first in_progress entry, matching TodoWrite's completed+in_progress
// +pending=total invariant.
func todoProgress(todos []any) (completedN, total int, activeForm string) {
	total = len(todos)
	for _, raw := range todos {
		tm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		status := getString(tm, "status")
		if status == "completed" {
			completedN++
		} else if status == "in_progress" && activeForm == "" {
			activeForm = getString(tm, "activeForm")
		}
	}
	return completedN, total, activeForm
}

func todoTitle(completedN, total int, activeForm string) string {
	if total > 0 && completedN == total {
		return fmt.Sprintf("%d/%d: done", completedN, total)
	}
	return fmt.Sprintf("todo %d/%d: %s", completedN, total, activeForm)
}

func (p *ClaudeParser) handleToolResult(block map[string]any) []Event {
	toolUseID := getString(block, "tool_use_id")
	isError := getBool(block, "is_error")
	preview := flattenContent(block["content"])

	a, found := p.pending[toolUseID]
	if found {
		delete(p.pending, toolUseID)
	} else {
		a = &Action{ID: toolUseID, Kind: KindTool, Title: toolUseID}
	}
	if a.Detail == nil {
		a.Detail = map[string]any{}
	}
	a.Detail["tool_use_id"] = toolUseID
	a.Detail["result_preview"] = preview
	a.Detail["result_len"] = len(preview)
	a.Detail["is_error"] = isError

	ok := !isError
	return []Event{action(EngineClaude, PhaseCompleted, *a, &ok, "", "")}
}

// flattenContent collapses a tool_result's content field -- a string, an
// array of typed content blocks, or a single object -- into plain text.
func flattenContent(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, raw := range c {
			if m, ok := raw.(map[string]any); ok {
				if t := getString(m, "text"); t != "" {
					parts = append(parts, t)
				}
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		return getString(c, "text")
	default:
		return ""
	}
}

func (p *ClaudeParser) handleThinking(block map[string]any) []Event {
	text := getString(block, "thinking")
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	}
	p.noteSeq++
	id := fmt.Sprintf("claude.note.%d", p.noteSeq)
	ok := true
	a := Action{ID: id, Kind: KindNote, Title: firstLine, Detail: map[string]any{}}
	return []Event{action(EngineClaude, PhaseCompleted, a, &ok, "", "")}
}
