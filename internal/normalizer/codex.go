package normalizer

import "fmt"

// CodexParser holds Codex's per-session state: the thread's resume token,
// the most recent assistant answer text (carried into turn.completed /
// turn.failed, which never repeat it themselves), a monotonic turn
// counter, and a counter for synthetic note/warning action ids. It is not
// safe for concurrent use; one parser serves exactly one Codex session.
type CodexParser struct {
	resume     string
	lastAnswer string
	turnIndex  int
	noteSeq    int
}

// NewCodexParser returns a fresh Codex parser with zeroed state.
func NewCodexParser() *CodexParser {
	return &CodexParser{}
}

// Parse feeds one decoded Codex stream line through the dispatch table.
// ok is false when the top-level type is not one the Codex schema defines;
// callers may then try the Claude dispatch or forward the line verbatim.
func (p *CodexParser) Parse(v map[string]any) (events []Event, ok bool) {
	switch getString(v, "type") {
	case "thread.started":
		p.resume = getString(v, "thread_id")
		return []Event{started(EngineCodex, p.resume, "Codex", nil)}, true

	case "turn.started":
		id := fmt.Sprintf("turn:%d", p.turnIndex)
		p.turnIndex++
		return []Event{action(EngineCodex, PhaseStarted, Action{ID: id, Kind: KindTurn, Detail: map[string]any{}}, nil, "", "")}, true

	case "turn.completed":
		prevID := fmt.Sprintf("turn:%d", p.turnIndex-1)
		ok := true
		turnDone := action(EngineCodex, PhaseCompleted, Action{ID: prevID, Kind: KindTurn, Detail: map[string]any{}}, &ok, "", "")
		done := completed(EngineCodex, true, p.lastAnswer, p.resume, "", getMap(v, "usage"))
		return []Event{turnDone, done}, true

	case "turn.failed":
		errMsg := getString(getMap(v, "error"), "message")
		return []Event{completed(EngineCodex, false, p.lastAnswer, p.resume, errMsg, nil)}, true

	case "error":
		msg := getString(v, "message")
		if msg == "" {
			// Recognized but empty, so callers can still tell this apart
			// from an unknown event type.
			return []Event{}, true
		}
		p.noteSeq++
		id := fmt.Sprintf("codex.note.%d", p.noteSeq)
		notOK := false
		return []Event{action(EngineCodex, PhaseCompleted, Action{ID: id, Kind: KindWarning, Title: msg, Detail: map[string]any{}}, &notOK, LevelWarning, msg)}, true

	case "item.started":
		return p.dispatchItem(PhaseStarted, getMap(v, "item")), true
	case "item.updated":
		return p.dispatchItem(PhaseUpdated, getMap(v, "item")), true
	case "item.completed":
		return p.dispatchItem(PhaseCompleted, getMap(v, "item")), true

	default:
		return nil, false
	}
}

// dispatchItem handles the item.type sub-dispatch. Items without an id are
// dropped, except agent_message, which carries its text directly and has
// no id worth tracking.
func (p *CodexParser) dispatchItem(phase ActionPhase, item map[string]any) []Event {
	if item == nil {
		return nil
	}
	itemType := getString(item, "type")
	id := getString(item, "id")
	if id == "" && itemType != "agent_message" {
		return nil
	}

	switch itemType {
	case "agent_message":
		text := getString(item, "text")
		p.lastAnswer = text
		return []Event{message(EngineCodex, text)}

	case "command_execution":
		status := getString(item, "status")
		exitCode := getIntPtr(item, "exit_code")
		detail := map[string]any{"status": status}
		if exitCode != nil {
			detail["exit_code"] = *exitCode
		}
		var okPtr *bool
		if phase == PhaseCompleted {
			ok := status == "completed" && (exitCode == nil || *exitCode == 0)
			okPtr = &ok
		}
		a := Action{ID: id, Kind: KindCommand, Title: getString(item, "command"), Detail: detail}
		return []Event{action(EngineCodex, phase, a, okPtr, "", "")}

	case "mcp_tool_call":
		title := getString(item, "server") + "." + getString(item, "tool")
		detail := map[string]any{}
		var okPtr *bool
		if phase == PhaseCompleted {
			status := getString(item, "status")
			errMsg := getString(item, "error")
			if errMsg != "" {
				detail["error_message"] = errMsg
			}
			if result := getMap(item, "result"); result != nil {
				summary := map[string]any{"content_blocks": len(getSlice(result, "content"))}
				if _, hasStruct := result["structured_content"]; hasStruct {
					summary["has_structured"] = true
				}
				detail["result_summary"] = summary
			}
			ok := status == "completed" && errMsg == ""
			okPtr = &ok
		}
		a := Action{ID: id, Kind: KindTool, Title: title, Detail: detail}
		return []Event{action(EngineCodex, phase, a, okPtr, "", "")}

	case "web_search":
		var okPtr *bool
		if phase == PhaseCompleted {
			ok := getString(item, "status") == "completed"
			okPtr = &ok
		}
		a := Action{ID: id, Kind: KindWebSearch, Title: getString(item, "query"), Detail: map[string]any{}}
		return []Event{action(EngineCodex, phase, a, okPtr, "", "")}

	case "file_change":
		if phase != PhaseCompleted {
			return nil
		}
		rawChanges := getSlice(item, "changes")
		var paths []string
		changes := make([]map[string]any, 0, len(rawChanges))
		for _, raw := range rawChanges {
			cm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			entry := map[string]any{"path": getString(cm, "path")}
			if kind := getString(cm, "kind"); kind != "" {
				entry["kind"] = kind
			}
			changes = append(changes, entry)
			if path := getString(cm, "path"); path != "" {
				paths = append(paths, path)
			}
		}
		title := fmt.Sprintf("%d files", len(rawChanges))
		if len(paths) > 0 {
			title = joinComma(paths)
		}
		ok := getString(item, "status") == "completed"
		a := Action{ID: id, Kind: KindFileChange, Title: title, Detail: map[string]any{"changes": changes}}
		return []Event{action(EngineCodex, PhaseCompleted, a, &ok, "", "")}

	case "todo_list":
		todos := getSlice(item, "items")
		done, nextPending := 0, ""
		for _, raw := range todos {
			tm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if getBool(tm, "completed") {
				done++
			} else if nextPending == "" {
				nextPending = getString(tm, "text")
			}
		}
		total := len(todos)
		var title string
		switch {
		case total == 0:
			title = "todo"
		case done == total:
			title = fmt.Sprintf("todo %d/%d: done", done, total)
		default:
			title = fmt.Sprintf("todo %d/%d: %s", done, total, nextPending)
		}
		a := Action{ID: id, Kind: KindTodo, Title: title, Detail: map[string]any{"done": done, "total": total}}
		return []Event{action(EngineCodex, phase, a, nil, "", "")}

	case "reasoning":
		a := Action{ID: id, Kind: KindNote, Title: getString(item, "text"), Detail: map[string]any{}}
		return []Event{action(EngineCodex, phase, a, nil, "", "")}

	case "error":
		msg := getString(item, "message")
		notOK := false
		a := Action{ID: id, Kind: KindWarning, Title: msg, Detail: map[string]any{}}
		return []Event{action(EngineCodex, PhaseCompleted, a, &notOK, LevelWarning, msg)}

	default:
		return nil
	}
}

func joinComma(items []string) string {
	out := items[0]
	for _, s := range items[1:] {
		out += ", " + s
	}
	return out
}
