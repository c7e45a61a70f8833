package normalizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestCodexThreadStarted(t *testing.T) {
	p := New(EngineCodex)
	events, ok := p.Parse([]byte(`{"type":"thread.started","thread_id":"t1"}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, EngineCodex, events[0].Engine)
	assert.Equal(t, "t1", events[0].Resume)
	assert.Equal(t, "Codex", events[0].Title)
}

func TestCodexCommandCompletion(t *testing.T) {
	p := New(EngineCodex)

	_, ok := p.ParseValue(decode(t, `{"type":"turn.started"}`))
	require.True(t, ok)

	events, ok := p.ParseValue(decode(t, `{"type":"item.completed","item":{"type":"command_execution","id":"c1","command":"ls","status":"completed","exit_code":0}}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, EventAction, events[0].Type)
	assert.Equal(t, PhaseCompleted, events[0].Phase)
	assert.Equal(t, "c1", events[0].ActionV.ID)
	assert.Equal(t, KindCommand, events[0].ActionV.Kind)
	assert.Equal(t, "ls", events[0].ActionV.Title)
	require.NotNil(t, events[0].OK)
	assert.True(t, *events[0].OK)

	events, ok = p.ParseValue(decode(t, `{"type":"turn.completed","usage":{"input_tokens":10}}`))
	require.True(t, ok)
	require.Len(t, events, 2)

	turnDone := events[0]
	assert.Equal(t, EventAction, turnDone.Type)
	assert.Equal(t, KindTurn, turnDone.ActionV.Kind)
	assert.Equal(t, "turn:0", turnDone.ActionV.ID)
	require.NotNil(t, turnDone.OK)
	assert.True(t, *turnDone.OK)

	done := events[1]
	assert.Equal(t, EventCompleted, done.Type)
	assert.Equal(t, EngineCodex, done.Engine)
	require.NotNil(t, done.OK)
	assert.True(t, *done.OK)
	assert.Equal(t, float64(10), done.Usage["input_tokens"])
}

func TestCodexTurnFailedCarriesLastAnswer(t *testing.T) {
	p := New(EngineCodex)
	_, _ = p.ParseValue(decode(t, `{"type":"thread.started","thread_id":"t9"}`))
	_, _ = p.ParseValue(decode(t, `{"type":"item.completed","item":{"type":"agent_message","text":"partial answer"}}`))

	events, ok := p.ParseValue(decode(t, `{"type":"turn.failed","error":{"message":"boom"}}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, EventCompleted, events[0].Type)
	require.NotNil(t, events[0].OK)
	assert.False(t, *events[0].OK)
	assert.Equal(t, "partial answer", events[0].Answer)
	assert.Equal(t, "boom", events[0].Error)
	assert.Equal(t, "t9", events[0].Resume)
}

func TestCodexEmptyErrorIsRecognizedButEmpty(t *testing.T) {
	p := New(EngineCodex)
	events, ok := p.Parse([]byte(`{"type":"error"}`))
	require.True(t, ok)
	assert.Empty(t, events)
}

func TestCodexTodoListTitles(t *testing.T) {
	p := New(EngineCodex)
	events, ok := p.ParseValue(decode(t, `{"type":"item.started","item":{"type":"todo_list","id":"td1","items":[{"completed":true,"text":"a"},{"completed":false,"text":"b"}]}}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, "todo 1/2: b", events[0].ActionV.Title)

	events, ok = p.ParseValue(decode(t, `{"type":"item.completed","item":{"type":"todo_list","id":"td1","items":[{"completed":true,"text":"a"}]}}`))
	require.True(t, ok)
	assert.Equal(t, "todo 1/1: done", events[0].ActionV.Title)
}

func TestCodexItemWithoutIDDropped(t *testing.T) {
	p := New(EngineCodex)
	events, ok := p.ParseValue(decode(t, `{"type":"item.started","item":{"type":"command_execution","command":"ls"}}`))
	require.True(t, ok)
	assert.Empty(t, events)
}

func TestClaudeInit(t *testing.T) {
	p := New(EngineClaude)
	events, ok := p.Parse([]byte(`{"type":"system","subtype":"init","session_id":"s1","model":"sonnet","cwd":"/r"}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, "s1", events[0].Resume)
	assert.Equal(t, "sonnet", events[0].Title)
	assert.Equal(t, "/r", events[0].Meta["cwd"])
	assert.Equal(t, "sonnet", events[0].Meta["model"])
}

func TestClaudeEditRoundTrip(t *testing.T) {
	p := New(EngineClaude)

	events, ok := p.Parse([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"u1","name":"Edit","input":{"file_path":"a.txt"}}]}}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, PhaseStarted, events[0].Phase)
	assert.Equal(t, KindFileChange, events[0].ActionV.Kind)
	assert.Equal(t, "a.txt", events[0].ActionV.Title)

	events, ok = p.Parse([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_result","tool_use_id":"u1","content":"ok","is_error":false}]}}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, PhaseCompleted, events[0].Phase)
	require.NotNil(t, events[0].OK)
	assert.True(t, *events[0].OK)
	assert.Equal(t, "ok", events[0].ActionV.Detail["result_preview"])
	assert.Equal(t, 2, events[0].ActionV.Detail["result_len"])
}

func TestClaudeUnmatchedToolResultFabricatesMinimalAction(t *testing.T) {
	p := New(EngineClaude)
	events, ok := p.Parse([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_result","tool_use_id":"ghost","content":"late","is_error":false}]}}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, PhaseCompleted, events[0].Phase)
	assert.Equal(t, "ghost", events[0].ActionV.ID)
}

func TestClaudeUnmatchedToolUseOnlyStarts(t *testing.T) {
	p := New(EngineClaude)
	events, ok := p.Parse([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"u2","name":"Bash","input":{"command":"echo hi"}}]}}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, PhaseStarted, events[0].Phase)
	assert.Equal(t, KindCommand, events[0].ActionV.Kind)
	assert.Equal(t, "echo hi", events[0].ActionV.Title)
}

func TestClaudeTodoWrite(t *testing.T) {
	p := New(EngineClaude)
	events, ok := p.Parse([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"TodoWrite","input":{"todos":[{"status":"completed"},{"status":"in_progress","activeForm":"Running tests"},{"status":"pending"}]}}]}}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, KindTodo, events[0].ActionV.Kind)
	assert.Equal(t, "todo 1/3: Running tests", events[0].ActionV.Title)
}

func TestClaudeResult(t *testing.T) {
	p := New(EngineClaude)
	_, _ = p.Parse([]byte(`{"type":"system","subtype":"init","session_id":"s5"}`))
	events, ok := p.Parse([]byte(`{"type":"result","is_error":false,"result":"all done","usage":{"output_tokens":5}}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, EventCompleted, events[0].Type)
	require.NotNil(t, events[0].OK)
	assert.True(t, *events[0].OK)
	assert.Equal(t, "all done", events[0].Answer)
	assert.Equal(t, "s5", events[0].Resume)
	assert.Equal(t, float64(5), events[0].Usage["output_tokens"])
}

func TestClaudeTextAccumulationJoinsWithNewline(t *testing.T) {
	p := New(EngineClaude)
	events, ok := p.Parse([]byte(`{"type":"assistant","message":{"content":[{"type":"text","text":"hello"},{"type":"text","text":"world"}]}}`))
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, EventMessage, events[0].Type)
	assert.Equal(t, "hello\nworld", events[0].Text)
}

// TestActionKindIsAlwaysFromFixedSet checks property 4: agent.action kind
// is always one of the nine fixed values.
func TestActionKindIsAlwaysFromFixedSet(t *testing.T) {
	valid := map[ActionKind]bool{
		KindTurn: true, KindCommand: true, KindTool: true, KindWebSearch: true,
		KindFileChange: true, KindNote: true, KindWarning: true, KindTodo: true,
		KindSubagent: true,
	}
	p := New(EngineClaude)
	lines := []string{
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"a","name":"Read","input":{"file_path":"x"}}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"b","name":"Task","input":{"name":"sub"}}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"thinking","thinking":"hmm"}]}}`,
	}
	for _, line := range lines {
		events, ok := p.Parse([]byte(line))
		require.True(t, ok)
		for _, e := range events {
			if e.Type == EventAction {
				assert.True(t, valid[e.ActionV.Kind], "unexpected kind %q", e.ActionV.Kind)
			}
		}
	}
}

// TestParserStateFullyCapturedByInstance checks property 6: feeding a
// stream line-by-line through one parser yields the same events as
// feeding the remaining lines one at a time through a fresh parser that
// was first fed the earlier lines -- i.e. there is no hidden state beyond
// the parser struct itself.
func TestParserStateFullyCapturedByInstance(t *testing.T) {
	lines := []string{
		`{"type":"thread.started","thread_id":"tX"}`,
		`{"type":"turn.started"}`,
		`{"type":"item.completed","item":{"type":"agent_message","text":"hi"}}`,
		`{"type":"turn.completed","usage":{}}`,
	}

	whole := New(EngineCodex)
	var wholeEvents []Event
	for _, line := range lines {
		events, _ := whole.Parse([]byte(line))
		wholeEvents = append(wholeEvents, events...)
	}

	staged := New(EngineCodex)
	var stagedEvents []Event
	for _, line := range lines[:2] {
		events, _ := staged.Parse([]byte(line))
		stagedEvents = append(stagedEvents, events...)
	}
	fresh := New(EngineCodex)
	fresh.codex = staged.codex // same captured state, new instance
	for _, line := range lines[2:] {
		events, _ := fresh.Parse([]byte(line))
		stagedEvents = append(stagedEvents, events...)
	}

	assert.Equal(t, wholeEvents, stagedEvents)
}
