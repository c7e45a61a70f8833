package normalizer

import "encoding/json"

// Parser wraps one engine-specific parser behind the uniform interface the
// Supervisor's output pump drives: feed it decoded JSON values from a
// single agent session's stdout, in order, and get back uniform events.
// A Parser is bound to one engine for its whole lifetime -- the Supervisor
// already knows which vendor CLI it spawned, so there is no per-line
// engine sniffing across the two schemas.
type Parser struct {
	engine Engine
	codex  *CodexParser
	claude *ClaudeParser
}

// New constructs a Parser for the given engine. Unknown engines fall back
// to an idle parser that recognizes nothing, leaving room for engines
// whose stdout has no structured schema yet.
func New(engine Engine) *Parser {
	p := &Parser{engine: engine}
	switch engine {
	case EngineCodex:
		p.codex = NewCodexParser()
	case EngineClaude:
		p.claude = NewClaudeParser()
	}
	return p
}

// Parse decodes one line of vendor stdout as JSON and dispatches it. It
// returns (nil, false) for non-JSON lines and for JSON values the bound
// engine's schema does not recognize; both cases leave it to the caller
// whether to forward the raw line as an opaque event.
func (p *Parser) Parse(line []byte) ([]Event, bool) {
	var v map[string]any
	if err := json.Unmarshal(line, &v); err != nil {
		return nil, false
	}
	return p.ParseValue(v)
}

// ParseLine is an alias for Parse, named to match the decode-then-dispatch
// split the vendor parser this package is modeled on exposes.
func (p *Parser) ParseLine(line []byte) ([]Event, bool) {
	return p.Parse(line)
}

// ParseValue dispatches an already-decoded JSON object.
func (p *Parser) ParseValue(v map[string]any) ([]Event, bool) {
	switch {
	case p.codex != nil:
		return p.codex.Parse(v)
	case p.claude != nil:
		return p.claude.Parse(v)
	default:
		return nil, false
	}
}
