package hook

import (
	"encoding/json"
	"strings"
)

// replayEnvelope is the wire shape for Pipeline.Serialize/Deserialize.
// Replayable internal-only fields (none currently tracked on Context beyond
// its public fields) are never included.
type replayEnvelope struct {
	Point         Point                      `json:"point"`
	ComponentID   ComponentID                `json:"component_id"`
	Language      string                     `json:"language"`
	CorrelationID string                     `json:"correlation_id"`
	Data          map[string]json.RawMessage `json:"data"`
	Metadata      map[string]string          `json:"metadata"`
}

// Serialize implements spec.md §4.4's pipeline-level replay: redact
// sensitive keys (defaultSensitiveNames, the set a default SecurityConfig
// starts from; a SecurityHook's own configured names are not consulted)
// before encoding.
// Replay is by-hook opt-in (ReplayableHook), but the redaction rule applies
// uniformly at the pipeline boundary so no hook can accidentally leak a
// secret into a replay log.
func (p *Pipeline) Serialize(ctx *Context) ([]byte, error) {
	redacted := make(map[string]json.RawMessage, len(ctx.Data))
	for k, v := range ctx.Data {
		if isSensitiveKey(k) {
			redacted[k] = json.RawMessage(`"***REDACTED***"`)
			continue
		}
		redacted[k] = v
	}
	return json.Marshal(replayEnvelope{
		Point: ctx.Point, ComponentID: ctx.ComponentID, Language: ctx.Language,
		CorrelationID: ctx.CorrelationID, Data: redacted, Metadata: ctx.Metadata,
	})
}

// Deserialize re-inflates a Context from a prior Serialize call.
func (p *Pipeline) Deserialize(data []byte) (*Context, error) {
	var env replayEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &Context{
		Point: env.Point, ComponentID: env.ComponentID, Language: env.Language,
		CorrelationID: env.CorrelationID, Data: env.Data, Metadata: env.Metadata,
	}, nil
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, n := range defaultSensitiveNames {
		if lower == n {
			return true
		}
	}
	return false
}
