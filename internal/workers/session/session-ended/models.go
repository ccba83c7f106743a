package sessionended

// inputSchema accepts numeric ids from older process definitions as well
// as string ids.
const inputSchema = `{
  "type": "object",
  "required": ["sessionId"],
  "properties": {
    "sessionId": {
      "oneOf": [
        {"type": "string", "minLength": 1, "pattern": "\\S"},
        {"type": "integer", "minimum": 1}
      ]
    },
    "metadata": {"type": "object"}
  }
}`

type Input struct {
	SessionID string                 `json:"sessionId"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	Accepted  bool   `json:"accepted"`
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}
