package gateway

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaRegistry lazily compiles the request envelope schema and one
// params schema per method, grounded on the teacher's ws_schema.go.
type schemaRegistry struct {
	once    sync.Once
	initErr error
	request *jsonschema.Schema
	methods map[string]*jsonschema.Schema
}

var schemas schemaRegistry

func initSchemas() error {
	schemas.once.Do(func() {
		reqSchema, err := jsonschema.CompileString("request", requestSchema)
		if err != nil {
			schemas.initErr = err
			return
		}
		schemas.request = reqSchema

		methods := map[string]string{
			"connect": connectParamsSchema,
			"health":  emptyParamsSchema,
			"status":  emptyParamsSchema,
			"send":    sendParamsSchema,
			"agent":   agentParamsSchema,
		}
		schemas.methods = make(map[string]*jsonschema.Schema, len(methods))
		for name, schema := range methods {
			compiled, err := jsonschema.CompileString("method_"+name, schema)
			if err != nil {
				schemas.initErr = err
				return
			}
			schemas.methods[name] = compiled
		}
	})
	return schemas.initErr
}

// validateRequestFrame checks the raw frame against the request envelope
// schema, then the method-specific params schema if one is registered.
func validateRequestFrame(raw []byte, frame *RequestFrame) error {
	if err := initSchemas(); err != nil {
		return err
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if err := schemas.request.Validate(payload); err != nil {
		return err
	}
	if frame == nil {
		return fmt.Errorf("missing frame")
	}
	schema, ok := schemas.methods[frame.Method]
	if !ok {
		return nil
	}
	var params any
	if len(frame.Params) == 0 {
		params = map[string]any{}
	} else if err := json.Unmarshal(frame.Params, &params); err != nil {
		return err
	}
	return schema.Validate(params)
}

const requestSchema = `{
  "type": "object",
  "required": ["type", "id", "method"],
  "properties": {
    "type": { "const": "req" },
    "id": { "type": "string", "minLength": 1 },
    "method": { "type": "string", "minLength": 1 },
    "params": {}
  },
  "additionalProperties": true
}`

const connectParamsSchema = `{
  "type": "object",
  "required": ["role"],
  "properties": {
    "minProtocol": { "type": "integer", "minimum": 1 },
    "maxProtocol": { "type": "integer", "minimum": 1 },
    "client": {
      "type": "object",
      "properties": {
        "id": { "type": "string" },
        "version": { "type": "string" },
        "platform": { "type": "string" },
        "mode": { "type": "string" }
      },
      "additionalProperties": true
    },
    "role": { "type": "string", "minLength": 1 },
    "scopes": {
      "type": "array",
      "items": { "type": "string" }
    },
    "auth": {
      "type": "object",
      "properties": {
        "token": { "type": "string" },
        "deviceToken": { "type": "string" }
      },
      "additionalProperties": true
    },
    "device": {
      "type": "object",
      "required": ["id", "publicKey", "signature", "signedAt", "nonce"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "publicKey": { "type": "string", "minLength": 1 },
        "signature": { "type": "string", "minLength": 1 },
        "signedAt": { "type": "integer" },
        "nonce": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": true
    }
  },
  "additionalProperties": true
}`

const emptyParamsSchema = `{
  "type": "object",
  "additionalProperties": true
}`

const sendParamsSchema = `{
  "type": "object",
  "required": ["channelId", "conversationId", "message"],
  "properties": {
    "channelId": { "type": "string", "minLength": 1 },
    "conversationId": { "type": "string", "minLength": 1 },
    "message": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": true
}`

const agentParamsSchema = `{
  "type": "object",
  "required": ["message"],
  "properties": {
    "sessionId": { "type": "string" },
    "message": { "type": "string", "minLength": 1 },
    "backend": { "type": "string", "enum": ["ollama", "lmstudio"] },
    "model": { "type": "string" }
  },
  "additionalProperties": true
}`
