package messages

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://benefits.schemas.local/logistics/"

var schemaFiles = map[enums.LogisticsMessageType]string{
	enums.LogisticsMessageInboundReceipt:    "inbound_receipt.json",
	enums.LogisticsMessageOrderStatusChange: "order_status_change.json",
	enums.LogisticsMessageShipOrder:         "ship_order.json",
}

var (
	compileOnce sync.Once
	compiled    map[enums.LogisticsMessageType]*jsonschema.Schema
	compileErr  error
)

func loadSchemas() (map[enums.LogisticsMessageType]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		out := make(map[enums.LogisticsMessageType]*jsonschema.Schema, len(schemaFiles))
		for messageType, file := range schemaFiles {
			raw, err := schemaFS.ReadFile("schemas/" + file)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", file, err)
				return
			}
			url := schemaBaseURL + file
			if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("load schema %s: %w", file, err)
				return
			}
			schema, err := c.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", file, err)
				return
			}
			out[messageType] = schema
		}
		compiled = out
	})
	return compiled, compileErr
}

// Validate checks raw against the structural schema of messageType. Any
// mismatch, including an unknown type or invalid JSON, is a MalformedMessage.
func Validate(messageType enums.LogisticsMessageType, raw []byte) error {
	schemas, err := loadSchemas()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load logistics message schemas")
	}
	schema, ok := schemas[messageType]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeMalformedMessage, fmt.Sprintf("unknown message type %q", messageType))
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeMalformedMessage, err, "message body is not valid json")
	}
	if err := schema.Validate(doc); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeMalformedMessage, err, fmt.Sprintf("%s message failed validation", messageType)).
			WithDetails(map[string]any{"message_type": messageType.String()})
	}
	return nil
}
