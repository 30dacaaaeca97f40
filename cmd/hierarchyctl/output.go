package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/services"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

type commandOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func (e *cliEnv) write(out commandOutput) error {
	format := formatJSON
	if e.output != nil && *e.output != "" {
		format = *e.output
	}
	return encodeOutput(os.Stdout, format, out)
}

// encodeOutput writes v as indented JSON or as YAML. YAML keys follow the
// json tags, so both formats carry the same field names.
func encodeOutput(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case formatYAML:
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return withCode(exitValidation, fmt.Errorf("unsupported --output %q (want json or yaml)", format))
	}
}

// serviceErr gives validation failures their own exit code.
func serviceErr(err error) error {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		return withCode(exitValidation, err)
	}
	return withCode(exitDB, err)
}
