package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"

	"github.com/alimatrix/alimatrix/internal/form"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://alimatrix.pl/schemas/"

// Result is the outcome of validating one step or a whole submission.
// Data holds the answers after blank removal and numeric coercion; it is
// what callers should persist.
type Result struct {
	Valid  bool
	Errors map[string]string
	Data   form.FormData
}

// Validator holds the compiled schema of every step. It is safe for
// concurrent use.
type Validator struct {
	schemas map[form.StepID]*jsonschema.Schema
}

// New compiles the embedded step schemas. A step without a schema is an
// error.
func New() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	v := &Validator{schemas: make(map[form.StepID]*jsonschema.Schema)}
	for _, s := range form.Steps() {
		raw, err := schemaFS.ReadFile("schemas/" + string(s.ID) + ".json")
		if err != nil {
			return nil, fmt.Errorf("schema for step %s: %w", s.ID, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", s.ID, err)
		}
		url := schemaBase + string(s.ID) + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", s.ID, err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", s.ID, err)
		}
		v.schemas[s.ID] = sch
	}
	return v, nil
}

// Validate checks the answers of one step. Keys the step does not own are
// ignored and do not appear in Result.Data.
func (v *Validator) Validate(id form.StepID, answers form.FormData) (Result, error) {
	step, ok := form.Lookup(id)
	if !ok {
		return Result{}, fmt.Errorf("unknown step %q", id)
	}
	data := prepare(answers.Pick(step.Fields), step.Numeric)
	errs, err := v.check(id, data)
	if err != nil {
		return Result{}, err
	}
	return Result{Valid: len(errs) == 0, Errors: errs, Data: data}, nil
}

// ValidateSubmission checks a whole draft. The contact section is always
// validated; any other section only when at least one of its fields is
// present. Keys no step owns are dropped from Result.Data, as is a cached
// branch that does not parse.
func (v *Validator) ValidateSubmission(data form.FormData) (Result, error) {
	var numeric []string
	for _, s := range form.Steps() {
		numeric = append(numeric, s.Numeric...)
	}
	clean := prepare(data.Pick(form.Fields()), numeric)
	if _, ok := form.ParseBranch(clean.String(form.FieldWariant)); !ok {
		delete(clean, form.FieldWariant)
	}

	out := Result{Errors: map[string]string{}, Data: clean}
	for _, s := range form.Steps() {
		if s.ID != form.StepKontakt && !clean.AnyOf(s.Fields) {
			continue
		}
		errs, err := v.check(s.ID, clean.Pick(s.Fields))
		if err != nil {
			return Result{}, err
		}
		for f, msg := range errs {
			if _, seen := out.Errors[f]; !seen {
				out.Errors[f] = msg
			}
		}
	}
	out.Valid = len(out.Errors) == 0
	return out, nil
}

func (v *Validator) check(id form.StepID, data form.FormData) (map[string]string, error) {
	sch, ok := v.schemas[id]
	if !ok {
		return nil, fmt.Errorf("no schema for step %q", id)
	}
	// Round-trip through JSON so the validator sees json.Number and
	// []any/map[string]any only.
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}

	errs := map[string]string{}
	if err := sch.Validate(inst); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return nil, fmt.Errorf("validate %s: %w", id, err)
		}
		collect(ve, errs)
	}
	return errs, nil
}

// collect flattens the error tree into field -> message, keeping the first
// message reported for each field.
func collect(ve *jsonschema.ValidationError, out map[string]string) {
	if len(ve.Causes) > 0 {
		for _, c := range ve.Causes {
			collect(c, out)
		}
		return
	}
	loc := strings.Join(ve.InstanceLocation, ".")
	if req, ok := ve.ErrorKind.(*kind.Required); ok {
		for _, m := range req.Missing {
			add(out, join(loc, m), msgRequired)
		}
		return
	}
	add(out, loc, message(ve.ErrorKind))
}

func add(out map[string]string, field, msg string) {
	if field == "" {
		field = "_"
	}
	if _, seen := out[field]; !seen {
		out[field] = msg
	}
}

func join(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

// prepare returns a deep copy of data with blank strings removed and the
// numeric paths coerced from strings where they parse.
func prepare(data form.FormData, numeric []string) form.FormData {
	out, _ := clean(map[string]any(data)).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	for _, p := range numeric {
		coerce(out, strings.Split(p, "."))
	}
	return form.FormData(out)
}

func clean(v any) any {
	switch x := v.(type) {
	case form.FormData:
		return clean(map[string]any(x))
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			if val == nil {
				continue
			}
			m[k] = clean(val)
		}
		return m
	case []any:
		l := make([]any, len(x))
		for i, val := range x {
			l[i] = clean(val)
		}
		return l
	case []map[string]any:
		l := make([]any, len(x))
		for i, val := range x {
			l[i] = clean(val)
		}
		return l
	default:
		return v
	}
}

func coerce(v any, path []string) {
	if len(path) == 0 {
		return
	}
	switch x := v.(type) {
	case map[string]any:
		val, ok := x[path[0]]
		if !ok {
			return
		}
		if len(path) == 1 {
			if s, isStr := val.(string); isStr {
				f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
					x[path[0]] = f
				}
			}
			return
		}
		coerce(val, path[1:])
	case []any:
		if path[0] != "*" {
			return
		}
		for _, el := range x {
			coerce(el, path[1:])
		}
	}
}
