// Package prompt runs completion prompts whose structured output is
// validated locally, with one repair round trip when validation fails.
package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
)

// Outcome classifies a prompt execution for metrics.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeRepaired     Outcome = "repaired"
	OutcomeInvalidInput Outcome = "invalid_input"
	OutcomeSchemaError  Outcome = "schema_error"
	OutcomeServiceError Outcome = "service_error"
)

// Observer receives one call per execution.
type Observer interface {
	ObservePrompt(name string, outcome Outcome, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObservePrompt(string, Outcome, time.Duration) {}

const repairTemplate = "The AI response had the following errors: %s. Please fix them and provide the response in the correct format. Respond with JSON only."

// Definition describes a prompt over input type In.
type Definition[In any] struct {
	Name   string
	System string
	// Template is text/template source rendered with the input.
	Template string
	// Media returns the binary parts sent with the rendered text, if any.
	Media  func(In) []outbound.Media
	Schema outbound.OutputSchema
}

// Option configures a Prompt.
type Option func(*options)

type options struct {
	observer Observer
	tracer   trace.Tracer
}

// WithObserver reports executions to o.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		if o != nil {
			opts.observer = o
		}
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(opts *options) {
		opts.tracer = t
	}
}

// Prompt executes a Definition and decodes the result into Out.
type Prompt[In, Out any] struct {
	def        Definition[In]
	tmpl       *template.Template
	completion outbound.CompletionService
	validate   *validator.Validate
	observer   Observer
	tracer     trace.Tracer
	logger     *zap.Logger
}

// New parses the definition template and returns a ready prompt.
func New[In, Out any](
	def Definition[In],
	completion outbound.CompletionService,
	validate *validator.Validate,
	logger *zap.Logger,
	opts ...Option,
) (*Prompt[In, Out], error) {
	tmpl, err := template.New(def.Name).Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(def.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s: %w", def.Name, err)
	}

	o := options{
		observer: nopObserver{},
		tracer:   otel.Tracer("github.com/alchemorsel/pantrychef/prompt"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Prompt[In, Out]{
		def:        def,
		tmpl:       tmpl,
		completion: completion,
		validate:   validate,
		observer:   o.observer,
		tracer:     o.tracer,
		logger:     logger.Named("prompt").With(zap.String("prompt", def.Name)),
	}, nil
}

// Name returns the prompt name.
func (p *Prompt[In, Out]) Name() string {
	return p.def.Name
}

// Execute validates in, calls the completion service and returns the
// validated output. The service is called at most twice: once for the
// prompt and once more to repair an invalid answer.
func (p *Prompt[In, Out]) Execute(ctx context.Context, in In) (out Out, err error) {
	ctx, span := p.tracer.Start(ctx, "prompt."+p.def.Name)
	start := time.Now()
	outcome := OutcomeSuccess

	defer func() {
		span.SetAttributes(attribute.String("prompt.outcome", string(outcome)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(outcome))
		}
		span.End()
		p.observer.ObservePrompt(p.def.Name, outcome, time.Since(start))
	}()

	if verr := p.validate.Struct(in); verr != nil {
		outcome = OutcomeInvalidInput
		return out, apperrors.FromValidator(verr)
	}

	text, err := p.render(in)
	if err != nil {
		outcome = OutcomeInvalidInput
		return out, apperrors.NewInternalError("failed to render prompt").WithCause(err)
	}

	var media []outbound.Media
	if p.def.Media != nil {
		media = p.def.Media(in)
	}

	messages := []outbound.Message{{Role: outbound.RoleUser, Text: text, Media: media}}

	raw, err := p.complete(ctx, messages)
	if err != nil {
		outcome = OutcomeServiceError
		return out, err
	}

	out, schemaErr := p.parse(raw)
	if schemaErr == nil {
		return out, nil
	}

	p.logger.Warn("Completion failed schema validation, requesting repair", zap.Error(schemaErr))
	span.AddEvent("repair", trace.WithAttributes(attribute.String("prompt.schema_error", schemaErr.Error())))

	messages = append(messages,
		outbound.Message{Role: outbound.RoleAssistant, Text: raw},
		outbound.Message{Role: outbound.RoleUser, Text: fmt.Sprintf(repairTemplate, schemaErr.Error())},
	)

	raw, err = p.complete(ctx, messages)
	if err != nil {
		outcome = OutcomeServiceError
		return out, err
	}

	out, schemaErr = p.parse(raw)
	if schemaErr != nil {
		outcome = OutcomeSchemaError
		p.logger.Error("Repaired completion still failed schema validation", zap.Error(schemaErr))
		var zero Out
		return zero, apperrors.NewSchemaError(schemaErr.Error(), schemaErr).
			WithMetadata("prompt", p.def.Name)
	}

	outcome = OutcomeRepaired
	p.logger.Info("Completion repaired")
	return out, nil
}

func (p *Prompt[In, Out]) render(in In) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, in); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func (p *Prompt[In, Out]) complete(ctx context.Context, messages []outbound.Message) (string, error) {
	raw, err := p.completion.Complete(ctx, outbound.CompletionRequest{
		Name:     p.def.Name,
		System:   p.def.System,
		Messages: messages,
		Schema:   p.def.Schema,
	})
	if err != nil {
		p.logger.Error("Completion service call failed", zap.Error(err))
		return "", apperrors.NewExternalServiceError("completion service", err).
			WithMetadata("prompt", p.def.Name)
	}
	return raw, nil
}

// parse decodes raw into Out and validates it.
func (p *Prompt[In, Out]) parse(raw string) (Out, error) {
	var out Out

	payload := ExtractJSON(raw)
	if payload == "" {
		return out, errors.New("response did not contain a JSON value")
	}

	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return out, fmt.Errorf("response does not match the expected shape: %v", err)
	}

	if err := p.check(reflect.ValueOf(&out).Elem(), ""); err != nil {
		return out, err
	}
	return out, nil
}

// check validates structs found at the top level, behind pointers or in
// slices. A nil slice or pointer means the value was missing.
func (p *Prompt[In, Out]) check(v reflect.Value, path string) error {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return fmt.Errorf("%svalue is required", prefix(path))
		}
		return p.check(v.Elem(), path)
	case reflect.Slice:
		if v.IsNil() {
			return fmt.Errorf("%sexpected an array", prefix(path))
		}
		for i := 0; i < v.Len(); i++ {
			if err := p.check(v.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		if err := p.validate.Struct(v.Interface()); err != nil {
			return fmt.Errorf("%s%s", prefix(path), describe(err))
		}
		return nil
	default:
		return nil
	}
}

func prefix(path string) string {
	if path == "" {
		return ""
	}
	return path + ": "
}

func describe(err error) string {
	if appErr := apperrors.FromValidator(err); appErr != nil && appErr.Details != "" {
		return appErr.Details
	}
	return err.Error()
}

// ExtractJSON returns the JSON value embedded in a model response, dropping
// markdown code fences and any prose around the value.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}

	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return ""
	}
	return s[start : end+1]
}
