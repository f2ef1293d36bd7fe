package toolbox

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const dateLayout = "2006-01-02"

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Request struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

type Response struct {
	Status  string `json:"status"`
	Payload any    `json:"payload,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

func okResponse(payload any) Response {
	return Response{Status: StatusOK, Payload: payload}
}

func errResponse(kind Kind, message string) Response {
	return Response{Status: StatusError, Kind: kind, Message: message}
}

// Dispatcher validates requests against the registered definitions, invokes
// the handlers and folds every outcome into a Response. Nothing a handler
// does, a panic included, escapes Dispatch.
type Dispatcher struct {
	registry *Registry
	tracer   trace.Tracer
}

func NewDispatcher(registry *Registry, tracer trace.Tracer) *Dispatcher {
	if tracer == nil {
		tracer = trace.NewNoopTracerProvider().Tracer("toolbox")
	}
	return &Dispatcher{registry: registry, tracer: tracer}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	ctx, span := d.tracer.Start(ctx, "toolbox.dispatch")
	span.SetAttributes(attribute.String("tool.name", req.Tool))
	defer span.End()

	def, err := d.registry.Lookup(strings.TrimSpace(req.Tool))
	if err != nil {
		return d.failure(span, err)
	}

	args, verr := coerceArgs(def.Params, req.Params)
	if verr != nil {
		return d.failure(span, verr)
	}

	payload, err := d.invoke(ctx, def, args)
	if err != nil {
		return d.failure(span, err)
	}
	return okResponse(payload)
}

func (d *Dispatcher) failure(span trace.Span, err error) Response {
	span.RecordError(err)

	var terr *Error
	if errors.As(err, &terr) {
		return errResponse(terr.Kind, terr.Message)
	}
	return errResponse(KindUpstreamError, err.Error())
}

func (d *Dispatcher) invoke(ctx context.Context, def *Definition, args Args) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Errorf(KindUpstreamError, "tool %q panicked: %v", def.Name, r)
		}
	}()
	return def.Handler(ctx, args)
}

func coerceArgs(params []Param, raw map[string]any) (Args, error) {
	args := make(Args, len(params))
	for _, p := range params {
		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, Errorf(KindInvalidParameters, "missing required parameter %q (%s)", p.Name, p.Type.label())
			}
			continue
		}
		coerced, err := coerceValue(p, v)
		if err != nil {
			return nil, err
		}
		args[p.Name] = coerced
	}
	return args, nil
}

func coerceValue(p Param, v any) (any, error) {
	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, typeError(p)
		}
		return strings.TrimSpace(s), nil

	case TypeStringList:
		switch val := v.(type) {
		case string:
			list := splitList(val)
			if len(list) == 0 {
				return nil, typeError(p)
			}
			return list, nil
		case []string:
			list := trimList(val)
			if list == nil {
				return nil, typeError(p)
			}
			return list, nil
		case []any:
			strs := make([]string, 0, len(val))
			for _, item := range val {
				s, ok := item.(string)
				if !ok {
					return nil, typeError(p)
				}
				strs = append(strs, s)
			}
			list := trimList(strs)
			if list == nil {
				return nil, typeError(p)
			}
			return list, nil
		default:
			return nil, typeError(p)
		}

	case TypeDate:
		s, ok := v.(string)
		if !ok {
			return nil, typeError(p)
		}
		t, err := time.Parse(dateLayout, strings.TrimSpace(s))
		if err != nil {
			return nil, typeError(p)
		}
		return t, nil

	case TypeInt:
		var n int
		switch val := v.(type) {
		case int:
			n = val
		case int64:
			n = int(val)
		case float64:
			if val != math.Trunc(val) {
				return nil, typeError(p)
			}
			n = int(val)
		default:
			return nil, typeError(p)
		}
		if n < 0 {
			return nil, typeError(p)
		}
		return n, nil

	default:
		return nil, Errorf(KindInvalidParameters, "parameter %q has unsupported type %q", p.Name, p.Type)
	}
}

func typeError(p Param) error {
	return Errorf(KindInvalidParameters, "parameter %q: expected %s", p.Name, p.Type.label())
}

func splitList(raw string) []string {
	return trimList(strings.Split(raw, ","))
}

func trimList(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
