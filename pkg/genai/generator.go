// Package genai adapts hosted large-language-model services to the small
// contract the URL pipeline needs, and layers retry, throttling and timeouts
// on top of any backend.
package genai

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a backend answers without any content.
var ErrEmptyResponse = errors.New("empty response from model")

// Generator is a generative backend.
//
// GenerateText performs a free-form request. GenerateJSON asks for a JSON
// document; schema is an optional JSON Schema the backend should honour
// (empty means no constraint). Both return the raw model output.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt, schema string) (string, error)
}

// Middleware decorates a Generator.
type Middleware func(Generator) Generator

// Chain applies middlewares so that the first one listed is the outermost.
func Chain(gen Generator, mws ...Middleware) Generator {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			gen = mws[i](gen)
		}
	}
	return gen
}

// callFunc is one backend request bound to its arguments.
type callFunc func(ctx context.Context) (string, error)

// around adapts a per-call wrapper into a full Generator.
type around struct {
	next Generator
	wrap func(ctx context.Context, call callFunc) (string, error)
}

func (a *around) GenerateText(ctx context.Context, prompt string) (string, error) {
	return a.wrap(ctx, func(ctx context.Context) (string, error) {
		return a.next.GenerateText(ctx, prompt)
	})
}

func (a *around) GenerateJSON(ctx context.Context, prompt, schema string) (string, error) {
	return a.wrap(ctx, func(ctx context.Context) (string, error) {
		return a.next.GenerateJSON(ctx, prompt, schema)
	})
}

// Scripted is a Generator backed by plain functions. A nil function answers
// with ErrEmptyResponse.
type Scripted struct {
	Text func(ctx context.Context, prompt string) (string, error)
	JSON func(ctx context.Context, prompt, schema string) (string, error)
}

func (s *Scripted) GenerateText(ctx context.Context, prompt string) (string, error) {
	if s.Text == nil {
		return "", ErrEmptyResponse
	}
	return s.Text(ctx, prompt)
}

func (s *Scripted) GenerateJSON(ctx context.Context, prompt, schema string) (string, error) {
	if s.JSON == nil {
		return "", ErrEmptyResponse
	}
	return s.JSON(ctx, prompt, schema)
}
