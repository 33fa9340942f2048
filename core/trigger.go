package core

import (
	"context"
	"strings"
)

type runTriggerKey struct{}

// WithRunTrigger records what started a pipeline run so it shows up in run logs.
func WithRunTrigger(ctx context.Context, trigger string) context.Context {
	trigger = strings.TrimSpace(trigger)
	if ctx == nil || trigger == "" {
		return ctx
	}
	return context.WithValue(ctx, runTriggerKey{}, trigger)
}

func RunTriggerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	trigger, _ := ctx.Value(runTriggerKey{}).(string)
	return trigger
}
