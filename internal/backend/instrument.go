package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/internal/metrics"
)

type instrumented struct {
	next Backend
	log  *slog.Logger
}

// Instrument wraps b so every call is timed, counted and failures logged.
func Instrument(b Backend, log *slog.Logger) Backend {
	return &instrumented{next: b, log: log}
}

func (i *instrumented) done(op string, start time.Time, err error, args ...any) {
	metrics.ObserveBackend(op, start, err)
	if err != nil {
		i.log.Warn("backend_"+op+"_error", append(args, "err", err)...)
	}
}

func (i *instrumented) Systems(ctx context.Context, cogID string, ftype feature.FType) (map[string][]string, error) {
	start := time.Now()
	systems, err := i.next.Systems(ctx, cogID, ftype)
	i.done("systems", start, err, "cog_id", cogID, "ftype", ftype)
	return systems, err
}

func (i *instrumented) ViewFeatures(ctx context.Context, req FeaturesRequest) (l *Listing, err error) {
	start := time.Now()
	l, err = i.next.ViewFeatures(ctx, req)
	i.done("view_features", start, err, "cog_id", req.CogID, "system", req.System, "version", req.Version)
	return l, err
}

func (i *instrumented) ValidateFeatures(ctx context.Context, req FeaturesRequest) (l *Listing, err error) {
	start := time.Now()
	l, err = i.next.ValidateFeatures(ctx, req)
	i.done("validate_features", start, err, "cog_id", req.CogID, "system", req.System, "version", req.Version)
	return l, err
}

func (i *instrumented) Publish(ctx context.Context, req PublishRequest) error {
	start := time.Now()
	err := i.next.Publish(ctx, req)
	i.done("publish", start, err, "cog_id", req.CogID, "feature_id", req.FeatureID)
	return err
}

func (i *instrumented) UpdateStatus(ctx context.Context, req UpdateStatusRequest) error {
	start := time.Now()
	err := i.next.UpdateStatus(ctx, req)
	i.done("update_status", start, err, "feature_id", req.FeatureID)
	return err
}
