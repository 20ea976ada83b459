package featureflags

import (
	"context"

	"setledger/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

type FeatureFlag interface {
	Enabled(ctx context.Context, feature string) bool
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithBaseURL(p.Config.Flagsmith.Addr),
		flagsmith.WithAnalytics(),
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

// Enabled reports whether the named feature is on. Without a configured flag
// service, and on any lookup failure, features default to enabled so a flag
// outage cannot take the product down.
func (s *featureflag) Enabled(ctx context.Context, feature string) bool {
	if s.client == nil {
		return true
	}

	flags, err := s.client.GetEnvironmentFlags()
	if err != nil {
		zap.L().Warn("failed to fetch environment flags", zap.Error(err))
		return true
	}

	enabled, err := flags.IsFeatureEnabled(feature)
	if err != nil {
		return true
	}
	return enabled
}
