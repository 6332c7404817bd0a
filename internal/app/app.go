// Package app wires configuration and AWS clients into the reply service
// shared by the HTTP entry points.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"

	"rule-chatbot/internal/config"
	"rule-chatbot/internal/integrations/paramstore"
	"rule-chatbot/internal/metrics"
	"rule-chatbot/internal/repository"
	"rule-chatbot/internal/usecase"
)

// ParamLookup resolves an optional parameter under a prefix.
type ParamLookup interface {
	Lookup(ctx context.Context, prefix, key string) (string, bool, error)
}

// TranscriptTable returns the table exchanges are written to, or "" when
// transcripts are disabled. TRANSCRIPT_TABLE wins over the SSM parameter.
func TranscriptTable(ctx context.Context, cfg config.Config, params ParamLookup) (string, error) {
	if cfg.TranscriptTable != "" {
		return cfg.TranscriptTable, nil
	}
	if cfg.ParamPrefix == "" {
		return "", nil
	}
	if params == nil {
		return "", errors.New("app: param lookup must not be nil when PARAM_PREFIX is set")
	}
	table, found, err := params.Lookup(ctx, cfg.ParamPrefix, config.TranscriptTableParam)
	if err != nil {
		return "", fmt.Errorf("app: resolve transcript table: %w", err)
	}
	if !found {
		return "", nil
	}
	return table, nil
}

// NewReplyService builds the reply service. Transcripts are enabled when a
// table is configured; reg may be nil to skip metrics.
func NewReplyService(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*usecase.ReplyService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []usecase.Option{usecase.WithLogger(logger)}

	if reg != nil {
		replies, err := metrics.NewReplies(reg)
		if err != nil {
			return nil, fmt.Errorf("app: register metrics: %w", err)
		}
		opts = append(opts, usecase.WithObserver(replies))
	}

	if cfg.TranscriptsEnabled() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}

		var params ParamLookup
		if cfg.ParamPrefix != "" {
			ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				return nil, fmt.Errorf("app: create SSM client: %w", err)
			}
			params = ps
		}

		table, err := TranscriptTable(ctx, cfg, params)
		if err != nil {
			return nil, err
		}
		if table != "" {
			store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), table)
			if err != nil {
				return nil, fmt.Errorf("app: create transcript store: %w", err)
			}
			opts = append(opts, usecase.WithTranscripts(store))
			logger.Info("transcripts enabled", "table", table)
		}
	}

	return usecase.NewReplyService(opts...), nil
}
