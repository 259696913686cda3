package stashpipe

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-sql-driver/mysql"
	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/stashpipe/stashpipe/archive"
	"github.com/stashpipe/stashpipe/capability/anthropic"
	"github.com/stashpipe/stashpipe/capability/extract"
	"github.com/stashpipe/stashpipe/capability/openai"
	"github.com/stashpipe/stashpipe/config"
	"github.com/stashpipe/stashpipe/logging"
	"github.com/stashpipe/stashpipe/queue"
	"github.com/stashpipe/stashpipe/store"
)

// FromConfig assembles a production Pipeline from loaded configuration: the
// MySQL queue and entry store, the MinIO content archive, the live OpenAI and
// Anthropic capability clients and the HTML extractor. Sections left at their
// zero values keep their in-memory defaults, so a partial configuration still
// yields a runnable pipeline. Additional option functions are applied last
// and win over config-derived settings.
func FromConfig(ctx context.Context, cfg config.Config, logger logging.Logger, optFns ...func(o *Options)) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	configured := func(o *Options) {
		o.Logger = logger
		o.VisibilityTimeout = cfg.Queue.VisibilityTimeout.Std()
		o.MaxAttempts = cfg.Queue.MaxAttempts
		o.Workers = cfg.Queue.Workers

		o.Extractor = extract.New(func(eo *extract.Options) {
			if cfg.Fetch.UserAgent != "" {
				eo.UserAgent = cfg.Fetch.UserAgent
			}
			if cfg.Fetch.Timeout > 0 {
				eo.Client = &http.Client{Timeout: cfg.Fetch.Timeout.Std()}
			}
			if cfg.Fetch.MinContentLength > 0 {
				eo.MinContentLength = cfg.Fetch.MinContentLength
			}
		})
	}

	var dbOption func(o *Options)
	if cfg.Database.DSN != "" {
		dsn, err := normalizeDSN(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		dbOption = func(o *Options) {
			o.Queue = queue.NewSQL(db, cfg.Queue.Name)
			o.EntryStore = store.NewSQL(db)
		}
	}

	var archiveOption func(o *Options)
	if cfg.Archive.Endpoint != "" {
		arc, err := archive.NewMinIO(ctx, archive.MinIOConfig{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		archiveOption = func(o *Options) { o.Archive = arc }
	}

	var llmOption func(o *Options)
	if cfg.OpenAI.APIKey != "" {
		client := openaisdk.NewClient(openaiopt.WithAPIKey(cfg.OpenAI.APIKey))
		summarizer := openai.NewFromClient(&client, func(oo *openai.Options) {
			oo.Logger = logger
			if cfg.OpenAI.Model != "" {
				oo.Model = cfg.OpenAI.Model
			}
			if cfg.OpenAI.EmbeddingModel != "" {
				oo.EmbeddingModel = cfg.OpenAI.EmbeddingModel
			}
		})
		llmOption = func(o *Options) {
			o.Summarizer = summarizer
			if cfg.OpenAI.EnableEmbed {
				o.Embedder = summarizer
			}
		}
	}

	var researchOption func(o *Options)
	if cfg.Anthropic.APIKey != "" {
		client := anthropicsdk.NewClient(anthropicopt.WithAPIKey(cfg.Anthropic.APIKey))
		researcher := anthropic.NewFromClient(&client, func(ao *anthropic.Options) {
			ao.Logger = logger
			if cfg.Anthropic.Model != "" {
				ao.Model = anthropicsdk.Model(cfg.Anthropic.Model)
			}
		})
		researchOption = func(o *Options) { o.Researcher = researcher }
	}

	all := []func(o *Options){configured}
	for _, fn := range []func(o *Options){dbOption, archiveOption, llmOption, researchOption} {
		if fn != nil {
			all = append(all, fn)
		}
	}
	all = append(all, optFns...)

	return New(all...), nil
}

// normalizeDSN forces parseTime=true on the connection. The queue and store
// backends scan DATETIME columns into time.Time, which the driver only
// supports with that flag set.
func normalizeDSN(dsn string) (string, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	parsed.ParseTime = true
	return parsed.FormatDSN(), nil
}
