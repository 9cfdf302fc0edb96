// Package components registers every built-in source, stage, renderer and
// sink with a pipeline registry.
package components

import (
	"errors"

	emailsink "github.com/c360studio/semdigest/destination/email"
	filesink "github.com/c360studio/semdigest/destination/file"
	natssink "github.com/c360studio/semdigest/destination/nats"
	telegramsink "github.com/c360studio/semdigest/destination/telegram"
	"github.com/c360studio/semdigest/output/render"
	"github.com/c360studio/semdigest/pipeline"
	commentsummarizer "github.com/c360studio/semdigest/processor/comment-summarizer"
	contentfetcher "github.com/c360studio/semdigest/processor/content-fetcher"
	contenttagger "github.com/c360studio/semdigest/processor/content-tagger"
	"github.com/c360studio/semdigest/processor/passthrough"
	"github.com/c360studio/semdigest/processor/summarizer"
	"github.com/c360studio/semdigest/source/hackernews"
	"github.com/c360studio/semdigest/source/static"
)

// Register adds the built-in components to reg.
func Register(reg *pipeline.Registry) error {
	return errors.Join(
		reg.RegisterSource(hackernews.Name, "Hacker News stories via the Firebase API", hackernews.NewComponent),
		reg.RegisterSource(static.Name, "Fixed records from args or JSON files", static.NewComponent),

		reg.RegisterStage(contentfetcher.Name, "Fetch article HTML and extract text and links", contentfetcher.NewComponent),
		reg.RegisterStage(summarizer.Name, "LLM summary of article content", summarizer.NewComponent),
		reg.RegisterStage(contenttagger.Name, "LLM tags scored against a fixed vocabulary", contenttagger.NewComponent),
		reg.RegisterStage(commentsummarizer.Name, "LLM summary of each discussion comment", commentsummarizer.NewComponent),
		reg.RegisterStage(passthrough.Name, "Identity stage", passthrough.NewComponent),

		reg.RegisterRenderer(render.MarkdownName, "Markdown digest (text/template)", render.NewMarkdownComponent),
		reg.RegisterRenderer(render.HTMLName, "HTML digest (html/template)", render.NewHTMLComponent),

		reg.RegisterSink(filesink.Name, "Write timestamped digest files", filesink.NewComponent),
		reg.RegisterSink(emailsink.Name, "Send over SMTP", emailsink.NewComponent),
		reg.RegisterSink(telegramsink.Name, "Post to a Telegram chat", telegramsink.NewComponent),
		reg.RegisterSink(natssink.Name, "Publish to a NATS subject", natssink.NewComponent),
	)
}

// NewRegistry returns a registry with every built-in registered.
func NewRegistry() (*pipeline.Registry, error) {
	reg := pipeline.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
