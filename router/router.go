// Package router decides which data sources a question should be
// answered from. Routing is a deterministic, order-sensitive keyword
// classifier, not a scored match: explicit selectors are honored
// verbatim, otherwise the first matching keyword set wins.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/churryboy/sheet-llm-chatbot/registry"
	"github.com/churryboy/sheet-llm-chatbot/source"
)

// ErrUnknownSource is returned when an explicit selector names no
// registered source.
var ErrUnknownSource = errors.New("unknown source selector")

// Defaults holds the built-in source descriptors for each topic.
type Defaults struct {
	// Default is queried when no keyword set matches.
	Default source.Descriptor

	// Device is the tablet/device survey sheet.
	Device source.Descriptor

	// Parent is the parent/guardian survey sheet.
	Parent source.Descriptor

	// Interview is the interview transcript document.
	Interview source.Descriptor
}

// Router selects sources for a question.
type Router struct {
	defaults Defaults
	repo     registry.Repository
	logger   *slog.Logger
}

// New creates a Router over the default descriptors and the custom
// source repository. repo may be nil when no custom sources exist.
func New(defaults Defaults, repo registry.Repository, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{defaults: defaults, repo: repo, logger: logger}
}

// Select returns the descriptors to query for a question. A non-empty
// explicitGID bypasses keyword inference entirely and must name a known
// source. Otherwise the question is classified against the topic rule
// table in priority order {parent, device, default}.
func (r *Router) Select(ctx context.Context, question, explicitGID string) ([]source.Descriptor, error) {
	if explicitGID != "" {
		return r.selectExplicit(ctx, explicitGID)
	}

	topic := Match(sheetRules, question)
	r.logger.Debug("Routed question", slog.String("topic", topicOrDefault(topic)))

	switch topic {
	case TopicParent:
		if r.defaults.Parent.GID != "" {
			return []source.Descriptor{r.defaults.Parent}, nil
		}
	case TopicDevice:
		if r.defaults.Device.GID != "" {
			return []source.Descriptor{r.defaults.Device}, nil
		}
	case TopicInterview:
		if r.defaults.Interview.DocumentID != "" {
			return []source.Descriptor{r.defaults.Interview}, nil
		}
	}
	return []source.Descriptor{r.defaults.Default}, nil
}

// TopicFor classifies a question without resolving descriptors. Used by
// the post-processor to pick the survey date of the topically relevant
// sheet.
func (r *Router) TopicFor(question string) string {
	return topicOrDefault(Match(sheetRules, question))
}

// All returns every queryable source: the defaults followed by custom
// registrations, with title overrides applied to defaults.
func (r *Router) All(ctx context.Context) ([]source.Descriptor, error) {
	descriptors := []source.Descriptor{}
	for _, d := range []source.Descriptor{r.defaults.Default, r.defaults.Device, r.defaults.Parent, r.defaults.Interview} {
		if d.GID != "" || d.DocumentID != "" {
			d.IsDefault = true
			descriptors = append(descriptors, d)
		}
	}

	if r.repo != nil {
		titles, err := r.repo.Titles(ctx)
		if err != nil {
			return nil, fmt.Errorf("load title overrides: %w", err)
		}
		for i := range descriptors {
			if t, ok := titles[descriptors[i].GID]; ok {
				descriptors[i].DisplayName = t
			}
		}

		custom, err := r.repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("load custom sources: %w", err)
		}
		descriptors = append(descriptors, custom...)
	}

	return descriptors, nil
}

// selectExplicit resolves an explicit selector against known sources.
func (r *Router) selectExplicit(ctx context.Context, gid string) ([]source.Descriptor, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range all {
		if d.GID == gid {
			return []source.Descriptor{d}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, gid)
}

func topicOrDefault(topic string) string {
	if topic == "" {
		return TopicDefault
	}
	return topic
}
