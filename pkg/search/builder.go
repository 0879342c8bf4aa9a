package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/tokenizer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var builderTracer = otel.Tracer("kensaku/search/builder")

// fieldSeparator joins contributing fields. Both tokenizer variants treat
// whitespace as a hard boundary, so tokens never span two fields.
const fieldSeparator = " "

// Builder composes an entity's searchable fields into a Representation
// using the configured tokenizer and the Normalizer.
type Builder struct {
	tokenizer tokenizer.Tokenizer
}

// NewBuilder creates a representation builder
func NewBuilder(tok tokenizer.Tokenizer) *Builder {
	return &Builder{tokenizer: tok}
}

// Tokenizer returns the tokenizer shared with query translation
func (b *Builder) Tokenizer() tokenizer.Tokenizer {
	return b.tokenizer
}

// Build tokenizes and normalizes the given fields in order. Empty fields
// are skipped rather than contributing an empty token.
func (b *Builder) Build(ctx context.Context, fields ...string) (Representation, error) {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			continue
		}
		parts = append(parts, f)
	}
	if len(parts) == 0 {
		return Representation{}, nil
	}

	tokens, err := b.tokenizer.Tokenize(ctx, strings.Join(parts, fieldSeparator))
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize: %w", err)
	}
	return Normalize(tokens), nil
}

// BuildDocument builds a document's representation from its name, title
// and content followed by the related category names.
func (b *Builder) BuildDocument(ctx context.Context, doc *model.Document, relatedNames ...string) (Representation, error) {
	ctx, span := builderTracer.Start(ctx, "BuildDocument",
		trace.WithAttributes(
			attribute.Int64("document_id", doc.ID),
			attribute.Int("related_names", len(relatedNames)),
		),
	)
	defer span.End()

	fields := append([]string{doc.Name, doc.Title, doc.Content}, relatedNames...)
	rep, err := b.Build(ctx, fields...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build representation")
		return nil, err
	}

	span.SetAttributes(attribute.Int("token_count", rep.Len()))
	return rep, nil
}

// Analysis shows how a piece of text is indexed
type Analysis struct {
	Variant        tokenizer.Variant `json:"variant"`
	Tokens         []string          `json:"tokens"`
	Representation Representation    `json:"representation"`
	// TsVector is the stored form written to the search column
	TsVector string `json:"tsvector"`
}

// Analyze tokenizes text with the configured variant and returns the raw
// tokens next to the normalized representation they index as.
func (b *Builder) Analyze(ctx context.Context, text string) (*Analysis, error) {
	tokens, err := b.tokenizer.Tokenize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize: %w", err)
	}
	if tokens == nil {
		tokens = []string{}
	}
	rep := Normalize(tokens)
	return &Analysis{
		Variant:        b.tokenizer.Variant(),
		Tokens:         tokens,
		Representation: rep,
		TsVector:       rep.String(),
	}, nil
}
