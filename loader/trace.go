package loader

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"
)

const component = "sectionloader"

// startFetchSpan starts a span for one network fetch, as a child of the span
// in ctx if there is one.
func startFetchSpan(ctx context.Context, tracer opentracing.Tracer, url, selector string) (opentracing.Span, context.Context) {
	var opts []opentracing.StartSpanOption
	if parent := opentracing.SpanFromContext(ctx); parent != nil {
		opts = append(opts, opentracing.ChildOf(parent.Context()))
		tracer = parent.Tracer()
	}

	span := tracer.StartSpan("fragment.fetch", opts...)
	ext.Component.Set(span, component)
	ext.HTTPUrl.Set(span, url)
	span.SetTag("selector", selector)

	return span, opentracing.ContextWithSpan(ctx, span)
}

func finishFetchSpan(span opentracing.Span, err error) {
	if err != nil {
		ext.Error.Set(span, true)
		span.LogFields(otlog.Error(err))
	}
	span.Finish()
}
