package orm

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const tracerName = "github.com/tokmz/roomcast/pkg/orm"

type registerFunc func(name string, fn func(*gorm.DB)) error

// tracePlugin 为每条 gorm 语句开一个 client span，span 名为 gorm.<操作>
type tracePlugin struct {
	statements bool
}

func (p *tracePlugin) Name() string { return "roomcast:otel" }

func (p *tracePlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op            string
		before, after registerFunc
	}{
		{"Create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"Query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"Update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"Delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"Row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"Raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	var errs []error
	for _, h := range hooks {
		errs = append(errs,
			h.before("roomcast:otel_before_"+h.op, p.start("gorm."+h.op)),
			h.after("roomcast:otel_after_"+h.op, p.finish),
		)
	}
	return errors.Join(errs...)
}

func (p *tracePlugin) start(name string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		// provider 可能在 Open 之后才设置，每次都从全局取
		ctx, _ = otel.Tracer(tracerName).Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("db.system", db.Dialector.Name())),
		)
		db.Statement.Context = ctx
	}
}

func (p *tracePlugin) finish(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}
	defer span.End()

	attrs := []attribute.KeyValue{attribute.Int64("db.rows_affected", db.Statement.RowsAffected)}
	if t := db.Statement.Table; t != "" {
		attrs = append(attrs, attribute.String("db.sql.table", t))
	}
	if p.statements {
		if sql := db.Statement.SQL.String(); sql != "" {
			attrs = append(attrs, attribute.String("db.statement", sql))
		}
	}
	span.SetAttributes(attrs...)

	// 未命中是业务结果，不算 span 错误
	if err := db.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
