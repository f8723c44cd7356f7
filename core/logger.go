package core

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProductionLogger provides layered observability for the orchestration
// engine: structured or human-readable output via a zap core, plus an
// optional metrics layer enabled once a telemetry backend registers itself.
type ProductionLogger struct {
	zl          *zap.Logger
	debug       bool
	serviceName string

	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	output := zapcore.Lock(os.Stdout)
	if logging.Output == "stderr" {
		output = zapcore.Lock(os.Stderr)
	}

	level := zapcore.InfoLevel
	debug := dev.DebugLogging || logging.Level == "debug"
	if debug {
		level = zapcore.DebugLevel
	} else if err := level.Set(strings.ToLower(logging.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	if logging.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, output, level)
	zl := zap.New(core).With(zap.String("service", serviceName))

	return &ProductionLogger{zl: zl, debug: debug, serviceName: serviceName}
}

// EnableMetrics is called by the telemetry package to enable the metrics layer.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEventComponent(zapcore.InfoLevel, msg, fields, nil, "agent")
}
func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEventComponent(zapcore.ErrorLevel, msg, fields, nil, "agent")
}
func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEventComponent(zapcore.WarnLevel, msg, fields, nil, "agent")
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEventComponent(zapcore.DebugLevel, msg, fields, nil, "agent")
	}
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEventComponent(zapcore.InfoLevel, msg, fields, ctx, "agent")
}
func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEventComponent(zapcore.ErrorLevel, msg, fields, ctx, "agent")
}
func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEventComponent(zapcore.WarnLevel, msg, fields, ctx, "agent")
}
func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEventComponent(zapcore.DebugLevel, msg, fields, ctx, "agent")
	}
}

// WithComponent returns a logger that tags every entry with component.
func (p *ProductionLogger) WithComponent(component string) Logger {
	return &componentLogger{base: p, component: component}
}

func (p *ProductionLogger) logEventComponent(level zapcore.Level, msg string, fields map[string]interface{}, ctx context.Context, component string) {
	zfields := make([]zap.Field, 0, len(fields)+3)
	zfields = append(zfields, zap.String("component", component))
	if ctx != nil && p.metricsEnabled {
		for k, v := range getContextBaggage(ctx) {
			zfields = append(zfields, zap.String("trace."+k, v))
		}
	}
	for k, v := range fields {
		zfields = append(zfields, zap.Any(k, v))
	}

	if ce := p.zl.Check(level, msg); ce != nil {
		ce.Write(zfields...)
	}

	if p.metricsEnabled {
		emitMetric("agent.log_events", 1.0, "level", level.String(), "component", component)
	}
}

// componentLogger decorates a ProductionLogger with a fixed component tag.
type componentLogger struct {
	base      *ProductionLogger
	component string
}

func (c *componentLogger) Info(msg string, fields map[string]interface{}) {
	c.base.logEventComponent(zapcore.InfoLevel, msg, fields, nil, c.component)
}
func (c *componentLogger) Error(msg string, fields map[string]interface{}) {
	c.base.logEventComponent(zapcore.ErrorLevel, msg, fields, nil, c.component)
}
func (c *componentLogger) Warn(msg string, fields map[string]interface{}) {
	c.base.logEventComponent(zapcore.WarnLevel, msg, fields, nil, c.component)
}
func (c *componentLogger) Debug(msg string, fields map[string]interface{}) {
	if c.base.debug {
		c.base.logEventComponent(zapcore.DebugLevel, msg, fields, nil, c.component)
	}
}
func (c *componentLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.logEventComponent(zapcore.InfoLevel, msg, fields, ctx, c.component)
}
func (c *componentLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.logEventComponent(zapcore.ErrorLevel, msg, fields, ctx, c.component)
}
func (c *componentLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.logEventComponent(zapcore.WarnLevel, msg, fields, ctx, c.component)
}
func (c *componentLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if c.base.debug {
		c.base.logEventComponent(zapcore.DebugLevel, msg, fields, ctx, c.component)
	}
}

func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}
