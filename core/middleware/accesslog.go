package middleware

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/searchktools/tiny-server/core/http"
)

// AccessLog logs one line per request once its response is final. Server
// errors are logged at error level, client errors at warn, the rest at info.
type AccessLog struct {
	logger *zap.Logger
}

// NewAccessLog creates an access log plugin writing to logger
func NewAccessLog(logger *zap.Logger) *AccessLog {
	return &AccessLog{logger: logger.Named("access")}
}

func (p *AccessLog) PreRequest(req *http.Request) *http.Response {
	if ce := p.logger.Check(zapcore.DebugLevel, "request"); ce != nil {
		ce.Write(
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("remote", req.RemoteAddr),
		)
	}
	return nil
}

func (p *AccessLog) PostResponse(req *http.Request, resp *http.Response) {
	level := zapcore.InfoLevel
	switch {
	case resp.StatusCode >= 500:
		level = zapcore.ErrorLevel
	case resp.StatusCode >= 400:
		level = zapcore.WarnLevel
	}

	ce := p.logger.Check(level, "response")
	if ce == nil {
		return
	}

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.String("remote", req.RemoteAddr),
	}
	if !req.ReceivedAt.IsZero() {
		fields = append(fields, zap.Duration("duration", time.Since(req.ReceivedAt)))
	}
	if id := req.Header.Get(HeaderRequestID); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	ce.Write(fields...)
}
