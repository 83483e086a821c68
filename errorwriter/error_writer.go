package errorwriter

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hearthlabs/hearth/logger"
	"github.com/hearthlabs/hearth/message"
)

// ErrorWriter renders an error condition into a response.
type ErrorWriter interface {
	WriteError(code int, msg string, lg logger.Logger) *message.Response
}

type plaintextErrorWriter struct{}

// NewPlaintextErrorWriter renders "<code> <reason>: <message>" bodies.
func NewPlaintextErrorWriter() ErrorWriter {
	return &plaintextErrorWriter{}
}

func (ew *plaintextErrorWriter) WriteError(code int, msg string, lg logger.Logger) *message.Response {
	body := fmt.Sprintf("%d %s: %s\n", code, message.ReasonPhrase(code), msg)

	if code != message.StatusNotFound {
		lg.Info("status", zap.String("body", body))
	}

	resp := message.NewResponse(code)
	resp.Headers.Set("Content-Type", "text/plain; charset=utf-8")
	resp.SetBodyString(body)
	return resp
}

type bareErrorWriter struct{}

// NewBareErrorWriter renders status-only responses with empty bodies.
func NewBareErrorWriter() ErrorWriter {
	return &bareErrorWriter{}
}

func (ew *bareErrorWriter) WriteError(code int, msg string, lg logger.Logger) *message.Response {
	return message.NewResponse(code)
}
