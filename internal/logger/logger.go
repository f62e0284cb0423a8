package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a development logger for "development" and "test", and a JSON
// production logger otherwise.
func New(env string) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	switch env {
	case "development", "test":
		log, err = zap.NewDevelopment()
	default:
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log.With(zap.String("service", "fee-ledger")), nil
}
