package handlers

import (
	"sync"

	"github.com/cosmos-ai/cosmos-host/pkg/config"
	"github.com/d4l-data4life/go-svc/pkg/instrumented"
)

var once sync.Once

var instance *instrumented.HandlerFactory

// GetHandlerFactory returns a global singleton InstrumentedHandlerFactory object
func GetHandlerFactory() *instrumented.HandlerFactory {
	once.Do(func() {
		instance = instrumented.NewHandlerFactory("cosmos", config.DefaultInstrumentInitOptions, config.DefaultInstrumentOptions)
	})
	return instance
}
