package sink

import (
	"github.com/rs/zerolog"
)

// Log returns a Sink that writes every item to logger at the given level.
func Log[T any](logger zerolog.Logger, level zerolog.Level, msg string) Sink[T] {
	return Func[T](func(item T) {
		logger.WithLevel(level).Interface("item", item).Msg(msg)
	})
}

// Lines returns a Sink that uses each string item as the log message itself.
func Lines(logger zerolog.Logger, level zerolog.Level) Sink[string] {
	return Func[string](func(line string) {
		logger.WithLevel(level).Msg(line)
	})
}
