package logger

import (
	"io"
	"log"
)

// Null returns a logger that discards everything it is given.
func Null() *log.Logger {
	return log.New(io.Discard, "", log.LstdFlags)
}

func Default() *log.Logger {
	return log.Default()
}
