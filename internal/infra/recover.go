package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Go runs f on its own goroutine and logs a recovered panic instead of
// crashing the process. One-shot: f is not restarted.
func Go(id string, f func()) {
	go func() {
		defer logPanic(id)
		f()
	}()
}

// GoRecoverable keeps f running across panics, restarting it up to maxPanics
// times (negative means no limit). Exceeding the limit is fatal.
func GoRecoverable(maxPanics int, id string, f func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.WithField("job", id).Errorf("panic: %v at %s", r, panicOrigin())
		if maxPanics == 0 {
			log.WithField("job", id).Fatalln("panic limit exceeded, exiting")
		}
		if maxPanics > 0 {
			maxPanics--
		}
		log.WithField("job", id).Debugln("restarting after panic")
		go GoRecoverable(maxPanics, id, f)
	}()
	f()
}

func logPanic(id string) {
	if r := recover(); r != nil {
		log.WithField("job", id).Errorf("panic: %v at %s", r, panicOrigin())
	}
}

// panicOrigin walks the stack past the runtime frames to the panicking call
// site.
func panicOrigin() string {
	var pc [16]uintptr
	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line := fn.FileLine(pc)
		name := fn.Name()
		if strings.HasPrefix(name, "runtime.") {
			continue
		}
		if name != "" {
			return fmt.Sprintf("%s:%d", name, line)
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
	return "unknown"
}
