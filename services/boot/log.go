package boot

import "strings"

const logPrefix = "[boot] "

func (e *Engine) log(parts ...string) {
	if !e.cfg.Logging || e.hw.Log == nil {
		return
	}
	var b strings.Builder
	b.WriteString(logPrefix)
	for _, p := range parts {
		b.WriteString(p)
	}
	e.hw.Log.Log(b.String())
}
