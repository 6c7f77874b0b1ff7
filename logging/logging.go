// Package logging annotates goroutines with pprof labels so long-running
// workers can be told apart in profiles and goroutine dumps.
package logging

import (
	"context"
	"fmt"
	"runtime"
	"runtime/pprof"
	"strconv"
)

// GoAnnotate spawns fn in a goroutine labeled with the caller's location
// plus any additional labels.
func GoAnnotate(ctx context.Context, fn func(context.Context), labelMap ...map[string]any) {
	labels := callerLabels(labelMap...)

	go pprof.Do(ctx, labels, fn)
}

func callerLabels(labelMap ...map[string]any) pprof.LabelSet {
	labels := []string{"file", "unknown", "line", "0"}

	// The caller two frames up is the function that asked for the goroutine.
	if pc, file, line, ok := runtime.Caller(2); ok {
		labels = []string{"fn", runtime.FuncForPC(pc).Name(), "file", file, "line", strconv.Itoa(line)}
	}

	for _, labelMap := range labelMap {
		for key, val := range labelMap {
			labels = append(labels, key, fmt.Sprintf("%v", val))
		}
	}

	return pprof.Labels(labels...)
}
