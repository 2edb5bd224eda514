// Package events carries pipeline progress notifications.
package events

import "time"

// StageComplete is sent when a pipeline stage finishes, successfully or not.
type StageComplete struct {
	Stage     string        // "crawl-pages", "crawl-posts", "process", "embed" or "publish"
	Processed int           // items fetched, normalized, embedded or published
	Skipped   int           // items already done in an earlier run
	Failed    int           // items skipped because of an error
	Duration  time.Duration // how long the stage took
	Errors    []string      // non-fatal errors encountered
	Tokens    int           // embedding tokens billed (embed only)
	Cost      float64       // estimated embedding cost in dollars (embed only)
	Err       error         // the error that stopped the stage, if any
}
