// Package everlog turns a day of screen-capture OCR logs into a
// compact, hour-structured work log.
//
// Quick start:
//
//	ev, err := everlog.Open()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	run, err := ev.SummarizeDay(ctx, "today")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(run.Path)
//
// The pipeline itself is deterministic; LLM labeling is optional and
// the report degrades to heuristic titles when it is off or fails.
package everlog
