// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rivo/uniseg"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// progressReporter drives one bar per topic while the Replay Engine
// replays its commits; it is a no-op when stdout is not a terminal,
// so piping branchstack's output never produces bar-redraw noise.
type progressReporter struct {
	container *mpb.Progress
	enabled   bool
}

func newProgressReporter() *progressReporter {
	enabled := isatty.IsTerminal(os.Stdout.Fd())
	var out io.Writer = io.Discard
	if enabled {
		out = os.Stdout
	}
	return &progressReporter{
		container: mpb.New(mpb.WithOutput(out), mpb.WithAutoRefresh()),
		enabled:   enabled,
	}
}

// topicBar is one topic's progress bar plus the mutable subject-line
// state its trailing decorator reads from.
type topicBar struct {
	bar     *mpb.Bar
	current *string
}

// startTopic returns a bar tracking total commits for topic, or nil if
// progress reporting is disabled.
func (p *progressReporter) startTopic(topic string, total int) *topicBar {
	if !p.enabled || total == 0 {
		return nil
	}
	current := new(string)
	bar := p.container.AddBar(int64(total),
		mpb.PrependDecorators(decor.Name(truncateForTerminal(topic, 24))),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d / %d"),
			decor.Any(func(decor.Statistics) string { return *current }),
		),
	)
	return &topicBar{bar: bar, current: current}
}

// advance increments bar and updates its trailing decorator to show
// the subject of the commit that was just replayed.
func (p *progressReporter) advance(bar *topicBar, subjectLine string) {
	if bar == nil {
		return
	}
	*bar.current = " " + truncateForTerminal(subjectLine, terminalWidth())
	bar.bar.Increment()
}

func (p *progressReporter) wait() {
	p.container.Wait()
}

// truncateForTerminal trims s to at most width printed columns,
// counting grapheme clusters rather than bytes or runes so combining
// marks and wide characters in commit subjects don't throw off bar
// alignment.
func truncateForTerminal(s string, width int) string {
	if width <= 0 {
		return s
	}
	gr := uniseg.NewGraphemes(s)
	var out []rune
	cols := 0
	for gr.Next() {
		w := uniseg.StringWidth(gr.Str())
		if cols+w > width {
			break
		}
		cols += w
		out = append(out, gr.Runes()...)
	}
	return string(out)
}

// TruncateSubject truncates s to the current terminal's width, for
// callers outside this package that print commit subjects (the
// Orchestrator's final per-branch commit breakdown).
func TruncateSubject(s string) string {
	return truncateForTerminal(s, terminalWidth())
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
