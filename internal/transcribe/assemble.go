package transcribe

import (
	"sort"
	"strings"

	"github.com/minuteflow/minuteflow/internal/models"
)

// Assemble renders the final transcript: segments are sorted by start time,
// empty-text segments dropped, and consecutive turns of the same speaker
// merged into one "SPEAKER: text" line. Timestamps do not appear in the
// output.
func Assemble(segments []models.TranscribedSegment) string {
	kept := make([]models.TranscribedSegment, 0, len(segments))
	for _, s := range segments {
		if strings.TrimSpace(s.Text) != "" {
			kept = append(kept, s)
		}
	}
	sort.Slice(kept, func(a, b int) bool { return kept[a].Start < kept[b].Start })

	var (
		lines   []string
		speaker string
		parts   []string
	)
	flush := func() {
		if speaker != "" && len(parts) > 0 {
			lines = append(lines, speaker+": "+strings.Join(parts, " "))
		}
		parts = nil
	}

	for _, s := range kept {
		if s.Speaker != speaker {
			flush()
			speaker = s.Speaker
		}
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	flush()

	return strings.Join(lines, "\n")
}

// DominantLanguage returns the plurality detected language. Ties resolve to
// the language seen earliest in the segment list, which keeps the result
// deterministic for a fixed input ordering.
func DominantLanguage(segments []models.TranscribedSegment) string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)

	for i, s := range segments {
		if s.Language == "" || strings.TrimSpace(s.Text) == "" {
			continue
		}
		if _, ok := firstSeen[s.Language]; !ok {
			firstSeen[s.Language] = i
		}
		counts[s.Language]++
	}

	best := ""
	for lang, n := range counts {
		switch {
		case best == "", n > counts[best]:
			best = lang
		case n == counts[best] && firstSeen[lang] < firstSeen[best]:
			best = lang
		}
	}
	return best
}
