package shell

import "strings"

// tailBuffer keeps the last max lines written to it.
type tailBuffer struct {
	max     int
	lines   []string
	partial strings.Builder
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	for _, c := range p {
		if c == '\n' {
			b.push(b.partial.String())
			b.partial.Reset()
			continue
		}
		b.partial.WriteByte(c)
	}
	return len(p), nil
}

func (b *tailBuffer) push(line string) {
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// String returns the retained lines, trimmed, including any unterminated
// final line.
func (b *tailBuffer) String() string {
	lines := b.lines
	if b.partial.Len() > 0 {
		lines = append(lines[:len(lines):len(lines)], b.partial.String())
		if len(lines) > b.max {
			lines = lines[len(lines)-b.max:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
