package invoker

import (
	"regexp"
	"strings"
)

// ExtractMethod names how an answer was recovered from reasoning text.
type ExtractMethod string

const (
	ExtractCodeBlock ExtractMethod = "code_block"
	ExtractFunction  ExtractMethod = "function"
	ExtractRaw       ExtractMethod = "raw"
)

// Extraction is the best-effort answer recovered from reasoning.
type Extraction struct {
	Text   string
	Method ExtractMethod
}

var (
	fencePattern     = regexp.MustCompile("(?s)```[\\w+#.-]*[ \\t]*\\n?(.*?)```")
	funcDefPattern   = regexp.MustCompile(`^\s*(?:async\s+)?(?:def|func|function|fn)\s+[\w.]*\s*(?:<[^>]*>)?\(|^\s*class\s+\w+\s*[(:{]`)
	signaturePattern = regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final|export)\s+)+[\w<>\[\]]+\s+\w+\s*\(`)
)

// Extract recovers a usable answer from reasoning text: fenced code blocks
// first, then recognisable function definitions, otherwise the text as-is.
// It never panics.
func Extract(reasoning string) (out Extraction) {
	defer func() {
		if recover() != nil {
			out = Extraction{Text: reasoning, Method: ExtractRaw}
		}
	}()

	if blocks := fencedBlocks(reasoning); len(blocks) > 0 {
		return Extraction{Text: strings.Join(blocks, "\n\n"), Method: ExtractCodeBlock}
	}
	if fn := functionDefinition(reasoning); fn != "" {
		return Extraction{Text: "```\n" + fn + "\n```", Method: ExtractFunction}
	}
	return Extraction{Text: reasoning, Method: ExtractRaw}
}

// fencedBlocks returns each complete, non-empty fenced block verbatim.
func fencedBlocks(text string) []string {
	var blocks []string
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		if strings.TrimSpace(m[1]) == "" {
			continue
		}
		blocks = append(blocks, strings.TrimSpace(m[0]))
	}
	return blocks
}

// functionDefinition returns the first function-like definition together
// with its indented body.
func functionDefinition(text string) string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if funcDefPattern.MatchString(line) || signaturePattern.MatchString(line) {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}

	base := indentOf(lines[start])
	end := start + 1
	depth := strings.Count(lines[start], "{") - strings.Count(lines[start], "}")
	for ; end < len(lines); end++ {
		line := lines[end]
		if strings.TrimSpace(line) == "" {
			if depth <= 0 && !continuesBlock(lines, end+1, base) {
				break
			}
			continue
		}
		if depth <= 0 && indentOf(line) <= base && !isClosing(line) {
			break
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 && isClosing(line) && indentOf(line) <= base {
			end++
			break
		}
	}
	return strings.TrimRight(strings.Join(lines[start:end], "\n"), " \t\n")
}

func continuesBlock(lines []string, from, base int) bool {
	for i := from; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		return indentOf(lines[i]) > base
	}
	return false
}

func isClosing(line string) bool {
	t := strings.TrimSpace(line)
	if strings.HasPrefix(t, "}") {
		return true
	}
	return t == "end" || strings.HasPrefix(t, "end ") || strings.HasPrefix(t, "end;")
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
