package nginx

import (
	"context"
	"fmt"
	"strings"

	"github.com/nuetzliches/nginxgen/internal/config"
)

// diffOp is a single line-level diff operation.
type diffOp struct {
	kind  byte // '=', '-', '+'
	text  string
	oldNo int
	newNo int
}

// normalizedDiffLines splits rendered output into lines without the final
// empty element left by the trailing newline.
func normalizedDiffLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// lineDiffOps computes an LCS line diff annotated with 1-based line numbers.
func lineDiffOps(oldLines, newLines []string) []diffOp {
	n := len(oldLines)
	m := len(newLines)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				dp[i][j] = dp[i+1][j+1] + 1
				continue
			}
			if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	i, j := 0, 0
	oldNo, newNo := 1, 1
	ops := make([]diffOp, 0, n+m)
	for i < n && j < m {
		if oldLines[i] == newLines[j] {
			ops = append(ops, diffOp{kind: '=', text: oldLines[i], oldNo: oldNo, newNo: newNo})
			i++
			j++
			oldNo++
			newNo++
			continue
		}
		if dp[i+1][j] >= dp[i][j+1] {
			ops = append(ops, diffOp{kind: '-', text: oldLines[i], oldNo: oldNo, newNo: newNo})
			i++
			oldNo++
		} else {
			ops = append(ops, diffOp{kind: '+', text: newLines[j], oldNo: oldNo, newNo: newNo})
			j++
			newNo++
		}
	}
	for i < n {
		ops = append(ops, diffOp{kind: '-', text: oldLines[i], oldNo: oldNo, newNo: newNo})
		i++
		oldNo++
	}
	for j < m {
		ops = append(ops, diffOp{kind: '+', text: newLines[j], oldNo: oldNo, newNo: newNo})
		j++
		newNo++
	}
	return ops
}

type hunk struct {
	start, end int // half-open range into ops
}

// diffHunks groups changed ops with contextLines of surrounding context,
// merging hunks whose context would overlap.
func diffHunks(ops []diffOp, contextLines int) []hunk {
	var hunks []hunk
	for i, op := range ops {
		if op.kind == '=' {
			continue
		}
		start := max(i-contextLines, 0)
		end := min(i+contextLines+1, len(ops))
		if n := len(hunks); n > 0 && start <= hunks[n-1].end {
			hunks[n-1].end = max(hunks[n-1].end, end)
			continue
		}
		hunks = append(hunks, hunk{start: start, end: end})
	}
	return hunks
}

func unifiedDiff(ops []diffOp, contextLines int, oldName, newName string) string {
	hunks := diffHunks(ops, contextLines)
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range hunks {
		oldCount, newCount := 0, 0
		for _, op := range ops[h.start:h.end] {
			if op.kind != '+' {
				oldCount++
			}
			if op.kind != '-' {
				newCount++
			}
		}
		_, _ = fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", ops[h.start].oldNo, oldCount, ops[h.start].newNo, newCount)
		for _, op := range ops[h.start:h.end] {
			prefix := byte(' ')
			if op.kind != '=' {
				prefix = op.kind
			}
			b.WriteByte(prefix)
			b.WriteString(op.text)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// DiffDocuments generates the configuration for two documents and returns a
// unified diff of the rendered output. contextLines defaults to 3 if <= 0.
// Returns "" when both documents render identically.
func DiffDocuments(ctx context.Context, oldCfg, newCfg *config.Config, contextLines int, oldName, newName string) (string, error) {
	if contextLines <= 0 {
		contextLines = 3
	}

	oldRes, err := GenerateDocument(ctx, oldCfg)
	if err != nil {
		return "", fmt.Errorf("generating %s: %w", oldName, err)
	}
	newRes, err := GenerateDocument(ctx, newCfg)
	if err != nil {
		return "", fmt.Errorf("generating %s: %w", newName, err)
	}

	oldLines := normalizedDiffLines(string(oldRes.Bytes()))
	newLines := normalizedDiffLines(string(newRes.Bytes()))
	ops := lineDiffOps(oldLines, newLines)
	return unifiedDiff(ops, contextLines, oldName, newName), nil
}
