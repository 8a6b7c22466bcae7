package normalize

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/riskboard/pkg/github"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// PatchToChanges walks the hunks of a unified diff and returns its added and
// deleted lines. Context lines advance the target line counter without being emitted.
// File headers (---/+++) are only recognized before the first hunk.
// A patch without any +/- lines yields a single estimated modification entry.
func PatchToChanges(patch, fileName string) []types.ChangeLine {
	changes := []types.ChangeLine{}
	line := 1
	inHunk := false

	for _, text := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(text, "@@"):
			if m := hunkHeader.FindStringSubmatch(text); m != nil {
				line, _ = strconv.Atoi(m[2]) //nolint:errcheck // digits guaranteed by the pattern
			}
			inHunk = true
		case !inHunk && (strings.HasPrefix(text, "+++") || strings.HasPrefix(text, "---")):
		case strings.HasPrefix(text, "+"):
			changes = append(changes, types.ChangeLine{
				Type:       types.ChangeAddition,
				LineNumber: line,
				Content:    text[1:],
				Context:    "Added line",
			})
			line++
		case strings.HasPrefix(text, "-"):
			changes = append(changes, types.ChangeLine{
				Type:       types.ChangeDeletion,
				LineNumber: line,
				Content:    text[1:],
				Context:    "Removed line",
			})
		case strings.HasPrefix(text, " "):
			line++
		}
	}

	if len(changes) == 0 {
		context := "File modified"
		if patch == "" {
			context = "File modified (patch not available)"
		}
		changes = append(changes, types.ChangeLine{
			Type:       types.ChangeModification,
			LineNumber: 1,
			OldContent: "// Previous content in " + fileName,
			NewContent: "// Updated content in " + fileName,
			Context:    context,
		})
	}
	return changes
}

// FilesToChanges converts the changed-file list of a pull request.
func FilesToChanges(files []github.File) []types.FileChange {
	out := make([]types.FileChange, 0, len(files))
	for i, f := range files {
		changes := PatchToChanges(f.Patch, path.Base(f.Filename))
		out = append(out, types.FileChange{
			ID:        i + 1,
			FileName:  path.Base(f.Filename),
			FilePath:  f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Changes:   changes,
			Estimated: len(changes) == 1 && changes[0].Type == types.ChangeModification,
		})
	}
	return out
}
